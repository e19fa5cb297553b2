package schemas

import "encoding/json"

// -- Backend Wire Contract --
//
// The REST backend speaks in "entities" and "assocs". Field names below
// follow the server's JSON exactly; the translation to the core Node and
// Hyperedge model happens at this boundary and nowhere else.

// WireEntity is the backend representation of a node.
type WireEntity struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Kind             string            `json:"kind"`
	Attributes       map[string]string `json:"attributes"`
	Fitness          int               `json:"fitness"`
	Created          string            `json:"created,omitempty"`
	LastModified     string            `json:"lastModified,omitempty"`
	LastModifiedUser string            `json:"lastModifiedUser,omitempty"`
}

// WireAssoc is the backend representation of a hyperedge.
type WireAssoc struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Label         string            `json:"label"`
	FromEntities  []string          `json:"fromentities"`
	ToEntities    []string          `json:"toentities"`
	OtherEntities []string          `json:"otherentities"`
	Attributes    map[string]string `json:"attributes"`
	Propensity    float64           `json:"propensity"`
	Expressions   *Expressions      `json:"expressions,omitempty"`
	Created       string            `json:"created,omitempty"`
	LastModified  string            `json:"lastModified,omitempty"`
}

// EntityList is the fetch envelope for entities, keyed by entity id.
type EntityList struct {
	Entities map[string]WireEntity `json:"entities"`
}

// AssocList is the fetch envelope for assocs, keyed by assoc id.
type AssocList struct {
	Assocs map[string]WireAssoc `json:"assocs"`
}

// CreateEntitiesResponse is returned by the bulk entity create endpoint.
type CreateEntitiesResponse struct {
	Entities []WireEntity `json:"entities"`
}

// CreateAssocsResponse is returned by the bulk assoc create endpoint.
type CreateAssocsResponse struct {
	Assocs []WireAssoc `json:"assocs"`
}

// UpdateResponse is returned by entity and assoc update endpoints.
type UpdateResponse struct {
	ID string `json:"id"`
}

// StatusResponse is returned by delete endpoints.
type StatusResponse struct {
	Status  string `json:"Status"`
	Message string `json:"message,omitempty"`
}

// StatusSuccess is the backend's confirmation value in StatusResponse.
const StatusSuccess = "success"

// OK reports whether the response confirms the operation.
func (r StatusResponse) OK() bool { return r.Status == StatusSuccess }

// -- Actions --

// WireAction is the generic backend action representation. The common
// retry/timeout fields sit at the top level; everything type-specific is
// serialized into Data.
type WireAction struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	RunXTimes   int             `json:"runxtimes"`
	RetryXTimes int             `json:"retryxtimes"`
	Timeout     int             `json:"timeout"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// ActionList is the fetch envelope for a node's actions.
type ActionList struct {
	Actions []WireAction `json:"actions"`
}

// -- Apps & Eval --

// AppData describes one registered application on the backend.
type AppData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group"`
	Kind        string `json:"kind,omitempty"`
}

// AppList is the envelope for the application listing endpoints.
type AppList struct {
	Apps []AppData `json:"apps"`
}

// EvalRequest is the payload for a risk-evaluation run. All fields are
// optional; an empty request asks the engine to evaluate with defaults.
type EvalRequest struct {
	Schedule   string            `json:"schedule,omitempty"`
	From       string            `json:"from,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// EvalResult is the engine's response to an evaluation run. The verdict
// payload is engine-defined and passed through opaquely.
type EvalResult struct {
	Status  string          `json:"status"`
	Verdict json.RawMessage `json:"verdict,omitempty"`
}

// -- Wire Translation --

// EntityToNode converts a backend entity into the core node model,
// deriving the canvas position from the reserved coordinate attributes.
func EntityToNode(e WireEntity) Node {
	attrs := e.Attributes
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return Node{
		ID:          e.ID,
		Kind:        e.Kind,
		Name:        e.Name,
		Description: e.Description,
		Attributes:  attrs,
		Fitness:     e.Fitness,
		Position:    PositionFromAttributes(attrs),
		State:       LifecycleCommitted,
	}
}

// NodeToEntity converts a core node back into the backend representation,
// folding the position into the coordinate attributes.
func NodeToEntity(n Node) WireEntity {
	attrs := make(map[string]string, len(n.Attributes)+2)
	for k, v := range n.Attributes {
		attrs[k] = v
	}
	StorePosition(attrs, n.Position)
	return WireEntity{
		ID:          n.ID,
		Name:        n.Name,
		Description: n.Description,
		Kind:        n.Kind,
		Attributes:  attrs,
		Fitness:     n.Fitness,
	}
}

// AssocToHyperedge converts a backend assoc into the core hyperedge model.
func AssocToHyperedge(a WireAssoc) Hyperedge {
	attrs := a.Attributes
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return Hyperedge{
		ID:          a.ID,
		Name:        a.Name,
		Label:       a.Label,
		Description: a.Description,
		Source:      append([]string(nil), a.FromEntities...),
		Target:      append([]string(nil), a.ToEntities...),
		Other:       append([]string(nil), a.OtherEntities...),
		Attributes:  attrs,
		Propensity:  a.Propensity,
		Expressions: a.Expressions,
		State:       LifecycleCommitted,
	}
}

// HyperedgeToAssoc converts a core hyperedge back into the backend
// representation.
func HyperedgeToAssoc(h Hyperedge) WireAssoc {
	return WireAssoc{
		ID:            h.ID,
		Name:          h.Name,
		Description:   h.Description,
		Label:         h.Label,
		FromEntities:  append([]string(nil), h.Source...),
		ToEntities:    append([]string(nil), h.Target...),
		OtherEntities: append([]string(nil), h.Other...),
		Attributes:    h.Attributes,
		Propensity:    h.Propensity,
		Expressions:   h.Expressions,
	}
}
