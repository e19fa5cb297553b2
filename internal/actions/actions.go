// File: internal/actions/actions.go

// Package actions manages the bounded, ordered action list edited in the
// node and hyperedge dialogs, and the marshal boundary to the generic
// backend action representation.
package actions

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxActions caps the action list length per node or hyperedge.
const MaxActions = 10

// Defaults applied to a freshly added record.
const (
	DefaultType        = "None"
	DefaultRunXTimes   = 1
	DefaultRetryXTimes = 1
	DefaultTimeoutMS   = 50
)

// ErrCapacityExceeded is returned by Add when the list is full.
var ErrCapacityExceeded = errors.New("action list is full")

// Record is one editable action. The common retry/timeout fields are
// typed; everything type-specific lives in Extra and round-trips through
// the wire representation's data blob.
type Record struct {
	ID          string
	Name        string
	Type        string
	RunXTimes   int
	RetryXTimes int
	Timeout     int
	Extra       map[string]any
}

// Model is the dialog-backing list of action records.
type Model struct {
	max     int
	records []Record
	log     *zap.Logger
}

// NewModel creates an empty model bounded at max records. A max of zero
// or less falls back to MaxActions.
func NewModel(max int, logger *zap.Logger) *Model {
	if max <= 0 {
		max = MaxActions
	}
	return &Model{max: max, log: logger.Named("ActionForm")}
}

// NewModelFromWire seeds a model with the unmarshaled wire records,
// truncating to capacity.
func NewModelFromWire(max int, wire []schemas.WireAction, logger *zap.Logger) *Model {
	m := NewModel(max, logger)
	records := Unmarshal(wire, m.log)
	if len(records) > m.max {
		records = records[:m.max]
	}
	m.records = records
	return m
}

// Len returns the current record count.
func (m *Model) Len() int { return len(m.records) }

// Records returns a copy of the current record list.
func (m *Model) Records() []Record {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	for i := range out {
		out[i].Extra = copyExtra(out[i].Extra)
	}
	return out
}

// Add appends a new record with default field values. The record id is
// derived from its index. Fails with ErrCapacityExceeded at the bound.
func (m *Model) Add() (Record, error) {
	if len(m.records) >= m.max {
		return Record{}, fmt.Errorf("cannot add action %d: %w", len(m.records)+1, ErrCapacityExceeded)
	}
	rec := Record{
		ID:          fmt.Sprintf("action%d", len(m.records)),
		Name:        "noName",
		Type:        DefaultType,
		RunXTimes:   DefaultRunXTimes,
		RetryXTimes: DefaultRetryXTimes,
		Timeout:     DefaultTimeoutMS,
		Extra:       make(map[string]any),
	}
	m.records = append(m.records, rec)
	return rec, nil
}

// Update replaces the record with the given id. Unknown ids error.
func (m *Model) Update(rec Record) error {
	for i := range m.records {
		if m.records[i].ID == rec.ID {
			m.records[i] = rec
			return nil
		}
	}
	return fmt.Errorf("no action with id %q", rec.ID)
}

// Remove deletes the record with the given id. Unknown ids are a no-op.
func (m *Model) Remove(id string) {
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return
		}
	}
}

// RemoveAll clears the list to empty. Distinct from the initial state,
// which is also empty but precedes any Add.
func (m *Model) RemoveAll() {
	m.records = m.records[:0]
}

// Marshal converts the record list to the wire representation. Common
// fields move to the top level; everything in Extra is serialized into
// the data blob.
func Marshal(records []Record) ([]schemas.WireAction, error) {
	out := make([]schemas.WireAction, 0, len(records))
	for _, rec := range records {
		w := schemas.WireAction{
			ID:          rec.ID,
			Name:        rec.Name,
			Type:        rec.Type,
			RunXTimes:   rec.RunXTimes,
			RetryXTimes: rec.RetryXTimes,
			Timeout:     rec.Timeout,
		}
		if len(rec.Extra) > 0 {
			data, err := json.Marshal(rec.Extra)
			if err != nil {
				return nil, fmt.Errorf("marshal action %s data: %w", rec.ID, err)
			}
			w.Data = data
		}
		out = append(out, w)
	}
	return out, nil
}

// Unmarshal converts wire actions back into records, lifting the common
// fields and spreading the data blob into Extra. A record whose blob does
// not parse is skipped, not fatal, so one corrupt action cannot hide the
// rest of the list.
func Unmarshal(wire []schemas.WireAction, logger *zap.Logger) []Record {
	out := make([]Record, 0, len(wire))
	for _, w := range wire {
		rec := Record{
			ID:          w.ID,
			Name:        w.Name,
			Type:        w.Type,
			RunXTimes:   w.RunXTimes,
			RetryXTimes: w.RetryXTimes,
			Timeout:     w.Timeout,
			Extra:       make(map[string]any),
		}
		if len(w.Data) > 0 {
			if err := json.Unmarshal(w.Data, &rec.Extra); err != nil {
				if logger != nil {
					logger.Warn("Skipping action with malformed data blob",
						zap.String("action_id", w.ID), zap.Error(err))
				}
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func copyExtra(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
