// File: internal/apiclient/client.go

// Package apiclient implements the REST client for the risk-graph backend.
// It owns URL construction, the wire codec and request pacing; graph
// semantics live above it in graphstore.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Transport tuning for a chatty interactive client.
const (
	DefaultDialTimeout       = 10 * time.Second
	DefaultKeepAliveInterval = 30 * time.Second
	DefaultRequestTimeout    = 5 * time.Second

	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
)

// StatusError reports a non-2xx HTTP response from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Code, e.Body)
}

// DecodeError reports a 2xx response whose body did not parse as the
// expected envelope.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode response body: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Client talks to the risk-graph API server for one group scope.
type Client struct {
	baseURL *url.URL
	group   string
	timeout time.Duration
	headers map[string]string
	limiter *rate.Limiter
	http    *http.Client
	log     *zap.Logger
}

// NewHTTPClient builds the http.Client used for backend calls. Kept
// separate so tests can swap in an httptest server transport.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAliveInterval,
		}).DialContext,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{Transport: transport}
}

// New creates a backend client from configuration. The logger is named
// per component; pass zap.NewNop() in tests.
func New(cfg config.BackendConfig, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL: base,
		group:   cfg.Group,
		timeout: timeout,
		headers: cfg.Headers,
		limiter: rate.NewLimiter(limit, burst),
		http:    NewHTTPClient(),
		log:     logger.Named("APIClient"),
	}, nil
}

// SetHTTPClient overrides the underlying HTTP client. Test hook.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// -- Entities --

// FetchEntities retrieves every entity of the app, keyed by id.
func (c *Client) FetchEntities(ctx context.Context, appID string) (map[string]schemas.WireEntity, error) {
	var out schemas.EntityList
	if err := c.do(ctx, http.MethodGet, c.appPath(appID, "entities"), nil, &out); err != nil {
		return nil, fmt.Errorf("fetch entities for app %s: %w", appID, err)
	}
	return out.Entities, nil
}

// CreateEntities creates the given entities and returns the backend's
// canonical copies.
func (c *Client) CreateEntities(ctx context.Context, appID string, entities []schemas.WireEntity) ([]schemas.WireEntity, error) {
	var out schemas.CreateEntitiesResponse
	if err := c.do(ctx, http.MethodPost, c.appPath(appID, "entities"), entities, &out); err != nil {
		return nil, fmt.Errorf("create entities for app %s: %w", appID, err)
	}
	return out.Entities, nil
}

// UpdateEntity updates one entity and returns the id the backend reports.
func (c *Client) UpdateEntity(ctx context.Context, appID string, entity schemas.WireEntity) (string, error) {
	var out schemas.UpdateResponse
	if err := c.do(ctx, http.MethodPut, c.appPath(appID, "entities", entity.ID), entity, &out); err != nil {
		return "", fmt.Errorf("update entity %s: %w", entity.ID, err)
	}
	return out.ID, nil
}

// DeleteEntity deletes one entity. The returned status must be checked;
// the backend reports refusals in-band.
func (c *Client) DeleteEntity(ctx context.Context, appID, entityID string) (schemas.StatusResponse, error) {
	var out schemas.StatusResponse
	if err := c.do(ctx, http.MethodDelete, c.appPath(appID, "entities", entityID), nil, &out); err != nil {
		return schemas.StatusResponse{}, fmt.Errorf("delete entity %s: %w", entityID, err)
	}
	return out, nil
}

// -- Assocs --

// FetchAssocs retrieves every association of the app, keyed by id.
func (c *Client) FetchAssocs(ctx context.Context, appID string) (map[string]schemas.WireAssoc, error) {
	var out schemas.AssocList
	if err := c.do(ctx, http.MethodGet, c.appPath(appID, "assocs"), nil, &out); err != nil {
		return nil, fmt.Errorf("fetch assocs for app %s: %w", appID, err)
	}
	return out.Assocs, nil
}

// CreateAssocs creates the given associations.
func (c *Client) CreateAssocs(ctx context.Context, appID string, assocs []schemas.WireAssoc) ([]schemas.WireAssoc, error) {
	var out schemas.CreateAssocsResponse
	if err := c.do(ctx, http.MethodPost, c.appPath(appID, "assocs"), assocs, &out); err != nil {
		return nil, fmt.Errorf("create assocs for app %s: %w", appID, err)
	}
	return out.Assocs, nil
}

// UpdateAssoc updates one association and returns the id the backend reports.
func (c *Client) UpdateAssoc(ctx context.Context, appID string, assoc schemas.WireAssoc) (string, error) {
	var out schemas.UpdateResponse
	if err := c.do(ctx, http.MethodPut, c.appPath(appID, "assocs", assoc.ID), assoc, &out); err != nil {
		return "", fmt.Errorf("update assoc %s: %w", assoc.ID, err)
	}
	return out.ID, nil
}

// DeleteAssoc deletes one association.
func (c *Client) DeleteAssoc(ctx context.Context, appID, assocID string) (schemas.StatusResponse, error) {
	var out schemas.StatusResponse
	if err := c.do(ctx, http.MethodDelete, c.appPath(appID, "assocs", assocID), nil, &out); err != nil {
		return schemas.StatusResponse{}, fmt.Errorf("delete assoc %s: %w", assocID, err)
	}
	return out, nil
}

// -- Entity Actions --

// FetchEntityActions retrieves the action list attached to an entity.
func (c *Client) FetchEntityActions(ctx context.Context, appID, entityID string) ([]schemas.WireAction, error) {
	var out schemas.ActionList
	if err := c.do(ctx, http.MethodGet, c.appPath(appID, "entities", entityID, "actions"), nil, &out); err != nil {
		return nil, fmt.Errorf("fetch actions for entity %s: %w", entityID, err)
	}
	return out.Actions, nil
}

// CreateEntityActions replaces the action list attached to an entity.
func (c *Client) CreateEntityActions(ctx context.Context, appID, entityID string, actions []schemas.WireAction) ([]schemas.WireAction, error) {
	var out schemas.ActionList
	if err := c.do(ctx, http.MethodPost, c.appPath(appID, "entities", entityID, "actions"), actions, &out); err != nil {
		return nil, fmt.Errorf("create actions for entity %s: %w", entityID, err)
	}
	return out.Actions, nil
}

// DeleteEntityActions removes every action attached to an entity.
func (c *Client) DeleteEntityActions(ctx context.Context, appID, entityID string) (schemas.StatusResponse, error) {
	var out schemas.StatusResponse
	if err := c.do(ctx, http.MethodDelete, c.appPath(appID, "entities", entityID, "actions"), nil, &out); err != nil {
		return schemas.StatusResponse{}, fmt.Errorf("delete actions for entity %s: %w", entityID, err)
	}
	return out, nil
}

// -- Apps & Eval --

// FetchApps lists the applications registered for the client's group.
func (c *Client) FetchApps(ctx context.Context) ([]schemas.AppData, error) {
	var out schemas.AppList
	if err := c.do(ctx, http.MethodGet, "/v1/apps", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch apps: %w", err)
	}
	return out.Apps, nil
}

// FetchAttackGraphs lists the attack-graph applications for the group.
func (c *Client) FetchAttackGraphs(ctx context.Context) ([]schemas.AppData, error) {
	var out schemas.AppList
	if err := c.do(ctx, http.MethodGet, "/v1/attackGraphs", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch attack graphs: %w", err)
	}
	return out.Apps, nil
}

// EvalApp triggers a risk-evaluation run for the app. The request fields
// are forwarded as given; an empty request asks for engine defaults.
func (c *Client) EvalApp(ctx context.Context, appID string, req schemas.EvalRequest) (schemas.EvalResult, error) {
	var out schemas.EvalResult
	if err := c.do(ctx, http.MethodPost, c.appPath(appID, "eval"), req, &out); err != nil {
		return schemas.EvalResult{}, fmt.Errorf("eval app %s: %w", appID, err)
	}
	return out, nil
}

// -- Plumbing --

func (c *Client) appPath(appID string, parts ...string) string {
	p := "/v1/app/" + url.PathEscape(appID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// do performs one paced, timeout-bounded round trip. Every call gets the
// client's default timeout unless the caller's context already carries an
// earlier deadline.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := *c.baseURL
	u.Path = path
	q := u.Query()
	if c.group != "" {
		q.Set("group", c.group)
	}
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug("Backend round trip",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// withTimeout applies the client's default timeout when the caller's
// context has no deadline of its own.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
