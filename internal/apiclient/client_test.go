// internal/apiclient/client_test.go
package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vantagesec/hypergraph-cli/api/schemas"
	"github.com/vantagesec/hypergraph-cli/internal/config"
)

// recordingHandler captures the last request and serves canned bodies.
type recordingHandler struct {
	mu        sync.Mutex
	lastPath  string
	lastQuery string
	lastBody  string

	status int
	body   string
	delay  time.Duration
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	h.mu.Lock()
	h.lastPath = r.URL.Path
	h.lastQuery = r.URL.RawQuery
	h.lastBody = string(raw)
	status, body, delay := h.status, h.body, h.delay
	h.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// getTestClient spins up a canned backend and a client pointed at it.
func getTestClient(t *testing.T, handler *recordingHandler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(config.BackendConfig{
		BaseURL: server.URL,
		Group:   "default",
		Headers: map[string]string{"X-Console-Token": "test-token"},
	}, zap.NewNop())
	require.NoError(t, err, "Failed to build test client")
	client.SetHTTPClient(server.Client())
	return client
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("should reject an unparsable base URL", func(t *testing.T) {
		t.Parallel()
		_, err := New(config.BackendConfig{BaseURL: "http://bad url\x7f"}, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("should fall back to the default request timeout", func(t *testing.T) {
		t.Parallel()
		client, err := New(config.BackendConfig{BaseURL: "http://localhost:9999"}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, DefaultRequestTimeout, client.timeout)
	})
}

func TestFetchEntities(t *testing.T) {
	t.Parallel()

	t.Run("should decode the entity envelope", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{
			"entities": {
				"web-01": {"id":"web-01","kind":"host","name":"Web","fitness":3,
					"attributes":{"xx":"120","yy":"88"}}
			}
		}`}
		client := getTestClient(t, handler)

		entities, err := client.FetchEntities(context.Background(), "app-1")
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "host", entities["web-01"].Kind)
		assert.Equal(t, 3, entities["web-01"].Fitness)
		assert.Equal(t, "/v1/app/app-1/entities", handler.lastPath)
	})

	t.Run("should scope every request to the configured group", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"entities":{}}`}
		client := getTestClient(t, handler)

		_, err := client.FetchEntities(context.Background(), "app-1")
		require.NoError(t, err)
		assert.Equal(t, "group=default", handler.lastQuery)
	})

	t.Run("should surface a non-2xx response as a status error", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{status: http.StatusForbidden, body: `{"error":"no access"}`}
		client := getTestClient(t, handler)

		_, err := client.FetchEntities(context.Background(), "app-1")
		require.Error(t, err)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusForbidden, statusErr.Code)
	})

	t.Run("should surface an unparsable body as a decode error", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `<html>not json</html>`}
		client := getTestClient(t, handler)

		_, err := client.FetchEntities(context.Background(), "app-1")
		require.Error(t, err)
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
	})
}

func TestCreateEntities(t *testing.T) {
	t.Parallel()

	t.Run("should post the entity array and decode the canonical copies", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"entities":[{"id":"db-01","kind":"database"}]}`}
		client := getTestClient(t, handler)

		created, err := client.CreateEntities(context.Background(), "app-1", []schemas.WireEntity{
			{ID: "db-01", Kind: "database"},
		})
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "db-01", created[0].ID)
		assert.JSONEq(t,
			`[{"id":"db-01","kind":"database","name":"","description":"","attributes":null,"fitness":0}]`,
			handler.lastBody)
	})
}

func TestUpdateEntity(t *testing.T) {
	t.Parallel()

	t.Run("should return the id echoed by the backend", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"id":"web-01"}`}
		client := getTestClient(t, handler)

		id, err := client.UpdateEntity(context.Background(), "app-1", schemas.WireEntity{ID: "web-01"})
		require.NoError(t, err)
		assert.Equal(t, "web-01", id)
		assert.Equal(t, "/v1/app/app-1/entities/web-01", handler.lastPath)
	})
}

func TestDeleteEntity(t *testing.T) {
	t.Parallel()

	t.Run("should decode an in-band refusal", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"Status":"failed","message":"entity is referenced"}`}
		client := getTestClient(t, handler)

		status, err := client.DeleteEntity(context.Background(), "app-1", "web-01")
		require.NoError(t, err)
		assert.False(t, status.OK())
		assert.Equal(t, "entity is referenced", status.Message)
	})

	t.Run("should decode a confirmation", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"Status":"success"}`}
		client := getTestClient(t, handler)

		status, err := client.DeleteEntity(context.Background(), "app-1", "web-01")
		require.NoError(t, err)
		assert.True(t, status.OK())
	})
}

func TestAssocs(t *testing.T) {
	t.Parallel()

	t.Run("should decode the assoc envelope with its endpoint sets", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{
			"assocs": {
				"db-01,web-01": {
					"id":"db-01,web-01",
					"fromentities":["web-01"],
					"toentities":["db-01"],
					"otherentities":["lb-01"]
				}
			}
		}`}
		client := getTestClient(t, handler)

		assocs, err := client.FetchAssocs(context.Background(), "app-1")
		require.NoError(t, err)
		require.Len(t, assocs, 1)
		a := assocs["db-01,web-01"]
		assert.Equal(t, []string{"web-01"}, a.FromEntities)
		assert.Equal(t, []string{"db-01"}, a.ToEntities)
		assert.Equal(t, []string{"lb-01"}, a.OtherEntities)
	})

	t.Run("should serialize endpoint sets under the backend field names", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"assocs":[]}`}
		client := getTestClient(t, handler)

		_, err := client.CreateAssocs(context.Background(), "app-1", []schemas.WireAssoc{{
			ID:           "a,b",
			FromEntities: []string{"a"},
			ToEntities:   []string{"b"},
		}})
		require.NoError(t, err)
		assert.Contains(t, handler.lastBody, `"fromentities":["a"]`)
		assert.Contains(t, handler.lastBody, `"toentities":["b"]`)
	})
}

func TestEntityActions(t *testing.T) {
	t.Parallel()

	t.Run("should round-trip the actions sub-resource", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"actions":[
			{"id":"action0","name":"probe","type":"http","runxtimes":1,"retryxtimes":1,"timeout":50}
		]}`}
		client := getTestClient(t, handler)

		actions, err := client.FetchEntityActions(context.Background(), "app-1", "web-01")
		require.NoError(t, err)
		require.Len(t, actions, 1)
		assert.Equal(t, "probe", actions[0].Name)
		assert.Equal(t, "/v1/app/app-1/entities/web-01/actions", handler.lastPath)
	})
}

func TestApps(t *testing.T) {
	t.Parallel()

	t.Run("should list apps from the top-level route", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"apps":[{"id":"app-1","name":"Payments"}]}`}
		client := getTestClient(t, handler)

		apps, err := client.FetchApps(context.Background())
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.Equal(t, "Payments", apps[0].Name)
		assert.Equal(t, "/v1/apps", handler.lastPath)
	})

	t.Run("should list attack graphs from their own route", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"apps":[]}`}
		client := getTestClient(t, handler)

		_, err := client.FetchAttackGraphs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/v1/attackGraphs", handler.lastPath)
	})
}

func TestEvalApp(t *testing.T) {
	t.Parallel()

	t.Run("should forward the evaluation fields", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"status":"queued"}`}
		client := getTestClient(t, handler)

		result, err := client.EvalApp(context.Background(), "app-1", schemas.EvalRequest{
			Schedule:   "@hourly",
			From:       "2026-09-01T00:00:00Z",
			Attributes: map[string]string{"depth": "2"},
		})
		require.NoError(t, err)
		assert.Equal(t, "queued", result.Status)
		assert.Equal(t, "/v1/app/app-1/eval", handler.lastPath)
		assert.Contains(t, handler.lastBody, `"schedule":"@hourly"`)
		assert.Contains(t, handler.lastBody, `"from":"2026-09-01T00:00:00Z"`)
		assert.Contains(t, handler.lastBody, `"depth":"2"`)
	})
}

func TestTimeouts(t *testing.T) {
	t.Parallel()

	t.Run("should bound calls without a caller deadline", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"entities":{}}`, delay: 5 * time.Second}
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)

		client, err := New(config.BackendConfig{
			BaseURL:        server.URL,
			RequestTimeout: 50 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)
		client.SetHTTPClient(server.Client())

		start := time.Now()
		_, err = client.FetchEntities(context.Background(), "app-1")
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("should honor an earlier caller deadline", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"entities":{}}`, delay: 5 * time.Second}
		client := getTestClient(t, handler)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := client.FetchEntities(ctx, "app-1")
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("should abort the rate limit wait on cancellation", func(t *testing.T) {
		t.Parallel()
		handler := &recordingHandler{body: `{"entities":{}}`}
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)

		client, err := New(config.BackendConfig{
			BaseURL:   server.URL,
			RateLimit: 0.001, // one request every ~17 minutes
			RateBurst: 1,
		}, zap.NewNop())
		require.NoError(t, err)
		client.SetHTTPClient(server.Client())

		// Drain the single burst token.
		_, err = client.FetchEntities(context.Background(), "app-1")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = client.FetchEntities(ctx, "app-1")
		require.Error(t, err)
	})
}

func TestHeaders(t *testing.T) {
	t.Parallel()

	t.Run("should attach the configured headers to every request", func(t *testing.T) {
		t.Parallel()
		var gotToken, gotAccept string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotToken = r.Header.Get("X-Console-Token")
			gotAccept = r.Header.Get("Accept")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"entities":{}}`))
		}))
		t.Cleanup(server.Close)

		client, err := New(config.BackendConfig{
			BaseURL: server.URL,
			Headers: map[string]string{"X-Console-Token": "secret"},
		}, zap.NewNop())
		require.NoError(t, err)
		client.SetHTTPClient(server.Client())

		_, err = client.FetchEntities(context.Background(), "app-1")
		require.NoError(t, err)
		assert.Equal(t, "secret", gotToken)
		assert.Equal(t, "application/json", gotAccept)
	})
}
