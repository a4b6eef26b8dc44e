package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/R3E-Network/service_layer/internal/app"
)

func newTestHandler(t *testing.T) (http.Handler, *app.Application) {
	t.Helper()
	application, err := app.New(app.Stores{}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return NewHandler(application, nil), application
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	for _, path := range []string{"/health", "/ready"} {
		rec := doJSON(t, handler, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode body: %v", path, err)
		}
		if body["status"] != "ok" {
			t.Fatalf("%s: expected status ok, got %q", path, body["status"])
		}
		if body["version"] == "" {
			t.Fatalf("%s: expected a non-empty version", path)
		}
	}
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodPost, "/v1/traces", map[string]any{"name": "t"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated trace ingest, got %d", rec.Code)
	}
}

func TestGuestPathAllowsUnauthenticatedGET(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/v1/projects", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for guest GET /v1/projects, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterLoginAndIngestFlow(t *testing.T) {
	handler, application := newTestHandler(t)

	// Register a dashboard user.
	registerRec := doJSON(t, handler, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":    "owner@example.com",
		"password": "correct horse battery staple",
	}, "")
	if registerRec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", registerRec.Code, registerRec.Body.String())
	}
	var registered struct {
		Token string
		User  struct {
			ID    string
			Email string
		}
	}
	if err := json.Unmarshal(registerRec.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.Token == "" || registered.User.ID == "" {
		t.Fatalf("expected a session token and user id, got %+v", registered)
	}

	// Create a project using that session token (not a guest path, must authenticate).
	createRec := doJSON(t, handler, http.MethodPost, "/v1/projects", map[string]string{"name": "acme"}, registered.Token)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d: %s", createRec.Code, createRec.Body.String())
	}
	var created struct {
		Project struct {
			ID string
		}
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create project response: %v", err)
	}
	if created.Project.ID == "" || created.APIKey == "" {
		t.Fatalf("expected a project id and API key, got %+v", created)
	}

	// Ingest a trace scoped to the project using its API key.
	ingestRec := doJSON(t, handler, http.MethodPost, "/v1/traces", map[string]any{
		"name": "checkout",
		"spans": []map[string]any{
			{"name": "llm-call", "kind": "llm", "started_at": "2026-01-01T00:00:00Z"},
		},
	}, created.APIKey)
	if ingestRec.Code != http.StatusCreated {
		t.Fatalf("ingest trace: expected 201, got %d: %s", ingestRec.Code, ingestRec.Body.String())
	}
	var trace struct {
		ID        string
		ProjectID string
	}
	if err := json.Unmarshal(ingestRec.Body.Bytes(), &trace); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	if trace.ProjectID != created.Project.ID {
		t.Fatalf("expected trace scoped to project %s, got %s", created.Project.ID, trace.ProjectID)
	}

	// Sanity: the trace is reachable directly through the application layer too.
	stored, err := application.Traces.Get(context.Background(), trace.ID)
	if err != nil {
		t.Fatalf("load ingested trace: %v", err)
	}
	if stored.Name != "checkout" {
		t.Fatalf("expected trace name 'checkout', got %q", stored.Name)
	}

	// Listing traces with the project's API key succeeds (GET /v1/traces is
	// not a guest path, so the key is required).
	listRec := doJSON(t, handler, http.MethodGet, "/v1/traces", nil, created.APIKey)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list traces: expected 200, got %d: %s", listRec.Code, listRec.Body.String())
	}

	// A limit above the maximum page size must be rejected, not clamped.
	overLimitRec := doJSON(t, handler, http.MethodGet, "/v1/traces?limit=300", nil, created.APIKey)
	if overLimitRec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("list traces with limit=300: expected 422, got %d: %s", overLimitRec.Code, overLimitRec.Body.String())
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	handler, _ := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from unauthenticated /metrics, got %d", rec.Code)
	}
}
