package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"seo-analysis-backend/internal/provider"
)

func newTestRouter(env *testEnv, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	NewHandler(env.svc, time.Minute).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	payload := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &payload)
	return w, payload
}

func TestRunSyncReturnsResult(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 2)
	env.gw.syncFn = func(_ string, _ map[string]any) ([]json.RawMessage, error) {
		return rawItems(businessResult), nil
	}
	r := newTestRouter(env, "user-1")

	w, body := doJSON(r, http.MethodPost, "/api/v1/analyses/business-info", `{"business_name":"Cafe Blau"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["success"] != true || body["analysis_id"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	result, _ := body["result"].(map[string]any)
	if result["title"] != "Cafe Blau" {
		t.Fatalf("unexpected result %v", body["result"])
	}
}

func TestRunDeferredReturnsAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 5)
	env.gw.submitFn = func(_ string, _ map[string]any) (string, error) { return "task-77", nil }
	r := newTestRouter(env, "user-1")

	w, body := doJSON(r, http.MethodPost, "/api/v1/analyses/onpage-audit", `{"target":"example.com"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if body["task_id"] != "task-77" || body["status"] != "processing" || body["success"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRunErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "rich", 10)
	env.gw.syncFn = func(_ string, _ map[string]any) ([]json.RawMessage, error) {
		return nil, provider.Errorf(40501, "Invalid Field: 'keyword'.")
	}

	cases := []struct {
		name   string
		user   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown type", "rich", "/api/v1/analyses/backlinks", `{}`, http.StatusNotFound, "unknown_type"},
		{"validation", "rich", "/api/v1/analyses/keyword-data", `{}`, http.StatusBadRequest, "validation_error"},
		{"insufficient credits", "poor", "/api/v1/analyses/keyword-data", `{"keyword":"seo"}`, http.StatusPaymentRequired, "insufficient_credits"},
		{"provider failure", "rich", "/api/v1/analyses/keyword-data", `{"keyword":"seo"}`, http.StatusInternalServerError, "provider_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(env, tc.user)
			w, body := doJSON(r, http.MethodPost, tc.path, tc.body)
			if w.Code != tc.status || body["code"] != tc.code {
				t.Fatalf("expected %d/%s, got %d: %s", tc.status, tc.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestRunProviderErrorCarriesMessage(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 1)
	env.gw.syncFn = func(_ string, _ map[string]any) ([]json.RawMessage, error) {
		return nil, provider.Errorf(40501, "Invalid Field: 'keyword'.")
	}
	r := newTestRouter(env, "user-1")

	_, body := doJSON(r, http.MethodPost, "/api/v1/analyses/keyword-data", `{"keyword":"seo"}`)
	if body["error"] != "Invalid Field: 'keyword'." {
		t.Fatalf("expected verbatim provider message, got %v", body["error"])
	}
	details, _ := body["details"].(map[string]any)
	if details["analysis_id"] == nil {
		t.Fatalf("expected analysis_id in details, got %v", body)
	}
}

func TestRunInsufficientCreditsReportsRequired(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(env, "user-1")
	_, body := doJSON(r, http.MethodPost, "/api/v1/analyses/onpage-audit", `{"target":"example.com"}`)
	details, _ := body["details"].(map[string]any)
	if details["required"] != float64(5) {
		t.Fatalf("expected required=5, got %v", body)
	}
}

func TestPollTaskLifecycleAndRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 5)
	env.gw.submitFn = func(_ string, _ map[string]any) (string, error) { return "task-1", nil }
	env.gw.fetchFn = func(_, _ string) (provider.TaskStatus, error) {
		return provider.TaskStatus{State: provider.TaskFailed, Error: "Task In Error."}, nil
	}
	r := newTestRouter(env, "user-1")

	if w, _ := doJSON(r, http.MethodPost, "/api/v1/analyses/domain-traffic", `{"target":"example.com"}`); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	w, body := doJSON(r, http.MethodGet, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["status"] != "failed" || body["error"] != "Task In Error." {
		t.Fatalf("unexpected poll body %v", body)
	}

	w, body = doJSON(r, http.MethodGet, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusTooManyRequests || body["code"] != "poll_too_fast" {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestPollProviderUnavailableReturns503(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 3)
	env.gw.submitFn = func(_ string, _ map[string]any) (string, error) { return "task-1", nil }
	env.gw.fetchFn = func(_, _ string) (provider.TaskStatus, error) {
		return provider.TaskStatus{}, fmt.Errorf("fetch: %w", provider.ErrUnavailable)
	}
	r := newTestRouter(env, "user-1")

	if w, _ := doJSON(r, http.MethodPost, "/api/v1/analyses/domain-traffic", `{"target":"example.com"}`); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	w, body := doJSON(r, http.MethodGet, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusServiceUnavailable || body["code"] != "provider_unavailable" {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
	if bal := env.balance(t, "user-1"); bal != 0 {
		t.Fatalf("hold must be kept, balance %d", bal)
	}
}

func TestPollForeignTaskIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "owner", 5)
	env.gw.submitFn = func(_ string, _ map[string]any) (string, error) { return "task-1", nil }
	if w, _ := doJSON(newTestRouter(env, "owner"), http.MethodPost, "/api/v1/analyses/google-shopping", `{"keyword":"x"}`); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	w, body := doJSON(newTestRouter(env, "intruder"), http.MethodGet, "/api/v1/tasks/task-1", "")
	if w.Code != http.StatusNotFound || body["code"] != "not_found" {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetAndListAnalyses(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 3)
	env.gw.syncFn = func(_ string, _ map[string]any) ([]json.RawMessage, error) {
		return rawItems(businessResult), nil
	}
	r := newTestRouter(env, "user-1")

	_, created := doJSON(r, http.MethodPost, "/api/v1/analyses/business-info", `{"business_name":"Cafe"}`)
	id, _ := created["analysis_id"].(string)

	w, body := doJSON(r, http.MethodGet, "/api/v1/analyses/"+id, "")
	if w.Code != http.StatusOK || body["status"] != "completed" || body["type"] != "business-info" {
		t.Fatalf("unexpected get %d: %s", w.Code, w.Body.String())
	}
	if _, leaked := body["user_id"]; leaked {
		t.Fatalf("owner must not be serialized")
	}

	w, body = doJSON(r, http.MethodGet, "/api/v1/analyses?type=business-info&limit=5", "")
	items, _ := body["items"].([]any)
	if w.Code != http.StatusOK || len(items) != 1 {
		t.Fatalf("unexpected list %d: %s", w.Code, w.Body.String())
	}

	if w, _ := doJSON(r, http.MethodGet, "/api/v1/analyses?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
	if w, _ := doJSON(r, http.MethodGet, "/api/v1/analyses?status=done", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", w.Code)
	}
	if w, _ := doJSON(newTestRouter(env, "user-2"), http.MethodGet, "/api/v1/analyses/"+id, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign analysis, got %d", w.Code)
	}
}

type brokenRepo struct{ *MemoryRepo }

func (brokenRepo) Create(_ context.Context, _ Analysis) error {
	return errors.New("connection reset")
}

func TestRunPersistenceFailureIsGenericAndRefunds(t *testing.T) {
	env := newTestEnv(t)
	env.grant(t, "user-1", 1)
	env.svc.Repo = brokenRepo{NewMemoryRepo()}
	r := newTestRouter(env, "user-1")

	w, body := doJSON(r, http.MethodPost, "/api/v1/analyses/business-info", `{"business_name":"Cafe"}`)
	if w.Code != http.StatusInternalServerError || body["code"] != "internal_error" {
		t.Fatalf("expected 500 internal_error, got %d: %s", w.Code, w.Body.String())
	}
	if body["error"] == "connection reset" {
		t.Fatalf("store error must not leak")
	}
	if bal := env.balance(t, "user-1"); bal != 1 {
		t.Fatalf("hold must be released, balance %d", bal)
	}
	if env.gw.syncCalls.Load() != 0 {
		t.Fatalf("provider must not be called without a record")
	}
}
