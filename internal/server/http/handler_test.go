package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"hyperfocus/internal/toolengine"
	"hyperfocus/internal/toolregistry"
	"hyperfocus/internal/tools/ports"
)

func callMeta(name, scope string, cacheable bool) ports.ToolMetadata {
	return ports.ToolMetadata{
		Name:        name,
		Description: "Use this tool in tests. Example: {\"key\": \"value\"}",
		InputSchema: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"key": {Type: "string", Description: "Test input."},
			},
			Required: []string{"key"},
		},
		Output:        "test_result",
		Auth:          ports.AuthRequirements{RequiresAuth: true, Scopes: []string{scope}},
		Category:      "test",
		Tags:          []string{"test"},
		Cacheable:     cacheable,
		ReadOnly:      cacheable,
		RateLimitTier: ports.RateLimitLow,
	}
}

type testServer struct {
	router      *gin.Engine
	invocations *atomic.Int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	var invocations atomic.Int64
	registry := toolregistry.New(nil)
	if err := registry.Register(callMeta("echo", "tasks:read", true), func(_ context.Context, args map[string]any, userID string) (any, error) {
		invocations.Add(1)
		return map[string]any{"echoed": args["key"], "user": userID}, nil
	}); err != nil {
		t.Fatalf("register echo: %v", err)
	}
	if err := registry.Register(callMeta("wipe_everything", "tasks:admin", false), func(context.Context, map[string]any, string) (any, error) {
		invocations.Add(1)
		return "wiped", nil
	}); err != nil {
		t.Fatalf("register wipe: %v", err)
	}

	engine, err := toolengine.NewEngine(registry, toolengine.Options{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(engine.Close)

	router := NewRouter(RouterConfig{
		Registry:       registry,
		Engine:         engine,
		Auth:           NewStaticTokenAuthenticator(map[string]string{"good-token": "user-1"}),
		AllowedOrigins: []string{"http://app.example.com"},
	})
	return &testServer{router: router, invocations: &invocations}
}

func (s *testServer) post(t *testing.T, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/tools", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func callBody(name string, args map[string]any) map[string]any {
	return map[string]any{
		"method": "tools/call",
		"params": map[string]any{"name": name, "arguments": args},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code, body.Error.Message
}

func TestToolsListNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.post(t, "", map[string]any{"method": "tools/list"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Tools []ports.ToolMetadata `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(body.Tools))
	}
}

func TestToolsCallSuccess(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.post(t, "good-token", callBody("echo", map[string]any{"key": "hello"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Result map[string]any `json:"result"`
		CallID string         `json:"call_id"`
		Cached bool           `json:"cached"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Result["echoed"] != "hello" || body.Result["user"] != "user-1" {
		t.Fatalf("unexpected result %+v", body.Result)
	}
	if body.CallID == "" {
		t.Fatal("call_id must be set")
	}
	if body.Cached {
		t.Fatal("first call must not be cached")
	}

	// Identical arguments are served from the cache with a fresh call id.
	second := srv.post(t, "good-token", callBody("echo", map[string]any{"key": "hello"}))
	var cached struct {
		CallID string `json:"call_id"`
		Cached bool   `json:"cached"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &cached); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cached.Cached {
		t.Fatal("second call should hit the cache")
	}
	if cached.CallID == body.CallID {
		t.Fatal("each request gets its own call id")
	}
	if srv.invocations.Load() != 1 {
		t.Fatalf("expected one handler invocation, got %d", srv.invocations.Load())
	}
}

func TestToolsCallRequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	cases := map[string]string{
		"missing token": "",
		"bad token":     "wrong-token",
	}
	for name, token := range cases {
		rec := srv.post(t, token, callBody("echo", map[string]any{"key": "x"}))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
		code, _ := decodeError(t, rec)
		if code != "unauthorized" {
			t.Fatalf("%s: expected unauthorized code, got %q", name, code)
		}
	}
	if srv.invocations.Load() != 0 {
		t.Fatal("unauthorized calls must never reach a handler")
	}
}

func TestToolsCallScopeDenied(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.post(t, "good-token", callBody("wipe_everything", map[string]any{"key": "x"}))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	_, message := decodeError(t, rec)
	if !strings.Contains(message, "tasks:admin") {
		t.Fatalf("expected missing scope named, got %q", message)
	}
	if srv.invocations.Load() != 0 {
		t.Fatal("scope-denied calls must never reach a handler")
	}
}

func TestToolsCallUnknownTool(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.post(t, "good-token", callBody("nonexistent", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	code, message := decodeError(t, rec)
	if code != "not_found" {
		t.Fatalf("expected not_found code, got %q", code)
	}
	if !strings.Contains(message, "echo") {
		t.Fatalf("expected available tools listed, got %q", message)
	}
}

func TestToolsCallValidationFailure(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.post(t, "good-token", callBody("echo", map[string]any{"key": 42}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	code, message := decodeError(t, rec)
	if code != "validation" {
		t.Fatalf("expected validation code, got %q", code)
	}
	if !strings.Contains(message, "key") {
		t.Fatalf("expected offending field named, got %q", message)
	}
	if srv.invocations.Load() != 0 {
		t.Fatal("invalid arguments must never reach a handler")
	}
}

func TestInvalidMethod(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.post(t, "good-token", map[string]any{"method": "tools/destroy"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, message := decodeError(t, rec)
	if code != "invalid_method" {
		t.Fatalf("expected invalid_method code, got %q", code)
	}
	if !strings.Contains(message, "tools/list") || !strings.Contains(message, "tools/call") {
		t.Fatalf("expected supported methods named, got %q", message)
	}
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/tools", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	code, _ := decodeError(t, rec)
	if code != "invalid_request" {
		t.Fatalf("expected invalid_request code, got %q", code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/tools", nil)
	req.Header.Set("Origin", "http://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	// Unlisted origins are refused.
	req = httptest.NewRequest(http.MethodOptions, "/api/tools", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be allowed, got %q", got)
	}
}

func TestStatusMapping(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name   string
		body   any
		token  string
		status int
	}{
		{"validation", callBody("echo", map[string]any{}), "good-token", http.StatusBadRequest},
		{"not found", callBody("ghost", nil), "good-token", http.StatusNotFound},
		{"unauthorized", callBody("echo", map[string]any{"key": "x"}), "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := srv.post(t, tc.token, tc.body)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}
}

func TestAuthExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Bearer   abc123  ", "abc123"},
		{"Basic abc123", ""},
		{"", ""},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		if got := extractBearerToken(tc.header); got != tc.want {
			t.Fatalf("extractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestIdentityHasScope(t *testing.T) {
	id := Identity{UserID: "u", Scopes: []string{"tasks:read"}}
	if !id.HasScope("tasks:read") {
		t.Fatal("expected scope match")
	}
	if id.HasScope("tasks:write") {
		t.Fatal("unexpected scope match")
	}
}

func TestEngineFailureMapsToStatus(t *testing.T) {
	// A handler returning a plain error surfaces as 500 with the unknown code.
	registry := toolregistry.New(nil)
	if err := registry.Register(callMeta("broken", "tasks:read", false), func(context.Context, map[string]any, string) (any, error) {
		return nil, fmt.Errorf("backing service exploded")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine, err := toolengine.NewEngine(registry, toolengine.Options{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(engine.Close)

	router := NewRouter(RouterConfig{
		Registry: registry,
		Engine:   engine,
		Auth:     NewStaticTokenAuthenticator(map[string]string{"good-token": "user-1"}),
	})
	srv := &testServer{router: router, invocations: &atomic.Int64{}}

	rec := srv.post(t, "good-token", callBody("broken", map[string]any{"key": "x"}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	code, _ := decodeError(t, rec)
	if code != "unknown" {
		t.Fatalf("expected unknown code, got %q", code)
	}
}
