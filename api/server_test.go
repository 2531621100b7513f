package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	s := NewServer(0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := NewServer(0)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/session", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", w.Code)
	}

	loadReq := httptest.NewRequest(http.MethodPost, extractSessionLoadURL(t, w.Body.String()), strings.NewReader(`{"contents":"mov r0, #1\n"}`))
	loadW := httptest.NewRecorder()
	s.Handler().ServeHTTP(loadW, loadReq)
	if loadW.Code != http.StatusOK {
		t.Fatalf("load program status = %d, body = %s", loadW.Code, loadW.Body.String())
	}
}

// extractSessionLoadURL pulls the sessionId out of the create-session
// response body and returns the load endpoint for it.
func extractSessionLoadURL(t *testing.T, body string) string {
	t.Helper()
	const marker = `"sessionId":"`
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatalf("no sessionId in response: %s", body)
	}
	rest := body[i+len(marker):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		t.Fatalf("malformed sessionId in response: %s", body)
	}
	return "/api/v1/session/" + rest[:j] + "/load"
}
