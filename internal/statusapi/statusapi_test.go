package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dispatch-and-delivery/internal/models"
	"dispatch-and-delivery/pkg/authutil"
)

type fakeJobSource struct {
	snapshot []models.JobSnapshot
}

func (f fakeJobSource) Snapshot() []models.JobSnapshot { return f.snapshot }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	hash, err := authutil.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	s := New(nil, nil, nil, nil, fakeJobSource{snapshot: []models.JobSnapshot{{ID: "job-1"}}}, nil, nil,
		"admin", hash, "test-secret")
	return s, hash
}

func login(t *testing.T, s *Server, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"username":"admin","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestLoginSucceedsWithCorrectCredentials(t *testing.T) {
	s, _ := newTestServer(t)
	rec := login(t, s, "correct-password")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login returned empty token")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s, _ := newTestServer(t)
	rec := login(t, s, "wrong-password")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestStatusRouteRequiresToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status/jobs", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /status/jobs status = %d, want 400 or 401", rec.Code)
	}
}

func TestStatusRouteServesSnapshotWithValidToken(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginToken(t, s)

	req := httptest.NewRequest(http.MethodGet, "/status/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("/status/jobs status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var snapshot []models.JobSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].ID != "job-1" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestCacheRouteReportsNotImplementedWhenUnwired(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginToken(t, s)

	req := httptest.NewRequest(http.MethodGet, "/status/cache", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("/status/cache status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	rec := login(t, s, "correct-password")
	if rec.Code != http.StatusOK {
		t.Fatalf("login for token failed: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	return resp.Token
}
