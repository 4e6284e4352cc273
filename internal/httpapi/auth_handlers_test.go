package httpapi

import (
	"net/http"
	"testing"

	"todoTracker/internal/testutil"
)

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		body any
		code int
		msg  string
	}{
		{"missing password", map[string]string{"username": "alice"}, http.StatusBadRequest, "Username & password required"},
		{"missing username", map[string]string{"password": "pw"}, http.StatusBadRequest, "Username & password required"},
		{"blank username", map[string]string{"username": "   ", "password": "pw"}, http.StatusBadRequest, "Username & password required"},
		{"malformed", "{not json", http.StatusBadRequest, "Invalid JSON body"},
		{"ok", map[string]string{"username": "alice", "password": "pw"}, http.StatusCreated, ""},
		{"duplicate", map[string]string{"username": "alice", "password": "other"}, http.StatusBadRequest, "Username already exists"},
	}
	for _, tc := range cases {
		rec := env.do(http.MethodPost, "/api/register", tc.body, nil)
		if rec.Code != tc.code {
			t.Errorf("%s: expected %d, got %d (%s)", tc.name, tc.code, rec.Code, rec.Body)
			continue
		}
		if tc.msg != "" {
			if msg := errorOf(t, rec); msg != tc.msg {
				t.Errorf("%s: expected %q, got %q", tc.name, tc.msg, msg)
			}
		}
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.login("alice", "pw1")

	wrongPassword := env.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "nope"}, nil)
	unknownUser := env.do(http.MethodPost, "/api/login", map[string]string{"username": "mallory", "password": "pw1"}, nil)
	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrongPassword.Code, unknownUser.Code)
	}
	if msg := errorOf(t, wrongPassword); msg != "Invalid credentials" {
		t.Fatalf("unexpected message %q", msg)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Fatalf("bodies differ: %q vs %q", wrongPassword.Body, unknownUser.Body)
	}
	if testutil.Cookie(wrongPassword, "session") != nil {
		t.Fatalf("failed login must not set a session cookie")
	}
}

func TestLogin_NewSessionReplacesOld(t *testing.T) {
	env := newTestEnv(t)
	first := env.login("alice", "pw1")

	rec := env.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "pw1"}, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("relogin: %d", rec.Code)
	}
	second := testutil.Cookie(rec, "session")
	if second == nil || second.Value == first.Value {
		t.Fatalf("expected a fresh session token")
	}
	if got := env.do(http.MethodGet, "/api/items", nil, first).Code; got != http.StatusUnauthorized {
		t.Fatalf("old session should be gone, got %d", got)
	}
	if got := env.do(http.MethodGet, "/api/items", nil, second).Code; got != http.StatusOK {
		t.Fatalf("new session should work, got %d", got)
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	ck := env.login("alice", "pw1")

	rec := env.do(http.MethodPost, "/api/logout", nil, ck)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body)
	}
	cleared := testutil.Cookie(rec, "session")
	if cleared == nil || cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cleared)
	}

	if got := env.do(http.MethodGet, "/api/items", nil, ck).Code; got != http.StatusUnauthorized {
		t.Fatalf("replayed cookie after logout: expected 401, got %d", got)
	}
	if env.srv.Sessions.Len() != 0 {
		t.Fatalf("session still stored after logout")
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodPost, "/api/logout", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout without cookie: %d", rec.Code)
	}
}
