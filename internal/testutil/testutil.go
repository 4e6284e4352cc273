package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"

	"todoTracker/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The name should be unique per test; connections with the same name share data.
func OpenInMemoryDB(t *testing.T, name string) *sqlx.DB {
	t.Helper()
	// We use a shared cache memory database so that multiple connections share the same DB if needed.
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	d, err := db.Open(db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// SignHS256 returns a token signed with secret carrying a session id and an
// expiry, shaped like the ones the session store issues.
func SignHS256(t *testing.T, secret, sessionID string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"jti": sessionID,
		"exp": expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// JSONRequest builds a request with body marshalled as JSON. A string body is sent verbatim.
func JSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// DecodeJSON unmarshals the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// Cookie returns the named cookie set by the recorded response, or nil.
func Cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
