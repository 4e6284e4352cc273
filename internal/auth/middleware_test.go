package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequireSession(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	tok, _, _ := s.Create(99)
	mw := RequireSession(s, "session")

	var seen int64
	next := func(c echo.Context) error {
		id, ok := UserIDFromContext(c.Request().Context())
		if !ok {
			t.Fatalf("user id not injected")
		}
		seen = id
		return c.NoContent(http.StatusOK)
	}

	e := echo.New()
	cases := []struct {
		name   string
		cookie *http.Cookie
		want   int
	}{
		{"no cookie", nil, http.StatusUnauthorized},
		{"bad cookie", &http.Cookie{Name: "session", Value: "bogus"}, http.StatusUnauthorized},
		{"other cookie name", &http.Cookie{Name: "sid", Value: tok}, http.StatusUnauthorized},
		{"valid", &http.Cookie{Name: "session", Value: tok}, http.StatusOK},
	}
	for _, tc := range cases {
		seen = 0
		req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
		if tc.cookie != nil {
			req.AddCookie(tc.cookie)
		}
		rec := httptest.NewRecorder()
		err := mw(next)(e.NewContext(req, rec))
		if tc.want == http.StatusOK {
			if err != nil || rec.Code != http.StatusOK || seen != 99 {
				t.Errorf("%s: err=%v code=%d seen=%d", tc.name, err, rec.Code, seen)
			}
			continue
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != tc.want {
			t.Errorf("%s: expected HTTP %d, got %v", tc.name, tc.want, err)
		}
		if seen != 0 {
			t.Errorf("%s: handler must not run", tc.name)
		}
	}
}
