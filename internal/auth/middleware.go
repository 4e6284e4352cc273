package auth

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireSession returns Echo middleware that resolves the session cookie and
// injects the user id into the request context. Requests without a live
// session get 401.
func RequireSession(sessions *SessionStore, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Add(echo.HeaderVary, "Cookie")
			ck, err := c.Cookie(cookieName)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			uid, err := sessions.Resolve(ck.Value)
			if err != nil {
				log.Printf("session rejected: %v", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			req := c.Request()
			c.SetRequest(req.WithContext(WithUserID(req.Context(), uid)))
			return next(c)
		}
	}
}
