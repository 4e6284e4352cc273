package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"todoTracker/internal/auth"
	"todoTracker/repository"
)

type credentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var in credentialsInput
	if err := c.Bind(&in); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid JSON body")
	}
	_, err := s.Credentials.Register(c.Request().Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, repository.ErrInvalidInput):
		return errorJSON(c, http.StatusBadRequest, "Username & password required")
	case errors.Is(err, repository.ErrConflict):
		return errorJSON(c, http.StatusBadRequest, "Username already exists")
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return messageJSON(c, http.StatusCreated, "User registered successfully")
}

func (s *Server) handleLogin(c echo.Context) error {
	var in credentialsInput
	if err := c.Bind(&in); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid JSON body")
	}
	uid, err := s.Credentials.Authenticate(c.Request().Context(), in.Username, in.Password)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return errorJSON(c, http.StatusUnauthorized, "Invalid credentials")
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	// A fresh login replaces whatever session the client was holding.
	if old, err := c.Cookie(s.Config.Auth.CookieName); err == nil {
		s.Sessions.Destroy(old.Value)
	}
	token, expiresAt, err := s.Sessions.Create(uid)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	c.SetCookie(s.sessionCookie(token, expiresAt))
	return c.JSON(http.StatusOK, echo.Map{"message": "Login successful", "user_id": uid})
}

func (s *Server) handleLogout(c echo.Context) error {
	if ck, err := c.Cookie(s.Config.Auth.CookieName); err == nil {
		s.Sessions.Destroy(ck.Value)
	}
	expired := s.sessionCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	c.SetCookie(expired)
	return messageJSON(c, http.StatusOK, "Logged out")
}

func (s *Server) sessionCookie(value string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.Config.Auth.CookieName,
		Value:    value,
		Path:     s.Config.Auth.CookiePath,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.Config.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
