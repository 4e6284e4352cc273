package httpapi

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"error": msg})
}

func messageJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, echo.Map{"message": msg})
}

// errorHandler renders framework errors (404, 405, 401 from middleware) in the
// same {"error": ...} envelope the handlers use.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		log.Printf("unhandled error on %s %s: %v", c.Request().Method, c.Path(), err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = errorJSON(c, code, msg)
}
