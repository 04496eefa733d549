package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meeting-copilot/errors"
	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
)

// SessionContextKey is the echo context key holding the resolved *live.Session
const SessionContextKey = "live_session"

// SessionLookup resolves a live session id
type SessionLookup interface {
	Get(id string) (*live.Session, error)
}

// RequireSession middleware: resolve :id into a live session or answer 404
func RequireSession(sessions SessionLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Param("id")
			s, err := sessions.Get(id)
			if err != nil {
				appErr := errors.ErrSessionNotFound(id)
				return c.JSON(appErr.HTTPCode, map[string]interface{}{
					"code":    appErr.Code,
					"message": appErr.Message,
					"details": appErr.Details,
				})
			}
			c.Set(SessionContextKey, s)
			return next(c)
		}
	}
}

// SessionFrom returns the session stored by RequireSession
func SessionFrom(c echo.Context) (*live.Session, bool) {
	s, ok := c.Get(SessionContextKey).(*live.Session)
	return s, ok
}
