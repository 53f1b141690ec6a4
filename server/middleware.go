package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/existflow/instafeed/internal/model"
	"github.com/labstack/echo/v4"
)

const (
	ctxUser    = "user"
	ctxSession = "session_id"
)

// authMiddleware checks the bearer token and loads its user
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return fail(c, http.StatusUnauthorized, "authorization required")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth {
			return fail(c, http.StatusUnauthorized, "invalid authorization format")
		}

		cl, err := s.tokens.parse(token)
		if err != nil {
			return fail(c, http.StatusUnauthorized, "invalid token")
		}

		// Revoked by logout or expired
		userID, err := s.store.sessionUser(c.Request().Context(), cl.ID)
		if errors.Is(err, errNotFound) || (err == nil && userID != cl.UserID) {
			return fail(c, http.StatusUnauthorized, "session expired")
		}
		if err != nil {
			return s.internal(c, "session lookup", err)
		}

		u, err := s.store.userByID(c.Request().Context(), userID)
		if errors.Is(err, errNotFound) {
			return fail(c, http.StatusUnauthorized, "user not found")
		}
		if err != nil {
			return s.internal(c, "user lookup", err)
		}

		c.Set(ctxUser, u.User)
		c.Set(ctxSession, cl.ID)
		return next(c)
	}
}

func currentUser(c echo.Context) model.User {
	u, _ := c.Get(ctxUser).(model.User)
	return u
}
