package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expires_at"`
}

// handleRegister handles user registration
func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email and password required")
	}
	if !strings.Contains(req.Email, "@") {
		return fail(c, http.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "password must be at least 6 characters")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(req.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return s.internal(c, "bcrypt", err)
	}

	user, err := s.store.createUser(c.Request().Context(), req.Email, name, string(hash))
	if errors.Is(err, errDuplicate) {
		return fail(c, http.StatusConflict, "email already exists")
	}
	if err != nil {
		return s.internal(c, "create user", err)
	}

	s.log.Info("User registered", logger.F("email", user.Email))
	return s.respondWithSession(c, http.StatusCreated, user)
}

// handleLogin handles user login
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}

	u, err := s.store.userByEmail(c.Request().Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, errNotFound) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return s.internal(c, "find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	s.log.Info("User logged in", logger.F("email", u.Email))
	return s.respondWithSession(c, http.StatusOK, u.User)
}

func (s *Server) respondWithSession(c echo.Context, status int, user model.User) error {
	token, sessionID, expiresAt, err := s.tokens.sign(user.ID)
	if err != nil {
		return s.internal(c, "sign token", err)
	}
	if err := s.store.createSession(c.Request().Context(), sessionID, user.ID, expiresAt); err != nil {
		return s.internal(c, "create session", err)
	}
	return ok(c, status, authResponse{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(timeLayout),
	})
}

// handleLogout revokes the current session
func (s *Server) handleLogout(c echo.Context) error {
	id, _ := c.Get(ctxSession).(string)
	if err := s.store.deleteSession(c.Request().Context(), id); err != nil {
		return s.internal(c, "delete session", err)
	}
	return ok(c, http.StatusOK, nil)
}

// handleMe returns current user info
func (s *Server) handleMe(c echo.Context) error {
	return ok(c, http.StatusOK, currentUser(c))
}

// handleUpdateMe patches name and profile image
func (s *Server) handleUpdateMe(c echo.Context) error {
	var patch model.UserPatch
	if err := c.Bind(&patch); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if patch.Name == nil && patch.ProfileImg == nil {
		return fail(c, http.StatusBadRequest, "nothing to update")
	}

	user := currentUser(c)
	if err := s.store.updateUser(c.Request().Context(), user.ID, patch); err != nil {
		return s.internal(c, "update user", err)
	}
	return ok(c, http.StatusOK, patch.Apply(user))
}
