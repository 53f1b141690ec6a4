package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/existflow/instafeed/internal/model"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Login posts credentials and returns the new session
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	return c.authenticate(ctx, "/api/login", credentials{Email: email, Password: password})
}

// Register creates an account and returns its session
func (c *Client) Register(ctx context.Context, email, password, name string) (model.Session, error) {
	return c.authenticate(ctx, "/api/register", credentials{Email: email, Password: password, Name: name})
}

func (c *Client) authenticate(ctx context.Context, path string, body credentials) (model.Session, error) {
	r := request{method: http.MethodPost, path: path, body: body}
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return model.Session{}, err
	}
	env, err := ParseUserEnvelope(raw)
	if err != nil {
		return model.Session{}, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Err: err}
	}
	return model.Session{User: env.User, Token: env.Token}, nil
}

// Logout ends the server session. The 401 hook is not fired.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/logout", authed: true, noHook: true}, nil)
}

// Me returns the identity behind the current token
func (c *Client) Me(ctx context.Context) (model.User, error) {
	r := request{method: http.MethodGet, path: "/api/users/me", authed: true, idempotent: true}
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return model.User{}, err
	}
	env, err := ParseUserEnvelope(raw)
	if err != nil {
		return model.User{}, &Error{Op: r.op(), Status: http.StatusOK, Kind: ErrMalformedResponse, Err: err}
	}
	return env.User, nil
}

// UpdateMe patches the current user. The returned user is nil when the
// server acknowledged without echoing the identity back.
func (c *Client) UpdateMe(ctx context.Context, patch model.UserPatch) (*model.User, error) {
	r := request{method: http.MethodPatch, path: "/api/users/me", body: patch, authed: true}
	var raw json.RawMessage
	if err := c.do(ctx, r, &raw); err != nil {
		return nil, err
	}
	env, err := ParseUserEnvelope(raw)
	if err != nil {
		return nil, nil
	}
	return &env.User, nil
}
