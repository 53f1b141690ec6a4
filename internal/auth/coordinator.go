// Package auth owns the login state of the client. It is the only
// writer of the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
	"github.com/existflow/instafeed/internal/session"
	"golang.org/x/sync/singleflight"
)

// ErrMissingCredentials is returned by Login and Register before any request
var ErrMissingCredentials = errors.New("email and password are required")

// logoutTimeout bounds the best-effort server logout
const logoutTimeout = 5 * time.Second

// Backend is the part of the API client the coordinator needs
type Backend interface {
	Login(ctx context.Context, email, password string) (model.Session, error)
	Register(ctx context.Context, email, password, name string) (model.Session, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (model.User, error)
	UpdateMe(ctx context.Context, patch model.UserPatch) (*model.User, error)
	SetToken(token string)
	Token() string
}

// Coordinator tracks AuthState and keeps the session store in step with it
type Coordinator struct {
	api   Backend
	store session.Store
	bus   events.Bus
	log   *logger.Logger

	checks singleflight.Group

	mu        sync.RWMutex
	state     State
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a coordinator in StatusUnknown. Call CheckAuth to settle it.
func New(backend Backend, store session.Store, bus events.Bus, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.L()
	}
	return &Coordinator{
		api:   backend,
		store: store,
		bus:   bus,
		log:   log.Component("auth"),
		ready: make(chan struct{}),
	}
}

// State returns a copy of the current AuthState
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// IsAuthenticated reports whether a user is logged in
func (c *Coordinator) IsAuthenticated() bool {
	return c.State().IsAuthenticated()
}

// User returns the logged in user
func (c *Coordinator) User() (model.User, bool) {
	s := c.State()
	if !s.IsAuthenticated() {
		return model.User{}, false
	}
	return *s.User, true
}

// RequireAuth returns api.ErrAuthRequired unless a user is logged in
func (c *Coordinator) RequireAuth() error {
	if !c.IsAuthenticated() {
		return api.ErrAuthRequired
	}
	return nil
}

// Ready is closed once the state has left StatusUnknown
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until the first check settles and returns the state
func (c *Coordinator) Wait(ctx context.Context) (State, error) {
	select {
	case <-c.ready:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

// CheckAuth settles AuthState. A stored session is adopted without a
// request; otherwise the server is asked who we are. Concurrent callers
// share one check. The returned error is the reason the check ended
// unauthenticated, if any; the state is settled either way.
func (c *Coordinator) CheckAuth(ctx context.Context) (State, error) {
	ch := c.checks.DoChan("check", func() (any, error) {
		// The check outlives any single caller so joined callers still get an answer.
		return nil, c.check(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug("Joined in-flight auth check")
		}
		return c.State(), res.Err
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

func (c *Coordinator) check(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn("Discarding unreadable session", logger.Err(err))
		c.clearStore(ctx)
		sess = nil
	}

	if sess.Valid() {
		c.api.SetToken(sess.Token)
		c.setState(State{Status: StatusAuthenticated, User: &sess.User})
		c.log.Debug("Session restored", logger.F("email", sess.User.Email))
		return nil
	}

	user, err := c.api.Me(ctx)
	if err != nil {
		c.log.Info("Not authenticated", logger.Err(err))
		c.clearStore(ctx)
		c.api.SetToken("")
		c.setState(State{Status: StatusUnauthenticated})
		if errors.Is(err, api.ErrAuthRequired) || errors.Is(err, api.ErrSessionExpired) {
			return nil
		}
		return err
	}

	if err := c.store.Save(ctx, model.Session{User: user, Token: c.api.Token()}); err != nil {
		c.log.Warn("Failed to persist session", logger.Err(err))
	}
	c.setState(State{Status: StatusAuthenticated, User: &user})
	c.log.Info("Authenticated from server", logger.F("email", user.Email))
	return nil
}

// Login exchanges credentials for a session
func (c *Coordinator) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, ErrMissingCredentials
	}
	sess, err := c.api.Login(ctx, email, password)
	return c.adopt(ctx, "login", sess, err)
}

// Register creates an account and logs into it
func (c *Coordinator) Register(ctx context.Context, email, password, name string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, ErrMissingCredentials
	}
	sess, err := c.api.Register(ctx, email, password, strings.TrimSpace(name))
	return c.adopt(ctx, "register", sess, err)
}

func (c *Coordinator) adopt(ctx context.Context, op string, sess model.Session, err error) (model.User, error) {
	if err != nil {
		c.log.Warn("Authentication failed", logger.F("op", op), logger.Err(err))
		// A failed login ends whatever session was active before it.
		prev := c.setState(State{Status: StatusUnauthenticated})
		if prev.IsAuthenticated() {
			c.clearStore(context.WithoutCancel(ctx))
			c.api.SetToken("")
			c.publish(events.TopicLogout, map[string]any{"email": prev.User.Email, "reason": op + "_failed"})
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	c.api.SetToken(sess.Token)
	if err := c.store.Save(ctx, sess); err != nil {
		c.log.Warn("Failed to persist session", logger.Err(err))
	}
	user := sess.User
	c.setState(State{Status: StatusAuthenticated, User: &user})
	c.log.Info("Logged in", logger.F("op", op), logger.F("email", user.Email))
	c.publish(events.TopicLogin, userPayload(user))
	return user, nil
}

// Logout ends the session. The server call is best effort; locally the
// session is always cleared.
func (c *Coordinator) Logout(ctx context.Context) error {
	if c.api.Token() != "" {
		lctx, cancel := context.WithTimeout(ctx, logoutTimeout)
		if err := c.api.Logout(lctx); err != nil {
			c.log.Warn("Server logout failed, clearing locally", logger.Err(err))
		}
		cancel()
	}

	err := c.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		c.log.Error("Failed to clear session store", logger.Err(err))
	}
	c.api.SetToken("")
	prev := c.setState(State{Status: StatusUnauthenticated})
	c.log.Info("Logged out")

	payload := map[string]any{}
	if prev.User != nil {
		payload["email"] = prev.User.Email
	}
	c.publish(events.TopicLogout, payload)
	return err
}

// HandleUnauthorized reacts to a 401 on an authenticated call
func (c *Coordinator) HandleUnauthorized() {
	if c.State().Status != StatusAuthenticated {
		return
	}
	c.clearStore(context.Background())
	c.api.SetToken("")
	c.setState(State{Status: StatusUnauthenticated})
	c.log.Warn("Session expired")
	c.publish(events.TopicLogout, map[string]any{"reason": "session_expired"})
}

// SetUser shallow-merges patch into the current identity and persists it
func (c *Coordinator) SetUser(ctx context.Context, patch model.UserPatch) (model.User, error) {
	c.mu.Lock()
	if !c.state.IsAuthenticated() {
		c.mu.Unlock()
		return model.User{}, api.ErrAuthRequired
	}
	merged := patch.Apply(*c.state.User)
	c.state.User = &merged
	c.mu.Unlock()

	if err := c.store.Save(ctx, model.Session{User: merged, Token: c.api.Token()}); err != nil {
		c.log.Warn("Failed to persist session", logger.Err(err))
	}

	payload := patch.Fields()
	payload["key"] = "user"
	c.publish(events.TopicStorage, payload)
	return merged, nil
}

// UpdateProfileImage sets the profile image on the server, then locally.
// An empty url removes the image.
func (c *Coordinator) UpdateProfileImage(ctx context.Context, url string) (model.User, error) {
	if err := c.RequireAuth(); err != nil {
		return model.User{}, err
	}
	patch := model.UserPatch{ProfileImg: model.StringPtr(url)}
	echoed, err := c.api.UpdateMe(ctx, patch)
	if err != nil {
		return model.User{}, fmt.Errorf("update profile image: %w", err)
	}
	if echoed != nil {
		img := ""
		if echoed.ProfileImg != nil {
			img = *echoed.ProfileImg
		}
		patch.ProfileImg = &img
	}

	user, err := c.SetUser(ctx, patch)
	if err != nil {
		return model.User{}, err
	}
	c.publish(events.TopicProfileUpdated, map[string]any{
		"email":      user.Email,
		"profileImg": *patch.ProfileImg,
	})
	return user, nil
}

// setState swaps the state and returns the previous one
func (c *Coordinator) setState(s State) State {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.markReady()
	return prev
}

func (c *Coordinator) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Coordinator) clearStore(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("Failed to clear session store", logger.Err(err))
	}
}

func (c *Coordinator) publish(topic string, payload map[string]any) {
	if c.bus != nil {
		c.bus.Publish(events.New(topic, payload))
	}
}
