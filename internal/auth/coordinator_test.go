package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
	"github.com/existflow/instafeed/internal/session"
)

type fakeBackend struct {
	mu    sync.Mutex
	token string

	meCalls     atomic.Int32
	logoutCalls atomic.Int32
	meGate      chan struct{} // when set, Me blocks until closed
	meUser      model.User
	meErr       error
	loginSess   model.Session
	loginErr    error
	logoutErr   error
	updateEcho  *model.User
	updateErr   error
}

func (f *fakeBackend) Login(_ context.Context, email, _ string) (model.Session, error) {
	if f.loginErr != nil {
		return model.Session{}, f.loginErr
	}
	return f.loginSess, nil
}

func (f *fakeBackend) Register(ctx context.Context, email, password, _ string) (model.Session, error) {
	return f.Login(ctx, email, password)
}

func (f *fakeBackend) Logout(context.Context) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func (f *fakeBackend) Me(context.Context) (model.User, error) {
	f.meCalls.Add(1)
	if f.meGate != nil {
		<-f.meGate
	}
	return f.meUser, f.meErr
}

func (f *fakeBackend) UpdateMe(context.Context, model.UserPatch) (*model.User, error) {
	return f.updateEcho, f.updateErr
}

func (f *fakeBackend) SetToken(t string) {
	f.mu.Lock()
	f.token = t
	f.mu.Unlock()
}

func (f *fakeBackend) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func record(bus events.Bus, topics ...string) *recorder {
	r := &recorder{}
	for _, topic := range topics {
		bus.On(topic, func(e events.Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func setup(t *testing.T, backend Backend) (*Coordinator, *session.MemoryStore, events.Bus) {
	t.Helper()
	store := session.NewMemoryStore()
	bus := events.NewMemBus(events.MemBusConfig{})
	t.Cleanup(func() { _ = bus.Close() })
	return New(backend, store, bus, logger.Discard()), store, bus
}

func alice() model.User {
	return model.User{ID: 1, Email: "alice@example.com", Name: "Alice"}
}

func TestInitialStateUnknown(t *testing.T) {
	c, _, _ := setup(t, &fakeBackend{})
	if s := c.State(); s.Status != StatusUnknown || s.Known() {
		t.Fatalf("initial state = %+v", s)
	}
	select {
	case <-c.Ready():
		t.Fatal("Ready closed before any check")
	default:
	}
}

func TestConcurrentCheckAuthMakesOneRequest(t *testing.T) {
	fb := &fakeBackend{meGate: make(chan struct{}), meUser: alice()}
	c, store, _ := setup(t, fb)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan State, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.CheckAuth(context.Background())
			if err != nil {
				t.Errorf("CheckAuth: %v", err)
			}
			results <- s
		}()
	}

	// Let every caller reach the shared slot before the request finishes.
	deadline := time.After(2 * time.Second)
	for fb.meCalls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Me was never called")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(fb.meGate)
	wg.Wait()
	close(results)

	if n := fb.meCalls.Load(); n != 1 {
		t.Errorf("Me called %d times, want 1", n)
	}
	for s := range results {
		if !s.IsAuthenticated() || s.User.Email != "alice@example.com" {
			t.Errorf("state = %+v", s)
		}
	}
	if sess, _ := store.Load(context.Background()); !sess.Valid() {
		t.Error("identity was not persisted")
	}
}

func TestStoredSessionSkipsNetwork(t *testing.T) {
	fb := &fakeBackend{}
	c, store, _ := setup(t, fb)
	_ = store.Save(context.Background(), model.Session{User: alice(), Token: "stored"})

	s, err := c.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
	if !s.IsAuthenticated() || s.User.ID != 1 {
		t.Fatalf("state = %+v", s)
	}
	if n := fb.meCalls.Load(); n != 0 {
		t.Errorf("Me called %d times with a stored session", n)
	}
	if fb.Token() != "stored" {
		t.Errorf("token = %q, want stored", fb.Token())
	}
}

func TestCheckAuthFailureSettlesUnauthenticated(t *testing.T) {
	cases := map[string]error{
		"network":   &api.Error{Op: "GET /api/users/me", Kind: api.ErrNetwork},
		"malformed": &api.Error{Op: "GET /api/users/me", Kind: api.ErrMalformedResponse},
		"expired":   &api.Error{Op: "GET /api/users/me", Status: 401, Kind: api.ErrSessionExpired},
	}
	for name, meErr := range cases {
		t.Run(name, func(t *testing.T) {
			fb := &fakeBackend{meErr: meErr, token: "stale"}
			c, _, _ := setup(t, fb)

			s, _ := c.CheckAuth(context.Background())
			if s.Status != StatusUnauthenticated || s.User != nil {
				t.Fatalf("state = %+v", s)
			}
			select {
			case <-c.Ready():
			default:
				t.Fatal("Ready not closed after failed check")
			}
			if fb.Token() != "" {
				t.Error("stale token kept")
			}
		})
	}
}

type corruptStore struct {
	session.MemoryStore
	cleared atomic.Bool
}

func (s *corruptStore) Load(context.Context) (*model.Session, error) {
	if s.cleared.Load() {
		return nil, nil
	}
	return nil, session.ErrCorrupt
}

func (s *corruptStore) Clear(context.Context) error {
	s.cleared.Store(true)
	return nil
}

func TestCorruptSessionIsCleared(t *testing.T) {
	fb := &fakeBackend{meErr: &api.Error{Kind: api.ErrAuthRequired}}
	store := &corruptStore{}
	c := New(fb, store, nil, logger.Discard())

	s, err := c.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("CheckAuth: %v", err)
	}
	if s.Status != StatusUnauthenticated {
		t.Fatalf("state = %+v", s)
	}
	if !store.cleared.Load() {
		t.Error("corrupt session not cleared")
	}
}

func TestLogoutAlwaysClearsLocally(t *testing.T) {
	fb := &fakeBackend{
		loginSess: model.Session{User: alice(), Token: "t1"},
		logoutErr: &api.Error{Op: "POST /api/logout", Kind: api.ErrNetwork},
	}
	c, store, bus := setup(t, fb)
	rec := record(bus, events.TopicLogout)

	if _, err := c.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if s := c.State(); s.Status != StatusUnauthenticated || s.User != nil {
		t.Errorf("state after logout = %+v", s)
	}
	if sess, _ := store.Load(context.Background()); sess != nil {
		t.Errorf("store after logout = %+v", sess)
	}
	if fb.Token() != "" {
		t.Error("token survived logout")
	}
	if fb.logoutCalls.Load() != 1 {
		t.Errorf("server logout called %d times", fb.logoutCalls.Load())
	}
	if got := rec.all(); len(got) != 1 || got[0].Payload["email"] != "alice@example.com" {
		t.Errorf("logout events = %+v", got)
	}
}

func TestLoginScenario(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"user":{"id":1,"email":"a@x.com"}}}`))
	}))
	defer srv.Close()

	client := api.New(api.Options{BaseURL: srv.URL, Logger: logger.Discard()})
	c, store, bus := setup(t, client)
	rec := record(bus, events.TopicLogin)

	user, err := c.Login(context.Background(), "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if gotBody["email"] != "a@x.com" || gotBody["password"] != "secret1" {
		t.Errorf("request body = %v", gotBody)
	}

	want := model.User{ID: 1, Email: "a@x.com"}
	s := c.State()
	if !s.IsAuthenticated() || *s.User != want || user != want {
		t.Fatalf("state = %+v, user = %+v", s, user)
	}

	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("got %d login events", len(got))
	}
	if got[0].Payload["id"] != int64(1) || got[0].Payload["email"] != "a@x.com" {
		t.Errorf("payload = %v", got[0].Payload)
	}
	if sess, _ := store.Load(context.Background()); !sess.Valid() || sess.User.Email != "a@x.com" {
		t.Errorf("stored session = %+v", sess)
	}
}

func TestLoginFailure(t *testing.T) {
	fb := &fakeBackend{loginErr: &api.Error{Op: "POST /api/login", Status: 401, Kind: api.ErrInvalidCredentials, Message: "Invalid credentials"}}
	c, store, bus := setup(t, fb)
	rec := record(bus, events.TopicLogin)

	_, err := c.Login(context.Background(), "a@x.com", "wrong")
	if !errors.Is(err, api.ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if api.UserMessage(err) != "Invalid credentials" {
		t.Errorf("UserMessage = %q", api.UserMessage(err))
	}
	if s := c.State(); s.Status != StatusUnauthenticated {
		t.Errorf("state = %+v", s)
	}
	if sess, _ := store.Load(context.Background()); sess != nil {
		t.Error("failed login persisted a session")
	}
	if len(rec.all()) != 0 {
		t.Error("failed login published an event")
	}
}

func TestFailedLoginEndsActiveSession(t *testing.T) {
	fb := &fakeBackend{loginSess: model.Session{User: alice(), Token: "t"}}
	c, store, bus := setup(t, fb)
	rec := record(bus, events.TopicLogout)

	if _, err := c.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	fb.loginErr = &api.Error{Op: "POST /api/login", Status: 401, Kind: api.ErrInvalidCredentials, Message: "Invalid credentials"}
	if _, err := c.Login(context.Background(), "bob@example.com", "wrong"); err == nil {
		t.Fatal("second login succeeded")
	}

	if s := c.State(); s.Status != StatusUnauthenticated || s.User != nil {
		t.Errorf("state = %+v", s)
	}
	if fb.Token() != "" {
		t.Error("token kept after failed login")
	}
	if sess, _ := store.Load(context.Background()); sess != nil {
		t.Error("previous session survived failed login")
	}
	if got := rec.all(); len(got) != 1 || got[0].Payload["email"] != "alice@example.com" {
		t.Errorf("logout events = %+v", got)
	}
}

func TestLoginRejectsBlankCredentials(t *testing.T) {
	c, _, _ := setup(t, &fakeBackend{})
	if _, err := c.Login(context.Background(), "  ", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v", err)
	}
}

func TestSetUserMergesAndPersists(t *testing.T) {
	fb := &fakeBackend{loginSess: model.Session{User: alice(), Token: "t"}}
	c, store, bus := setup(t, fb)
	rec := record(bus, events.TopicStorage)

	if _, err := c.SetUser(context.Background(), model.UserPatch{Name: model.StringPtr("x")}); !errors.Is(err, api.ErrAuthRequired) {
		t.Fatalf("SetUser before login = %v", err)
	}

	_, _ = c.Login(context.Background(), "alice@example.com", "pw")
	u, err := c.SetUser(context.Background(), model.UserPatch{ProfileImg: model.StringPtr("https://img/a.png")})
	if err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if u.Name != "Alice" || u.ProfileImg == nil || *u.ProfileImg != "https://img/a.png" {
		t.Fatalf("merged = %+v", u)
	}
	sess, _ := store.Load(context.Background())
	if sess.User.ProfileImg == nil || sess.Token != "t" {
		t.Errorf("persisted = %+v", sess)
	}
	if got := rec.all(); len(got) != 1 || got[0].Payload["profileImg"] != "https://img/a.png" {
		t.Errorf("storage events = %+v", got)
	}
}

func TestUpdateProfileImage(t *testing.T) {
	echo := alice()
	echo.ProfileImg = model.StringPtr("https://cdn/a.png")
	fb := &fakeBackend{loginSess: model.Session{User: alice(), Token: "t"}, updateEcho: &echo}
	c, _, bus := setup(t, fb)
	rec := record(bus, events.TopicProfileUpdated)

	_, _ = c.Login(context.Background(), "alice@example.com", "pw")
	u, err := c.UpdateProfileImage(context.Background(), "a.png")
	if err != nil {
		t.Fatalf("UpdateProfileImage: %v", err)
	}
	if u.ProfileImg == nil || *u.ProfileImg != "https://cdn/a.png" {
		t.Errorf("user = %+v", u)
	}
	if got := rec.all(); len(got) != 1 || got[0].Payload["profileImg"] != "https://cdn/a.png" {
		t.Errorf("profile events = %+v", got)
	}
}

func TestHandleUnauthorized(t *testing.T) {
	fb := &fakeBackend{loginSess: model.Session{User: alice(), Token: "t"}}
	c, store, bus := setup(t, fb)
	rec := record(bus, events.TopicLogout)

	c.HandleUnauthorized() // no-op while not logged in
	_, _ = c.Login(context.Background(), "alice@example.com", "pw")
	c.HandleUnauthorized()
	c.HandleUnauthorized()

	if c.IsAuthenticated() {
		t.Error("still authenticated after 401")
	}
	if sess, _ := store.Load(context.Background()); sess != nil {
		t.Error("session survived 401")
	}
	if got := rec.all(); len(got) != 1 || got[0].Payload["reason"] != "session_expired" {
		t.Errorf("logout events = %+v", got)
	}
}
