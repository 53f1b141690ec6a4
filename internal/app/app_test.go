package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/existflow/instafeed/internal/auth"
	"github.com/existflow/instafeed/internal/config"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/server"
)

func newBackend(t *testing.T) string {
	t.Helper()
	s, err := server.New(server.Config{
		DatabaseURL: filepath.Join(t.TempDir(), "server.db"),
		JWTSecret:   "test-secret",
		PageSize:    2,
		SeedDemo:    true,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})
	return ts.URL
}

func newApp(t *testing.T, url string) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ServerURL = url
	cfg.ReadRetries = 0
	cfg.AutoRefresh = 0
	cfg.SessionBackend = config.SessionFile
	cfg.SessionPath = filepath.Join(t.TempDir(), "session.json")

	a, err := New(cfg, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, newBackend(t))

	state, err := a.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.Status != auth.StatusUnauthenticated {
		t.Fatalf("status = %v, want unauthenticated", state.Status)
	}

	sub := a.Bus.Subscribe(events.TopicLogin, events.TopicLogout)
	defer sub.Close()

	if _, err := a.Auth.Login(ctx, "af@naver.com", server.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if ev := <-sub.Events(); ev.Topic != events.TopicLogin || ev.Payload["email"] != "af@naver.com" {
		t.Errorf("login event = %+v", ev)
	}

	// Three seeded posts at two per page.
	if n, err := a.Feed.Load(ctx); err != nil || n != 2 {
		t.Fatalf("first page: n=%d err=%v", n, err)
	}
	if n, err := a.Feed.Load(ctx); err != nil || n != 1 {
		t.Fatalf("second page: n=%d err=%v", n, err)
	}
	if n, _ := a.Feed.Load(ctx); n != 0 || a.Feed.HasMore() {
		t.Fatalf("third page: n=%d hasMore=%v", n, a.Feed.HasMore())
	}

	posts := a.Feed.Posts()
	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(posts))
	}
	first := posts[0]

	res, err := a.Likes.Toggle(ctx, first.PostID)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if res.Liked == first.Liked {
		t.Errorf("like state did not flip")
	}
	got, _ := a.Feed.Post(first.PostID)
	if got.Liked != res.Liked || got.LikeCount != res.TotalLikes {
		t.Errorf("cached post = liked %v count %d, server said %+v", got.Liked, got.LikeCount, res)
	}

	c, err := a.Comments.Add(ctx, first.PostID, "nice")
	if err != nil {
		t.Fatalf("Add comment: %v", err)
	}
	list, err := a.Comments.List(ctx, first.PostID, true)
	if err != nil {
		t.Fatalf("List comments: %v", err)
	}
	found := false
	for _, x := range list {
		if x.ID == c.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("new comment %d missing from %+v", c.ID, list)
	}

	if err := a.Auth.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if ev := <-sub.Events(); ev.Topic != events.TopicLogout {
		t.Errorf("logout event = %+v", ev)
	}
	if a.Auth.IsAuthenticated() {
		t.Error("still authenticated after logout")
	}
	if n := len(a.Feed.Posts()); n != 0 {
		t.Errorf("feed kept %d posts after logout", n)
	}
	if n := len(a.Comments.Cached(first.PostID)); n != 0 {
		t.Errorf("comments kept %d entries after logout", n)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	url := newBackend(t)
	path := filepath.Join(t.TempDir(), "session.json")

	open := func() *App {
		cfg := config.DefaultConfig()
		cfg.ServerURL = url
		cfg.SessionBackend = config.SessionFile
		cfg.SessionPath = path
		cfg.SessionPassphrase = "pass"
		a, err := New(cfg, WithLogger(logger.Discard()))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return a
	}

	first := open()
	if _, err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Auth.Login(ctx, "user2@example.com", server.DemoPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_ = first.Close()

	second := open()
	defer second.Close()
	state, err := second.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsAuthenticated() || state.User.Email != "user2@example.com" {
		t.Fatalf("state after restart = %+v", state)
	}
	if n, err := second.Feed.Load(ctx); err != nil || n == 0 {
		t.Fatalf("Load after restart: n=%d err=%v", n, err)
	}
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SessionBackend = "floppy"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected config error")
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SessionBackend = config.SessionSQLite
	cfg.SessionPath = filepath.Join(t.TempDir(), "sessions.db")

	store, closer, err := OpenStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer()

	sess, err := store.Load(context.Background())
	if err != nil || sess != nil {
		t.Fatalf("empty store: sess=%v err=%v", sess, err)
	}
}
