package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/existflow/instafeed/internal/db"
	"github.com/existflow/instafeed/internal/model"
	"github.com/redis/go-redis/v9"
)

func sample() model.Session {
	return model.Session{
		User:  model.User{ID: 7, Email: "ada@example.com", Name: "Ada"},
		Token: "tok-123",
	}
}

// exercise runs the common contract against any Store
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("Load on empty store = %v, %v; want nil, nil", got, err)
	}

	if err := s.Save(ctx, sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.User.Email != "ada@example.com" || got.Token != "tok-123" || got.User.ID != 7 {
		t.Fatalf("Load = %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("Load after Clear = %v, %v", got, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestFileStorePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir", "session.json")
	exercise(t, NewFileStore(path, ""))
}

func TestFileStoreSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path, "correct horse")
	exercise(t, s)

	if err := s.Save(context.Background(), sample()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "tok-123") || strings.Contains(string(raw), "ada@example.com") {
		t.Error("sealed file contains plaintext")
	}

	wrong := NewFileStore(path, "battery staple")
	if _, err := wrong.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load with wrong passphrase = %v, want ErrCorrupt", err)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	cases := map[string]string{
		"not json":    "{{{",
		"no identity": `{"user":{"email":""},"token":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if err := os.WriteFile(path, []byte(body), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := NewFileStore(path, "").Load(context.Background())
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Load = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestSQLiteStore(t *testing.T) {
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer d.Close()
	exercise(t, NewSQLiteStore(d))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("INSTAFEED_TEST_REDIS")
	if addr == "" {
		t.Skip("INSTAFEED_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	s := NewRedisStore(client, "test-"+t.Name(), 0)
	defer s.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	exercise(t, s)
}
