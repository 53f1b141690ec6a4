package comments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/cache"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
)

type fakeGate struct{ user *model.User }

func (g fakeGate) User() (model.User, bool) {
	if g.user == nil {
		return model.User{}, false
	}
	return *g.user, true
}

var me = &model.User{ID: 1, Email: "me@example.com"}

type fakeBackend struct {
	mu        sync.Mutex
	calls     int
	list      []model.Comment
	listErr   error
	created   model.Comment
	createErr error
	deleteErr error

	// createHook runs inside CreateComment, before it returns
	createHook func()
	deleteHook func()
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) ListComments(context.Context, int64) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.list, f.listErr
}

func (f *fakeBackend) setList(list []model.Comment) {
	f.mu.Lock()
	f.list = list
	f.mu.Unlock()
}

func (f *fakeBackend) CreateComment(context.Context, int64, string) (model.Comment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.createHook != nil {
		f.createHook()
	}
	return f.created, f.createErr
}

func (f *fakeBackend) DeleteComment(context.Context, int64, int64) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.deleteHook != nil {
		f.deleteHook()
	}
	return f.deleteErr
}

func comment(id int64, text string) model.Comment {
	return model.Comment{ID: id, PostID: 7, UserID: "other@example.com", Comment: text}
}

func newService(t *testing.T, fb *fakeBackend, gate Gate) (*Service, *cache.Cache[model.Comment]) {
	t.Helper()
	c := cache.New[model.Comment]()
	return New(fb, gate, c, Options{TTL: time.Minute, Logger: logger.Discard()}), c
}

func TestListUsesFreshCache(t *testing.T) {
	fb := &fakeBackend{list: []model.Comment{comment(1, "a"), comment(2, "b")}}
	s, _ := newService(t, fb, fakeGate{})

	for i := 0; i < 3; i++ {
		got, err := s.List(context.Background(), 7, false)
		if err != nil || len(got) != 2 {
			t.Fatalf("List = %v, %v", got, err)
		}
	}
	if fb.count() != 1 {
		t.Errorf("fetched %d times, want 1", fb.count())
	}
	_, _ = s.List(context.Background(), 7, true)
	if fb.count() != 2 {
		t.Errorf("forced list did not fetch")
	}
}

func TestAddRejectedWhenUnauthenticated(t *testing.T) {
	fb := &fakeBackend{list: []model.Comment{comment(1, "a")}}
	s, c := newService(t, fb, fakeGate{})
	_, _ = s.List(context.Background(), 7, false)
	before, _, _ := c.Read(Key(7))
	calls := fb.count()

	_, err := s.Add(context.Background(), 7, "hello")
	if !errors.Is(err, api.ErrAuthRequired) {
		t.Fatalf("err = %v", err)
	}
	if fb.count() != calls {
		t.Error("unauthenticated add hit the network")
	}
	after, _, _ := c.Read(Key(7))
	if len(after) != len(before) || after[0] != before[0] {
		t.Errorf("cache changed: %v -> %v", before, after)
	}
}

func TestAddRejectsBlank(t *testing.T) {
	fb := &fakeBackend{}
	s, _ := newService(t, fb, fakeGate{me})
	if _, err := s.Add(context.Background(), 7, " \n\t "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("err = %v", err)
	}
	if fb.count() != 0 {
		t.Error("blank comment hit the network")
	}
}

func TestAddIsOptimisticAndReconciled(t *testing.T) {
	fb := &fakeBackend{created: model.Comment{ID: 42, PostID: 7, UserID: "me@example.com", Comment: "hello"}}
	s, _ := newService(t, fb, fakeGate{me})

	var during []model.Comment
	fb.createHook = func() { during = s.Cached(7) }

	got, err := s.Add(context.Background(), 7, " hello ")
	if err != nil {
		t.Fatal(err)
	}
	if len(during) != 1 || !during[0].Pending() || during[0].Comment != "hello" || during[0].UserID != "me@example.com" {
		t.Fatalf("optimistic entry = %+v", during)
	}
	if got.ID != 42 {
		t.Errorf("created = %+v", got)
	}
	list := s.Cached(7)
	if len(list) != 1 || list[0].ID != 42 || list[0].Pending() {
		t.Errorf("reconciled list = %+v", list)
	}
}

func TestAddFailureRollsBack(t *testing.T) {
	fb := &fakeBackend{
		list:      []model.Comment{comment(1, "a")},
		createErr: &api.Error{Kind: api.ErrNetwork},
	}
	s, _ := newService(t, fb, fakeGate{me})
	_, _ = s.List(context.Background(), 7, false)

	if _, err := s.Add(context.Background(), 7, "hello"); !errors.Is(err, api.ErrNetwork) {
		t.Fatalf("err = %v", err)
	}
	if list := s.Cached(7); len(list) != 1 || list[0].ID != 1 {
		t.Errorf("list after rollback = %+v", list)
	}
}

func TestDeleteForbiddenRestores(t *testing.T) {
	fb := &fakeBackend{
		list:      []model.Comment{comment(1, "a"), comment(2, "b"), comment(3, "c")},
		deleteErr: &api.Error{Status: 403, Kind: api.ErrPermissionDenied, Message: "Forbidden"},
	}
	s, _ := newService(t, fb, fakeGate{me})
	_, _ = s.List(context.Background(), 7, false)

	err := s.Delete(context.Background(), 7, 2)
	if !errors.Is(err, api.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	list := s.Cached(7)
	if len(list) != 3 || list[1].ID != 2 {
		t.Errorf("list = %+v", list)
	}
}

func TestDeleteNotFoundStaysRemoved(t *testing.T) {
	fb := &fakeBackend{
		list:      []model.Comment{comment(1, "a"), comment(2, "b")},
		deleteErr: &api.Error{Status: 404, Kind: api.ErrNotFound},
	}
	s, _ := newService(t, fb, fakeGate{me})
	_, _ = s.List(context.Background(), 7, false)

	if err := s.Delete(context.Background(), 7, 2); err != nil {
		t.Fatal(err)
	}
	if list := s.Cached(7); len(list) != 1 || list[0].ID != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestListDuringDeleteRefetchesAfterwards(t *testing.T) {
	fb := &fakeBackend{list: []model.Comment{comment(1, "a"), comment(2, "b"), comment(3, "c")}}
	s, _ := newService(t, fb, fakeGate{me})
	_, _ = s.List(context.Background(), 7, false)

	var during []model.Comment
	fb.deleteHook = func() {
		// The server still lists 2; 3 was removed elsewhere.
		fb.setList([]model.Comment{comment(1, "a"), comment(2, "b")})
		during, _ = s.List(context.Background(), 7, true)
		fb.setList([]model.Comment{comment(1, "a")})
	}

	if err := s.Delete(context.Background(), 7, 2); err != nil {
		t.Fatal(err)
	}
	if len(during) != 2 || during[0].ID != 1 || during[1].ID != 3 {
		t.Errorf("list while delete pending = %+v", during)
	}
	if list := s.Cached(7); len(list) != 1 || list[0].ID != 1 {
		t.Errorf("list after delete = %+v", list)
	}
	if fb.count() != 4 {
		t.Errorf("backend calls = %d, want list, delete, list, refetch", fb.count())
	}
}

func TestDeleteUnsavedComment(t *testing.T) {
	s, _ := newService(t, &fakeBackend{}, fakeGate{me})
	if err := s.Delete(context.Background(), 7, 0); !errors.Is(err, ErrNotSaved) {
		t.Errorf("err = %v", err)
	}
}
