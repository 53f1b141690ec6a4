package feed

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/model"
)

func loaded(t *testing.T, fp *fakePosts) *Loader {
	t.Helper()
	if fp.pages == nil {
		fp.pages = map[int][]model.Post{1: posts(3, 2, 1)}
	}
	l := newLoader(t, fp, fakeGate{viewer})
	if _, err := l.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestCreatePrepends(t *testing.T) {
	fp := &fakePosts{createID: 10}
	l := loaded(t, fp)

	p, err := l.Create(context.Background(), model.PostInput{Content: "  hello  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.PostID != 10 || p.Content != "hello" || p.Author != "me@example.com" {
		t.Errorf("post = %+v", p)
	}
	if got := ids(l.Posts()); !slices.Equal(got, []int64{10, 3, 2, 1}) {
		t.Errorf("posts = %v", got)
	}

	if _, err := l.Create(context.Background(), model.PostInput{Content: " "}); !errors.Is(err, ErrEmptyPost) {
		t.Errorf("blank post err = %v", err)
	}
}

func TestDeleteForbiddenRestores(t *testing.T) {
	fp := &fakePosts{deleteErr: &api.Error{Status: 403, Kind: api.ErrPermissionDenied}}
	l := loaded(t, fp)

	err := l.Delete(context.Background(), 2)
	if !errors.Is(err, api.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if got := ids(l.Posts()); !slices.Equal(got, []int64{3, 2, 1}) {
		t.Errorf("posts = %v, want original order", got)
	}
}

func TestDeleteNotFoundStaysRemoved(t *testing.T) {
	fp := &fakePosts{deleteErr: &api.Error{Status: 404, Kind: api.ErrNotFound}}
	l := loaded(t, fp)

	if err := l.Delete(context.Background(), 2); err != nil {
		t.Fatalf("err = %v", err)
	}
	if got := ids(l.Posts()); !slices.Equal(got, []int64{3, 1}) {
		t.Errorf("posts = %v", got)
	}
}

func TestUpdateRollsBack(t *testing.T) {
	fp := &fakePosts{updateErr: &api.Error{Status: 403, Kind: api.ErrPermissionDenied}}
	l := loaded(t, fp)

	if err := l.Update(context.Background(), 2, "edited"); !errors.Is(err, api.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if p, _ := l.Post(2); p.Content != "post" {
		t.Errorf("content = %q after rejected edit", p.Content)
	}

	fp.updateErr = nil
	if err := l.Replace(context.Background(), 2, model.PostInput{Content: "edited", PostImg: "x.png"}); err != nil {
		t.Fatal(err)
	}
	if p, _ := l.Post(2); p.Content != "edited" || p.PostImg != "x.png" {
		t.Errorf("post = %+v", p)
	}
}

func TestUpdateVanishedPostIsRemoved(t *testing.T) {
	fp := &fakePosts{updateErr: &api.Error{Status: 404, Kind: api.ErrNotFound}}
	l := loaded(t, fp)

	_ = l.Update(context.Background(), 3, "edited")
	if got := ids(l.Posts()); !slices.Equal(got, []int64{2, 1}) {
		t.Errorf("posts = %v", got)
	}
}

func TestReload(t *testing.T) {
	fresh := posts(2)[0]
	fresh.Content = "changed"
	fresh.LikedBy = []string{"me@example.com", "x@example.com"}
	fp := &fakePosts{getPost: fresh}
	l := loaded(t, fp)

	p, err := l.Reload(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Liked || p.LikeCount != 2 {
		t.Errorf("reloaded = %+v", p)
	}
	if got, _ := l.Post(2); got.Content != "changed" {
		t.Errorf("cached = %+v", got)
	}

	fp.getErr = &api.Error{Status: 404, Kind: api.ErrNotFound}
	_, _ = l.Reload(context.Background(), 2)
	if _, ok := l.Post(2); ok {
		t.Error("vanished post still listed")
	}
}

func TestEnsureFetchesUnlistedPost(t *testing.T) {
	fp := &fakePosts{getPost: posts(9)[0]}
	l := newLoader(t, fp, fakeGate{viewer})

	p, err := l.Ensure(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if p.PostID != 9 {
		t.Errorf("post = %+v", p)
	}
	if _, ok := l.Post(9); !ok {
		t.Error("ensured post not listed")
	}

	// Already listed: served without a fetch.
	fp.getErr = errors.New("should not be called")
	if _, err := l.Ensure(context.Background(), 9); err != nil {
		t.Errorf("second Ensure: %v", err)
	}
}
