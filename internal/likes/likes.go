// Package likes toggles likes on feed posts optimistically.
package likes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/cache"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/feed"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
)

var (
	// ErrInFlight is returned when the post already has a toggle awaiting the server
	ErrInFlight = errors.New("like change already in progress")
	// ErrUnknownPost is returned for posts that are not in the feed list
	ErrUnknownPost = errors.New("post is not in the feed")
)

// Backend is the part of the API client likes need
type Backend interface {
	SetLike(ctx context.Context, id int64, liked bool) (model.LikeResult, error)
}

// Gate tells the toggler who is logged in
type Gate interface {
	User() (model.User, bool)
}

// Options configures a Toggler
type Options struct {
	Bus    events.Bus
	Logger *logger.Logger
}

// Toggler flips the viewer's like on a post in the feed cache
type Toggler struct {
	api   Backend
	gate  Gate
	cache *cache.Cache[model.FeedPost]
	bus   events.Bus
	log   *logger.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// New creates a toggler over the feed entry of c
func New(backend Backend, gate Gate, c *cache.Cache[model.FeedPost], opts Options) *Toggler {
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	return &Toggler{
		api:      backend,
		gate:     gate,
		cache:    c,
		bus:      opts.Bus,
		log:      log.Component("likes"),
		inFlight: make(map[int64]struct{}),
	}
}

// Toggle flips the like at once, then asks the server. The server's
// answer sets the final state and count; a failure restores both.
func (t *Toggler) Toggle(ctx context.Context, postID int64) (model.LikeResult, error) {
	user, ok := t.gate.User()
	if !ok {
		return model.LikeResult{}, api.ErrAuthRequired
	}
	if !t.acquire(postID) {
		return model.LikeResult{}, ErrInFlight
	}
	defer t.release(postID)

	var (
		before model.FeedPost
		found  bool
	)
	m := t.cache.MutateOptimistic(feed.CacheKey, func(cur []model.FeedPost) []model.FeedPost {
		for i := range cur {
			if cur[i].PostID != postID {
				continue
			}
			before, found = cur[i], true
			cur[i] = withLike(cur[i], user.Email, !cur[i].Liked, -1)
			break
		}
		return cur
	}, func(cur []model.FeedPost) []model.FeedPost {
		for i := range cur {
			if cur[i].PostID == postID && found {
				cur[i].Liked = before.Liked
				cur[i].LikeCount = before.LikeCount
				cur[i].LikedBy = before.LikedBy
			}
		}
		return cur
	})
	if !found {
		t.cache.Rollback(m)
		return model.LikeResult{}, ErrUnknownPost
	}
	t.notify(postID, !before.Liked, -1)

	want := !before.Liked
	res, err := t.api.SetLike(ctx, postID, want)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			t.cache.Commit(m, func(cur []model.FeedPost) []model.FeedPost {
				cur, _ = cache.Remove(cur, postID, func(p model.FeedPost) int64 { return p.PostID })
				return cur
			})
			t.log.Info("Liked post vanished, removed", logger.F("postId", postID))
		} else {
			t.cache.Rollback(m)
			t.log.Warn("Like rejected, restored", logger.F("postId", postID), logger.Err(err))
		}
		t.notify(postID, before.Liked, before.LikeCount)
		return model.LikeResult{}, fmt.Errorf("toggle like on %d: %w", postID, err)
	}

	t.cache.Commit(m, func(cur []model.FeedPost) []model.FeedPost {
		for i := range cur {
			if cur[i].PostID == postID {
				cur[i] = withLike(cur[i], user.Email, res.Liked, res.TotalLikes)
			}
		}
		return cur
	})
	if res.Liked != want {
		t.log.Debug("Server disagreed with like", logger.F("postId", postID), logger.F("liked", res.Liked))
	}
	t.notify(postID, res.Liked, res.TotalLikes)
	return res, nil
}

// withLike sets the viewer's like on p. A negative total moves the count
// by one in the direction of the change; otherwise total is taken as is.
func withLike(p model.FeedPost, viewer string, liked bool, total int) model.FeedPost {
	by := make([]string, 0, len(p.LikedBy)+1)
	for _, e := range p.LikedBy {
		if e != viewer {
			by = append(by, e)
		}
	}
	if liked {
		by = append(by, viewer)
	}

	switch {
	case total >= 0:
		p.LikeCount = total
	case liked && !p.Liked:
		p.LikeCount++
	case !liked && p.Liked && p.LikeCount > 0:
		p.LikeCount--
	}
	p.Liked = liked
	p.LikedBy = by
	return p
}

func (t *Toggler) acquire(postID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inFlight[postID]; busy {
		return false
	}
	t.inFlight[postID] = struct{}{}
	return true
}

func (t *Toggler) release(postID int64) {
	t.mu.Lock()
	delete(t.inFlight, postID)
	t.mu.Unlock()
}

func (t *Toggler) notify(postID int64, liked bool, count int) {
	if t.bus == nil {
		return
	}
	payload := map[string]any{"postId": postID, "liked": liked}
	if count >= 0 {
		payload["likeCount"] = count
	}
	t.bus.Publish(events.New(events.TopicFeedUpdated, payload))
}
