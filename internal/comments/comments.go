// Package comments keeps per-post comment lists in the resource cache and
// applies comment mutations optimistically.
package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/cache"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
	"github.com/google/uuid"
)

var (
	ErrEmptyComment = errors.New("comment is empty")
	ErrNotSaved     = errors.New("comment is not saved yet")
)

// Key is the resource cache key of a post's comments
func Key(postID int64) string {
	return fmt.Sprintf("comments:%d", postID)
}

// Backend is the part of the API client comments need
type Backend interface {
	ListComments(ctx context.Context, postID int64) ([]model.Comment, error)
	CreateComment(ctx context.Context, postID int64, text string) (model.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID int64) error
}

// Gate tells the service who is logged in
type Gate interface {
	User() (model.User, bool)
}

// Options configures a Service
type Options struct {
	TTL    time.Duration // default 30s
	Bus    events.Bus
	Logger *logger.Logger
}

// Service reads and mutates comments
type Service struct {
	api   Backend
	gate  Gate
	cache *cache.Cache[model.Comment]
	bus   events.Bus
	log   *logger.Logger
	ttl   time.Duration

	mu    sync.Mutex
	stale map[int64]bool // fetch refused behind a pending change, refetch once it settles
}

// New creates a comment service backed by c
func New(backend Backend, gate Gate, c *cache.Cache[model.Comment], opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	return &Service{
		api:   backend,
		gate:  gate,
		cache: c,
		bus:   opts.Bus,
		log:   log.Component("comments"),
		ttl:   opts.TTL,
		stale: make(map[int64]bool),
	}
}

func byID(c model.Comment) int64 { return c.ID }
func byLocal(c model.Comment) string { return c.LocalID }

// List returns a post's comments, from cache while fresh unless force is set
func (s *Service) List(ctx context.Context, postID int64, force bool) ([]model.Comment, error) {
	key := Key(postID)
	if !force && s.cache.Fresh(key, s.ttl) && !s.isStale(postID) {
		data, _, _ := s.cache.Read(key)
		return data, nil
	}

	for attempt := 0; ; attempt++ {
		fetchStart := s.cache.Now()
		list, err := s.api.ListComments(ctx, postID)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				s.cache.Invalidate(key)
			}
			return nil, fmt.Errorf("list comments: %w", err)
		}
		if s.cache.WriteFetched(key, list, fetchStart) {
			s.setStale(postID, false)
			s.notify(postID)
			break
		}
		if s.cache.Pending(key) > 0 || attempt > 0 {
			// The fetch predates a local add or delete; keep the local view.
			s.setStale(postID, true)
			s.log.Debug("Comment fetch deferred behind pending change", logger.F("postId", postID))
			break
		}
	}

	data, _, _ := s.cache.Read(key)
	return data, nil
}

func (s *Service) isStale(postID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale[postID]
}

func (s *Service) setStale(postID int64, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stale {
		s.stale[postID] = true
	} else {
		delete(s.stale, postID)
	}
}

// settle refetches a list whose fetch was deferred, once the last pending
// change on it has resolved.
func (s *Service) settle(ctx context.Context, postID int64) {
	if !s.isStale(postID) || s.cache.Pending(Key(postID)) > 0 {
		return
	}
	if _, err := s.List(context.WithoutCancel(ctx), postID, true); err != nil {
		s.log.Debug("Deferred comment refetch failed", logger.F("postId", postID), logger.Err(err))
	}
}

// Cached returns what is cached for postID without fetching
func (s *Service) Cached(postID int64) []model.Comment {
	data, _, _ := s.cache.Read(Key(postID))
	return data
}

// Add posts a comment. It is refused without a request when nobody is
// logged in or text is blank. The comment shows up at once and is
// replaced by the server's copy, or removed if the server refuses it.
func (s *Service) Add(ctx context.Context, postID int64, text string) (model.Comment, error) {
	user, ok := s.gate.User()
	if !ok {
		return model.Comment{}, api.ErrAuthRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, ErrEmptyComment
	}

	now := time.Now().UTC()
	local := model.Comment{
		PostID:    postID,
		UserID:    user.Email,
		Comment:   text,
		CreatedAt: now,
		UpdatedAt: now,
		LocalID:   uuid.NewString(),
	}
	key := Key(postID)
	m := s.cache.MutateOptimistic(key, func(cur []model.Comment) []model.Comment {
		return append(cur, local)
	}, func(cur []model.Comment) []model.Comment {
		cur, _ = cache.Remove(cur, local.LocalID, byLocal)
		return cur
	})
	s.notify(postID)

	created, err := s.api.CreateComment(ctx, postID, text)
	if err != nil {
		s.cache.Rollback(m)
		s.notify(postID)
		s.log.Warn("Comment rejected, removed", logger.F("postId", postID), logger.Err(err))
		s.settle(ctx, postID)
		return model.Comment{}, fmt.Errorf("add comment: %w", err)
	}

	created.LocalID = ""
	s.cache.Commit(m, func(cur []model.Comment) []model.Comment {
		// A refresh may already have brought the server copy in.
		cur, _ = cache.Remove(cur, created.ID, byID)
		cur, found := cache.Replace(cur, local.LocalID, byLocal, created)
		if !found {
			cur = append(cur, created)
		}
		return cur
	})
	s.notify(postID)
	s.log.Info("Comment added", logger.F("postId", postID), logger.F("commentId", created.ID))
	s.settle(ctx, postID)
	return created, nil
}

// Delete removes a comment. The server allows it for the author only; a
// refusal puts the comment back where it was.
func (s *Service) Delete(ctx context.Context, postID, commentID int64) error {
	if _, ok := s.gate.User(); !ok {
		return api.ErrAuthRequired
	}
	if commentID == 0 {
		return ErrNotSaved
	}

	var (
		removed model.Comment
		index   = -1
	)
	key := Key(postID)
	m := s.cache.MutateOptimistic(key, func(cur []model.Comment) []model.Comment {
		for i, c := range cur {
			if c.ID == commentID {
				removed, index = c, i
				break
			}
		}
		cur, _ = cache.Remove(cur, commentID, byID)
		return cur
	}, func(cur []model.Comment) []model.Comment {
		if index < 0 {
			return cur
		}
		return cache.Insert(cur, index, removed)
	})
	s.notify(postID)

	err := s.api.DeleteComment(ctx, postID, commentID)
	if err == nil || errors.Is(err, api.ErrNotFound) {
		s.cache.Commit(m, nil)
		s.log.Info("Comment deleted", logger.F("postId", postID), logger.F("commentId", commentID))
		s.settle(ctx, postID)
		return nil
	}

	s.cache.Rollback(m)
	s.notify(postID)
	s.log.Warn("Comment delete rejected, restored", logger.F("commentId", commentID), logger.Err(err))
	s.settle(ctx, postID)
	return fmt.Errorf("delete comment: %w", err)
}

// Invalidate drops the cached comments of a post
func (s *Service) Invalidate(postID int64) {
	s.cache.Invalidate(Key(postID))
}

func (s *Service) notify(postID int64) {
	if s.bus == nil {
		return
	}
	data, _, _ := s.cache.Read(Key(postID))
	s.bus.Publish(events.New(events.TopicCommentsUpdated, map[string]any{
		"postId": postID,
		"count":  len(data),
	}))
}
