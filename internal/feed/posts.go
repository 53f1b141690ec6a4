package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/cache"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
)

// ErrEmptyPost is returned before any request when a post has no content
var ErrEmptyPost = errors.New("post content is empty")

// Create publishes a post and puts it at the top of the list
func (l *Loader) Create(ctx context.Context, in model.PostInput) (model.FeedPost, error) {
	viewer, ok := l.gate.User()
	if !ok {
		return model.FeedPost{}, api.ErrAuthRequired
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return model.FeedPost{}, ErrEmptyPost
	}

	id, err := l.api.CreatePost(ctx, in)
	if err != nil {
		return model.FeedPost{}, fmt.Errorf("create post: %w", err)
	}

	post := model.FeedPost{Post: model.Post{
		PostID:    id,
		Content:   in.Content,
		PostImg:   in.PostImg,
		Author:    viewer.Email,
		CreatedAt: time.Now().UTC(),
		LikedBy:   []string{},
	}}
	l.cache.Update(CacheKey, func(cur []model.FeedPost) []model.FeedPost {
		cur, _ = cache.Remove(cur, id, postKey)
		return cache.Insert(cur, 0, post)
	})
	l.log.Info("Post created", logger.F("postId", id))
	l.notify(1)
	return post, nil
}

// Update changes a post's content. The list shows the new content at
// once and reverts if the server refuses.
func (l *Loader) Update(ctx context.Context, id int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyPost
	}
	return l.edit(ctx, id, func(p *model.FeedPost) { p.Content = content }, func() error {
		return l.api.UpdatePost(ctx, id, content)
	})
}

// Replace changes a post's content and image
func (l *Loader) Replace(ctx context.Context, id int64, in model.PostInput) error {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return ErrEmptyPost
	}
	return l.edit(ctx, id, func(p *model.FeedPost) {
		p.Content = in.Content
		p.PostImg = in.PostImg
	}, func() error {
		return l.api.ReplacePost(ctx, id, in)
	})
}

func (l *Loader) edit(ctx context.Context, id int64, change func(*model.FeedPost), call func() error) error {
	if _, ok := l.gate.User(); !ok {
		return api.ErrAuthRequired
	}

	var before model.FeedPost
	m := l.cache.MutateOptimistic(CacheKey, func(cur []model.FeedPost) []model.FeedPost {
		for i := range cur {
			if cur[i].PostID == id {
				before = cur[i]
				change(&cur[i])
			}
		}
		return cur
	}, func(cur []model.FeedPost) []model.FeedPost {
		if before.PostID == 0 {
			return cur
		}
		cur, _ = cache.Replace(cur, id, postKey, before)
		return cur
	})
	l.notify(0)

	if err := call(); err != nil {
		l.settleFailure(m, id, err)
		return fmt.Errorf("edit post %d: %w", id, err)
	}
	l.cache.Commit(m, nil)
	l.log.Info("Post updated", logger.F("postId", id))
	return nil
}

// Delete removes a post, optimistically
func (l *Loader) Delete(ctx context.Context, id int64) error {
	if _, ok := l.gate.User(); !ok {
		return api.ErrAuthRequired
	}

	var (
		removed model.FeedPost
		index   = -1
	)
	m := l.cache.MutateOptimistic(CacheKey, func(cur []model.FeedPost) []model.FeedPost {
		for i, p := range cur {
			if p.PostID == id {
				removed, index = p, i
				break
			}
		}
		cur, _ = cache.Remove(cur, id, postKey)
		return cur
	}, func(cur []model.FeedPost) []model.FeedPost {
		if index < 0 {
			return cur
		}
		return cache.Insert(cur, index, removed)
	})
	l.notify(0)

	err := l.api.DeletePost(ctx, id)
	switch {
	case err == nil, errors.Is(err, api.ErrNotFound):
		// Gone either way.
		l.cache.Commit(m, func(cur []model.FeedPost) []model.FeedPost {
			cur, _ = cache.Remove(cur, id, postKey)
			return cur
		})
		l.log.Info("Post deleted", logger.F("postId", id))
		return nil
	default:
		l.cache.Rollback(m)
		l.log.Warn("Delete rejected, restored", logger.F("postId", id), logger.Err(err))
		l.notify(0)
		return fmt.Errorf("delete post %d: %w", id, err)
	}
}

// Reload refetches one post and updates it in place. A post the server
// no longer has is removed from the list.
func (l *Loader) Reload(ctx context.Context, id int64) (model.FeedPost, error) {
	viewer, ok := l.gate.User()
	if !ok {
		return model.FeedPost{}, api.ErrAuthRequired
	}

	fetchStart := l.cache.Now()
	p, err := l.api.GetPost(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		l.removeGone(id)
		return model.FeedPost{}, err
	}
	if err != nil {
		return model.FeedPost{}, err
	}

	fp := model.ForViewer(p, viewer.Email)
	applied := l.cache.UpdateSince(CacheKey, fetchStart, func(cur []model.FeedPost) []model.FeedPost {
		cur, _ = cache.Replace(cur, id, postKey, fp)
		return cur
	})
	if applied {
		l.notify(0)
	} else {
		l.log.Debug("Reload not applied, optimistic change pending", logger.F("postId", id))
	}
	return fp, nil
}

// Ensure returns the listed post with id, fetching and appending it when
// the list does not hold it yet.
func (l *Loader) Ensure(ctx context.Context, id int64) (model.FeedPost, error) {
	if p, ok := l.Post(id); ok {
		return p, nil
	}
	viewer, ok := l.gate.User()
	if !ok {
		return model.FeedPost{}, api.ErrAuthRequired
	}
	p, err := l.api.GetPost(ctx, id)
	if err != nil {
		return model.FeedPost{}, err
	}
	fp := model.ForViewer(p, viewer.Email)
	l.cache.Update(CacheKey, func(cur []model.FeedPost) []model.FeedPost {
		if out, ok := cache.Replace(cur, id, postKey, fp); ok {
			return out
		}
		return append(cur, fp)
	})
	return fp, nil
}

// settleFailure resolves a failed edit: a vanished post is dropped, anything else is rolled back
func (l *Loader) settleFailure(m *cache.Mutation[model.FeedPost], id int64, err error) {
	if errors.Is(err, api.ErrNotFound) {
		l.cache.Commit(m, func(cur []model.FeedPost) []model.FeedPost {
			cur, _ = cache.Remove(cur, id, postKey)
			return cur
		})
		l.log.Info("Post vanished, removed", logger.F("postId", id))
	} else {
		l.cache.Rollback(m)
		l.log.Warn("Edit rejected, restored", logger.F("postId", id), logger.Err(err))
	}
	l.notify(0)
}

func (l *Loader) removeGone(id int64) {
	l.cache.Update(CacheKey, func(cur []model.FeedPost) []model.FeedPost {
		cur, _ = cache.Remove(cur, id, postKey)
		return cur
	})
	l.notify(0)
}
