// Package feed loads the paginated post feed into the shared resource
// cache and applies post mutations to it.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/cache"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
)

// CacheKey is the resource cache key of the feed list
const CacheKey = "feed"

// Backend is the part of the API client the feed needs
type Backend interface {
	ListPosts(ctx context.Context, page int) ([]model.Post, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	CreatePost(ctx context.Context, in model.PostInput) (int64, error)
	UpdatePost(ctx context.Context, id int64, content string) error
	ReplacePost(ctx context.Context, id int64, in model.PostInput) error
	DeletePost(ctx context.Context, id int64) error
}

// Gate tells the loader who is logged in
type Gate interface {
	User() (model.User, bool)
}

// Options configures a Loader
type Options struct {
	TTL      time.Duration // page 1 freshness, default 60s
	Debounce time.Duration // Trigger debounce, default 300ms
	Bus      events.Bus
	Logger   *logger.Logger
}

// Loader fetches feed pages in order, one at a time, and stops for good
// once a page brings nothing new.
type Loader struct {
	api   Backend
	gate  Gate
	cache *cache.Cache[model.FeedPost]
	bus   events.Bus
	log   *logger.Logger

	ttl      time.Duration
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	page       int    // last page that added posts
	hasMore    bool   // one way until Refresh or Reset
	loading    bool   // a page request is outstanding
	detached   bool   // Trigger is ignored
	pending    bool   // a debounced load is scheduled
	gen        uint64 // bumped by Refresh and Reset; older results are dropped
	cachedPage int    // page cursor matching the cached list, 0 once invalidated
	lastErr    error
	stopAuto   chan struct{}
}

// New creates a loader writing into c under CacheKey
func New(backend Backend, gate Gate, c *cache.Cache[model.FeedPost], opts Options) *Loader {
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		api:      backend,
		gate:     gate,
		cache:    c,
		bus:      opts.Bus,
		log:      log.Component("feed"),
		ttl:      opts.TTL,
		debounce: opts.Debounce,
		ctx:      ctx,
		cancel:   cancel,
		hasMore:  true,
	}
}

func postKey(p model.FeedPost) int64 {
	return p.PostID
}

// Posts returns the current list
func (l *Loader) Posts() []model.FeedPost {
	data, _, _ := l.cache.Read(CacheKey)
	return data
}

// Post returns one post from the list
func (l *Loader) Post(id int64) (model.FeedPost, bool) {
	for _, p := range l.Posts() {
		if p.PostID == id {
			return p, true
		}
	}
	return model.FeedPost{}, false
}

// HasMore reports whether another page may exist
func (l *Loader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// Page returns the last page that added posts, 0 before the first load
func (l *Loader) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// Loading reports whether a page request is outstanding
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Detached reports whether scroll triggers are ignored
func (l *Loader) Detached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detached
}

// Err returns the error that ended pagination, if any
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Load fetches the next page. It returns how many unseen posts were
// appended. A call while another load is in flight, or after the feed
// is exhausted, does nothing.
func (l *Loader) Load(ctx context.Context) (int, error) {
	viewer, ok := l.gate.User()
	if !ok {
		return 0, api.ErrAuthRequired
	}

	l.mu.Lock()
	if l.loading || !l.hasMore || l.ctx.Err() != nil {
		l.mu.Unlock()
		return 0, nil
	}
	next := l.page + 1
	l.loading = true
	gen := l.gen
	l.mu.Unlock()

	fetchStart := l.cache.Now()
	posts, err := l.api.ListPosts(ctx, next)

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		l.log.Debug("Dropping stale page", logger.F("page", next))
		return 0, nil
	}
	l.loading = false
	if l.ctx.Err() != nil {
		l.mu.Unlock()
		l.log.Debug("Dropping stale page", logger.F("page", next))
		return 0, nil
	}
	if err != nil {
		l.exhaust(err)
		l.mu.Unlock()
		l.log.Warn("Feed page failed, pagination stopped", logger.F("page", next), logger.Err(err))
		l.notify(0)
		return 0, err
	}

	incoming := make([]model.FeedPost, 0, len(posts))
	for _, p := range posts {
		incoming = append(incoming, model.ForViewer(p, viewer.Email))
	}
	var added int
	merge := func(cur []model.FeedPost) []model.FeedPost {
		merged, n := cache.MergeUnique(cur, incoming, postKey)
		added = n
		return merged
	}
	if next == 1 {
		if !l.cache.UpdateFetched(CacheKey, fetchStart, merge) {
			l.cache.Update(CacheKey, merge)
		}
	} else {
		l.cache.Update(CacheKey, merge)
	}

	if added == 0 {
		l.exhaust(nil)
	} else {
		l.page = next
		l.cachedPage = next
	}
	hasMore := l.hasMore
	l.mu.Unlock()

	l.log.Debug("Feed page loaded",
		logger.F("page", next),
		logger.F("received", len(posts)),
		logger.F("added", added),
		logger.F("hasMore", hasMore))
	l.notify(added)
	return added, nil
}

// exhaust ends pagination for this list. Caller holds l.mu.
func (l *Loader) exhaust(err error) {
	l.hasMore = false
	l.detached = true
	l.lastErr = err
}

// Trigger is the near-end-of-list signal. Bursts within the debounce
// window collapse into one Load.
func (l *Loader) Trigger() {
	if _, ok := l.gate.User(); !ok {
		return
	}

	l.mu.Lock()
	if l.detached || !l.hasMore || l.pending || l.ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.pending = true
	l.mu.Unlock()

	go l.debouncedLoad()
}

func (l *Loader) debouncedLoad() {
	timer := time.NewTimer(l.debounce)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-l.ctx.Done():
		return
	}

	l.mu.Lock()
	l.pending = false
	l.mu.Unlock()

	if _, err := l.Load(l.ctx); err != nil && !errors.Is(err, context.Canceled) {
		l.log.Debug("Triggered load failed", logger.Err(err))
	}
}

// Refresh starts the list over from page 1. Without force, a fresh
// cached list is kept and nothing is fetched.
func (l *Loader) Refresh(ctx context.Context, force bool) (int, error) {
	if !force && l.cache.Fresh(CacheKey, l.ttl) {
		l.mu.Lock()
		fresh := l.cachedPage > 0
		l.mu.Unlock()
		if fresh {
			return 0, nil
		}
	}
	l.reset()
	return l.Load(ctx)
}

// Reset drops the list and cursor without fetching, used on logout
func (l *Loader) Reset() {
	l.reset()
	l.notify(0)
}

func (l *Loader) reset() {
	l.mu.Lock()
	l.gen++
	l.page = 0
	l.cachedPage = 0
	l.hasMore = true
	l.detached = false
	l.loading = false
	l.lastErr = nil
	l.mu.Unlock()
	l.cache.Reset(CacheKey)
}

// StartAutoRefresh polls page 1 every interval and folds it into the
// list. Posts with a pending optimistic change are left alone.
func (l *Loader) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}
	l.mu.Lock()
	if l.stopAuto != nil {
		l.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	l.stopAuto = stop
	l.mu.Unlock()

	go l.pollLoop(interval, stop)
}

// StopAutoRefresh ends the poll loop
func (l *Loader) StopAutoRefresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopAuto != nil {
		close(l.stopAuto)
		l.stopAuto = nil
	}
}

func (l *Loader) pollLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.RefreshTop(l.ctx); err != nil {
				l.log.Debug("Background refresh failed", logger.Err(err))
			}
		case <-stop:
			return
		case <-l.ctx.Done():
			return
		}
	}
}

// RefreshTop refetches page 1 and merges it into the current list:
// known posts are updated in place and new ones are put on top. It takes
// the same fetch slot as Load. The write is skipped when an optimistic
// change landed after the fetch began.
func (l *Loader) RefreshTop(ctx context.Context) error {
	viewer, ok := l.gate.User()
	if !ok {
		return nil
	}
	l.mu.Lock()
	if l.loading || l.page == 0 || l.ctx.Err() != nil {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	gen := l.gen
	l.mu.Unlock()

	fetchStart := l.cache.Now()
	posts, err := l.api.ListPosts(ctx, 1)

	l.mu.Lock()
	stale := gen != l.gen
	if !stale {
		l.loading = false
	}
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if stale {
		return nil
	}

	var added int
	written := l.cache.UpdateFetched(CacheKey, fetchStart, func(cur []model.FeedPost) []model.FeedPost {
		var top []model.FeedPost
		for _, p := range posts {
			fp := model.ForViewer(p, viewer.Email)
			var found bool
			cur, found = cache.Replace(cur, fp.PostID, postKey, fp)
			if !found {
				top = append(top, fp)
			}
		}
		added = len(top)
		return append(top, cur...)
	})
	if !written {
		l.log.Debug("Background refresh skipped, optimistic change pending")
		return nil
	}
	l.notify(added)
	return nil
}

// Close stops background work. Results arriving afterwards are dropped.
func (l *Loader) Close() {
	l.StopAutoRefresh()
	l.cancel()
}

func (l *Loader) notify(added int) {
	if l.bus == nil {
		return
	}
	l.mu.Lock()
	payload := map[string]any{
		"page":    l.page,
		"added":   added,
		"hasMore": l.hasMore,
	}
	l.mu.Unlock()
	l.bus.Publish(events.New(events.TopicFeedUpdated, payload))
}
