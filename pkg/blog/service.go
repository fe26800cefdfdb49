package blog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/platinummonkey/quill/pkg/cache"
	"github.com/platinummonkey/quill/pkg/observability"
)

// ImpressionCounter buffers impressions in the fast counter store
type ImpressionCounter interface {
	Increment(ctx context.Context, ids ...uuid.UUID) error
}

// ViewDispatcher hands a view off to background recording. It must not block.
type ViewDispatcher interface {
	Dispatch(ctx context.Context, slug, clientIP string)
}

// ClickRecorder synchronously counts a click and returns the new total
type ClickRecorder interface {
	RecordClick(ctx context.Context, postID uuid.UUID) (int64, error)
}

// Service implements the post read paths
type Service struct {
	posts   PostStore
	cache   cache.Cache
	counter ImpressionCounter
	views   ViewDispatcher
	clicks  ClickRecorder
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Options wires a Service
type Options struct {
	Posts    PostStore
	Cache    cache.Cache
	Counter  ImpressionCounter
	Views    ViewDispatcher
	Clicks   ClickRecorder
	CacheTTL time.Duration
	Logger   *observability.Logger
	Metrics  *observability.Metrics
}

// NewService creates the read-path service
func NewService(opts Options) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{
		posts:   opts.Posts,
		cache:   opts.Cache,
		counter: opts.Counter,
		views:   opts.Views,
		clicks:  opts.Clicks,
		ttl:     ttl,
		logger:  opts.Logger.OrDefault().WithField("component", "blog"),
		metrics: opts.Metrics,
	}
}

// ListPosts returns every published post and buffers one impression per post
func (s *Service) ListPosts(ctx context.Context) ([]PostSummary, error) {
	var list []PostSummary
	hit := s.cacheGet(ctx, cache.ListKey, "list", &list)

	if !hit {
		posts, err := s.posts.ListPublished(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list posts: %w", err)
		}
		if len(posts) == 0 {
			return nil, ErrNotFound
		}
		list = make([]PostSummary, len(posts))
		for i := range posts {
			list[i] = posts[i].Summary()
		}
		s.cacheSet(ctx, cache.ListKey, list)
	}

	s.countImpressions(ctx, list)
	return list, nil
}

// GetPost returns a published post and dispatches a view for clientIP
func (s *Service) GetPost(ctx context.Context, slug, clientIP string) (*PostDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrNotFound
	}

	key := cache.DetailKey(slug)
	var detail PostDetail
	hit := s.cacheGet(ctx, key, "detail", &detail)

	if !hit {
		post, err := s.posts.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		detail = post.Detail()
		s.cacheSet(ctx, key, detail)
	}

	s.views.Dispatch(ctx, detail.Slug, clientIP)
	return &detail, nil
}

// ListHeadings returns the headings of a post. A post without headings
// yields an empty slice.
func (s *Service) ListHeadings(ctx context.Context, slug string) ([]Heading, error) {
	headings, err := s.posts.ListHeadings(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, fmt.Errorf("failed to list headings: %w", err)
	}
	if headings == nil {
		headings = []Heading{}
	}
	return headings, nil
}

// ResolvePost looks up a published post by slug
func (s *Service) ResolvePost(ctx context.Context, slug string) (*Post, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrNotFound
	}
	return s.posts.GetBySlug(ctx, slug)
}

// IncrementClick counts a click on the post with slug and returns its total
func (s *Service) IncrementClick(ctx context.Context, slug string) (int64, error) {
	post, err := s.ResolvePost(ctx, slug)
	if err != nil {
		return 0, err
	}
	return s.clicks.RecordClick(ctx, post.ID)
}

func (s *Service) countImpressions(ctx context.Context, list []PostSummary) {
	ids := make([]uuid.UUID, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	if err := s.counter.Increment(ctx, ids...); err != nil {
		s.metrics.ImpressionsLost(len(ids))
		s.logger.WithError(err).WithField("posts", len(ids)).Warn("failed to buffer impressions")
		return
	}
	s.metrics.ImpressionsAdded(len(ids))
}

// cacheGet decodes a cached entry into v. Read errors and corrupt entries
// count as misses.
func (s *Service) cacheGet(ctx context.Context, key, path string, v interface{}) (hit bool) {
	defer func() { s.metrics.CacheLookup(path, hit) }()

	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.CacheError("get")
		s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.metrics.CacheError("decode")
		s.logger.WithError(err).WithField("key", key).Warn("dropping corrupt cache entry")
		_ = s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to encode cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.metrics.CacheError("set")
		s.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
