//go:generate go run go.uber.org/mock/mockgen -source=post_service.go -destination=../mocks/mock_post_service.go -package=mocks
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"post-lab/contract"
	"post-lab/domain"
	"post-lab/domain/event"
	"post-lab/errors"
)

const (
	collectionCacheKey = "posts:all"
	// DefaultCacheTTL bounds staleness for both the item and collection
	// keys: five minutes, after which a reader is forced back to the store.
	DefaultCacheTTL = 300 * time.Second
)

func itemCacheKey(id domain.PostID) string {
	return fmt.Sprintf("post:%d", id)
}

type IPostService interface {
	Create(ctx context.Context, input domain.PostInput, principal domain.Principal) (domain.Post, error)
	Get(ctx context.Context, id domain.PostID) (domain.Post, error)
	List(ctx context.Context) ([]domain.Post, error)
	Update(ctx context.Context, id domain.PostID, patch domain.PostPatch, principal domain.Principal) (domain.Post, error)
	Delete(ctx context.Context, id domain.PostID, principal domain.Principal) error
}

// PostService owns the cache-aside read path and the write sequence:
// store commit, then cache invalidation, then event publish, strictly in
// that order. A reader racing a writer may see the pre- or post-write
// value, but never a value the store superseded before the invalidation.
//
// The cache is advisory. Any cache failure is logged and absorbed: reads
// fall through to the store, writes proceed without it.
type PostService struct {
	repo  contract.IPostRepository
	cache contract.ICache
	bus   contract.IEventBus
	log   *slog.Logger
	ttl   time.Duration
}

func NewPostService(
	repo contract.IPostRepository,
	cache contract.ICache,
	bus contract.IEventBus,
	log *slog.Logger,
	ttl time.Duration) *PostService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &PostService{repo: repo, cache: cache, bus: bus, log: log, ttl: ttl}
}

// Create persists a new post owned by the principal, drops the stale
// collection entry, then announces the post. Input is re-checked even
// though upstream validation should have caught malformed requests.
func (s *PostService) Create(ctx context.Context, input domain.PostInput, principal domain.Principal) (domain.Post, error) {
	if err := domain.ValidateInput(input); err != nil {
		return domain.Post{}, err
	}

	now := time.Now().UTC()
	post := domain.Post{
		Title:     input.Title,
		Content:   input.Content,
		Published: input.Published,
		OwnerID:   principal.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, &post); err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}

	s.invalidate(ctx, collectionCacheKey)
	s.bus.Publish(ctx, event.Created(post))

	s.log.Info("post created", "post_id", post.ID, "owner_id", principal.ID)
	return post, nil
}

// Get is cache-aside: a fresh cached copy is returned without touching
// the store; a miss reads the store and repopulates the cache.
func (s *PostService) Get(ctx context.Context, id domain.PostID) (domain.Post, error) {
	key := itemCacheKey(id)
	var post domain.Post
	if s.fromCache(ctx, key, &post) {
		return post, nil
	}

	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	s.toCache(ctx, key, post)
	return post, nil
}

// List serves the whole collection through posts:all. The entry is only
// ever invalidated on writes, never patched in place.
func (s *PostService) List(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if s.fromCache(ctx, collectionCacheKey, &posts) {
		return posts, nil
	}

	posts, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, collectionCacheKey, posts)
	return posts, nil
}

// Update loads the current post (possibly from cache), enforces
// ownership, applies the non-nil patch fields, and runs the write
// sequence. A Forbidden outcome mutates nothing and publishes nothing.
func (s *PostService) Update(ctx context.Context, id domain.PostID, patch domain.PostPatch, principal domain.Principal) (domain.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if post.OwnerID != principal.ID {
		return domain.Post{}, fmt.Errorf("%w: post %d", errors.ErrForbidden, id)
	}

	patch.Apply(&post)
	post.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, &post); err != nil {
		return domain.Post{}, fmt.Errorf("update post %d: %w", id, err)
	}

	s.invalidate(ctx, itemCacheKey(id), collectionCacheKey)
	s.bus.Publish(ctx, event.Updated(post))

	s.log.Info("post updated", "post_id", id, "owner_id", principal.ID)
	return post, nil
}

func (s *PostService) Delete(ctx context.Context, id domain.PostID, principal domain.Principal) error {
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if post.OwnerID != principal.ID {
		return fmt.Errorf("%w: post %d", errors.ErrForbidden, id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	s.invalidate(ctx, itemCacheKey(id), collectionCacheKey)
	s.bus.Publish(ctx, event.Deleted(id, post.OwnerID))

	s.log.Info("post deleted", "post_id", id, "owner_id", principal.ID)
	return nil
}

// fromCache reports whether key held a fresh entry and decoded it into
// dest. An unreachable cache or a corrupt entry is just a miss.
func (s *PostService) fromCache(ctx context.Context, key string, dest any) bool {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed, falling through to store", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.log.Warn("corrupt cache entry, falling through to store", "key", key, "error", err)
		return false
	}
	s.log.Debug("cache hit", "key", key)
	return true
}

func (s *PostService) toCache(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// invalidate drops cache keys after a committed store write. Failure is
// tolerable: entries still expire by TTL, the write itself already
// succeeded, and the request must not fail because the cache is down.
func (s *PostService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
