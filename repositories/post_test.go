package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"post-lab/domain"
	"post-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestPostRepo(t *testing.T) *PostRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewPostRepository(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostRepository_SaveAssignsMonotonicIDs(t *testing.T) {
	req := require.New(t)
	repo := newTestPostRepo(t)
	ctx := context.Background()

	first := domain.Post{Title: "first", Content: "c", OwnerID: "1", CreatedAt: time.Now().UTC()}
	second := domain.Post{Title: "second", Content: "c", OwnerID: "1", CreatedAt: time.Now().UTC()}

	req.NoError(repo.Save(ctx, &first))
	req.NoError(repo.Save(ctx, &second))

	req.NotZero(first.ID)
	req.Greater(second.ID, first.ID)

	// Saving again with an assigned ID updates in place.
	first.Title = "first, revised"
	req.NoError(repo.Save(ctx, &first))

	got, err := repo.Get(ctx, first.ID)
	req.NoError(err)
	req.Equal("first, revised", got.Title)
}

func TestPostRepository_GetUnknownID(t *testing.T) {
	req := require.New(t)
	repo := newTestPostRepo(t)

	_, err := repo.Get(context.Background(), 42)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestPostRepository_AllReturnsNewestFirst(t *testing.T) {
	req := require.New(t)
	repo := newTestPostRepo(t)
	ctx := context.Background()

	titles := []string{"oldest", "middle", "newest"}
	for _, title := range titles {
		post := domain.Post{Title: title, Content: "c", OwnerID: "1"}
		req.NoError(repo.Save(ctx, &post))
	}

	posts, err := repo.All(ctx)
	req.NoError(err)
	req.Len(posts, 3)
	req.Equal("newest", posts[0].Title)
	req.Equal("middle", posts[1].Title)
	req.Equal("oldest", posts[2].Title)
}

func TestPostRepository_Delete(t *testing.T) {
	req := require.New(t)
	repo := newTestPostRepo(t)
	ctx := context.Background()

	post := domain.Post{Title: "doomed", Content: "c", OwnerID: "1"}
	req.NoError(repo.Save(ctx, &post))
	req.NoError(repo.Delete(ctx, post.ID))

	_, err := repo.Get(ctx, post.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	// Deleting twice reports the absence.
	req.ErrorIs(repo.Delete(ctx, post.ID), errors.ErrNotFound)
}
