package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"post-lab/domain"
	"post-lab/errors"

	"github.com/dgraph-io/badger/v4"
)

const postKeyPrefix = "post:data:"

// PostRepository is the durable source of truth for posts, backed by
// BadgerDB. IDs are monotonic, assigned from a badger sequence on first
// insert. Values are stored as JSON.
type PostRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewPostRepository(db *badger.DB, log *slog.Logger) (*PostRepository, error) {
	// Bandwidth 64: IDs are leased in blocks, so restarts may skip ahead.
	// Monotonic and unique is all we promise, not dense.
	seq, err := db.GetSequence([]byte("seq:post"), 64)
	if err != nil {
		return nil, fmt.Errorf("post id sequence: %w", err)
	}
	return &PostRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the ID sequence lease. Call once on shutdown.
func (r *PostRepository) Close() error {
	return r.seq.Release()
}

// postKey pads the ID to 19 digits so lexicographic key order matches
// numeric ID order, which keeps the All scan chronological.
func postKey(id domain.PostID) []byte {
	return []byte(fmt.Sprintf("%s%019d", postKeyPrefix, id))
}

// Save inserts or updates a post. A zero ID means insert: the next
// sequence value (offset by one so IDs start at 1) is assigned before
// the write commits.
func (r *PostRepository) Save(ctx context.Context, post *domain.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if post.ID == 0 {
		next, err := r.seq.Next()
		if err != nil {
			return fmt.Errorf("next post id: %w", err)
		}
		post.ID = domain.PostID(next + 1)
	}

	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post %d: %w", post.ID, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(postKey(post.ID), data)
	})
}

func (r *PostRepository) Get(ctx context.Context, id domain.PostID) (domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return domain.Post{}, err
	}
	var post domain.Post
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(postKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &post)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Post{}, fmt.Errorf("%w: id %d", errors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return post, nil
}

// All returns every post, newest first. IDs are monotonic, so a reverse
// prefix scan gives creation-time descending order.
func (r *PostRepository) All(ctx context.Context) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var posts []domain.Post
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(postKeyPrefix)
		// Reverse iteration needs a seek key past the last possible entry.
		seekKey := append([]byte(postKeyPrefix), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var post domain.Post
				if err := json.Unmarshal(v, &post); err != nil {
					return err
				}
				posts = append(posts, post)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) Delete(ctx context.Context, id domain.PostID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		key := postKey(id)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: id %d", errors.ErrNotFound, id)
	}
	return err
}
