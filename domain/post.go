package domain

import "time"

type PostID uint64

// Post is the persisted resource. The repository is the source of truth;
// cached copies are advisory and expire on their own.
type Post struct {
	ID        PostID    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostInput carries the fields a caller may set at creation time.
// OwnerID comes from the authenticated principal, never from the input.
type PostInput struct {
	Title     string `validate:"required"`
	Content   string `validate:"required"`
	Published bool
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	Title     *string
	Content   *string
	Published *bool
}

// Apply copies the non-nil patch fields onto the post.
func (p PostPatch) Apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Published != nil {
		post.Published = *p.Published
	}
}
