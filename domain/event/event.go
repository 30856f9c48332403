package event

import (
	"time"

	"post-lab/domain"
)

type Type string

const (
	PostCreated Type = "post.created"
	PostUpdated Type = "post.updated"
	PostDeleted Type = "post.deleted"
)

// DomainEvent is emitted after (and only after) the corresponding store
// write has committed. Failed writes never emit.
type DomainEvent struct {
	Type      Type
	PostID    domain.PostID
	OwnerID   string
	Payload   any
	EmittedAt time.Time
}

// PostPayload travels with PostCreated and PostUpdated.
type PostPayload struct {
	Post domain.Post
}

// DeletedPayload travels with PostDeleted. Only the identifier survives
// the delete.
type DeletedPayload struct {
	PostID domain.PostID
}

func Created(post domain.Post) DomainEvent {
	return DomainEvent{
		Type:      PostCreated,
		PostID:    post.ID,
		OwnerID:   post.OwnerID,
		Payload:   PostPayload{Post: post},
		EmittedAt: time.Now().UTC(),
	}
}

func Updated(post domain.Post) DomainEvent {
	return DomainEvent{
		Type:      PostUpdated,
		PostID:    post.ID,
		OwnerID:   post.OwnerID,
		Payload:   PostPayload{Post: post},
		EmittedAt: time.Now().UTC(),
	}
}

func Deleted(id domain.PostID, ownerID string) DomainEvent {
	return DomainEvent{
		Type:      PostDeleted,
		PostID:    id,
		OwnerID:   ownerID,
		Payload:   DeletedPayload{PostID: id},
		EmittedAt: time.Now().UTC(),
	}
}
