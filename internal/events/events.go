package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MutationKind says how a post changed.
type MutationKind string

const (
	// MutationCreate is emitted for newly created posts.
	MutationCreate MutationKind = "create"

	// MutationUpdate is emitted when the content of an existing post changed.
	MutationUpdate MutationKind = "update"
)

// ErrInvalidEvent is returned by NewPostMutatedEvent for unusable input.
var ErrInvalidEvent = errors.New("invalid post event")

// PostMutatedEvent announces that a post needs a (new) summary.
type PostMutatedEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	PostID int64        `json:"postId"`
	Text   string       `json:"text"`
	Kind   MutationKind `json:"kind"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewPostMutatedEvent creates an event for the given post and kind.
func NewPostMutatedEvent(postID int64, text string, kind MutationKind) (*PostMutatedEvent, error) {
	if postID <= 0 {
		return nil, errors.Join(ErrInvalidEvent, errors.New("post ID must be positive"))
	}
	if kind != MutationCreate && kind != MutationUpdate {
		return nil, errors.Join(ErrInvalidEvent, errors.New("unknown mutation kind "+string(kind)))
	}

	return &PostMutatedEvent{
		ID:        uuid.New(),
		PostID:    postID,
		Text:      text,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes emitted events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *PostMutatedEvent) error
}

// EventEmitter publishes events to the registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *PostMutatedEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *PostMutatedEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *PostMutatedEvent) error {
	return f(ctx, event)
}
