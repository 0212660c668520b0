package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler remembers the events it saw.
type recordingHandler struct {
	err    error
	events []*PostMutatedEvent
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *PostMutatedEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newEvent := func(t *testing.T) *PostMutatedEvent {
		event, err := NewPostMutatedEvent(42, "body", MutationCreate)
		require.NoError(t, err)
		return event
	}

	t.Run("no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t)))
	})

	t.Run("all handlers receive the event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		h1, h2 := &recordingHandler{}, &recordingHandler{}
		emitter.RegisterHandler(h1)
		emitter.RegisterHandler(h2)

		event := newEvent(t)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, []*PostMutatedEvent{event}, h1.events)
		assert.Equal(t, []*PostMutatedEvent{event}, h2.events)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failing := &recordingHandler{err: errors.New("first failure")}
		alsoFailing := &recordingHandler{err: errors.New("second failure")}
		ok := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(alsoFailing)
		emitter.RegisterHandler(ok)

		err := emitter.EmitEvent(context.Background(), newEvent(t))

		require.Error(t, err)
		assert.Equal(t, "first failure", err.Error())
		assert.Len(t, ok.events, 1)
	})

	t.Run("handler func adapter", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		var got int64
		emitter.RegisterHandler(HandlerFunc(func(ctx context.Context, event *PostMutatedEvent) error {
			got = event.PostID
			return nil
		}))

		require.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t)))
		assert.Equal(t, int64(42), got)
	})
}
