// Package queue defines the durable job queue contract used between the
// producer and the consumer, and the wire codec for job envelopes.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/blogapp/summarizer/internal/domain"
)

// DefaultKey is the list key shared by producers and consumers.
const DefaultKey = "summarization_jobs_v1"

var (
	// ErrCorruptJob is returned by Decode for entries that are not a valid envelope.
	ErrCorruptJob = errors.New("corrupt job")

	// ErrQueueUnavailable wraps transport failures talking to the queue backend.
	ErrQueueUnavailable = errors.New("queue unavailable")
)

// objectPlaceholder is what a JavaScript producer stores when it pushes an
// object without serialising it first.
const objectPlaceholder = "[object Object]"

// JobQueue is a FIFO of summarization jobs.
// Version: 1.0
type JobQueue interface {
	// Push adds a job at the head of the queue.
	Push(ctx context.Context, job domain.SummaryJob) error

	// Pop removes and returns the job at the tail of the queue.
	// It returns (nil, nil) when the queue is empty or the entry was
	// corrupt and has been discarded.
	Pop(ctx context.Context) (*domain.SummaryJob, error)

	// Len returns the number of queued entries.
	Len(ctx context.Context) (int64, error)
}

// Encode serialises a job envelope.
func Encode(job domain.SummaryJob) ([]byte, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(job)
}

// Decode parses a raw queue entry.
//
// Accepted forms are a JSON object and a JSON string whose content is a JSON
// object, which is what some REST clients store. Anything else, including
// objects missing a numeric postId, a string text or a numeric attempt,
// yields ErrCorruptJob.
func Decode(raw string) (*domain.SummaryJob, error) {
	if raw == objectPlaceholder {
		return nil, fmt.Errorf("%w: unserialised object placeholder", ErrCorruptJob)
	}

	value, err := decodeValue([]byte(raw))
	if err != nil {
		return nil, err
	}

	if inner, ok := value.(string); ok {
		if inner == objectPlaceholder {
			return nil, fmt.Errorf("%w: unserialised object placeholder", ErrCorruptJob)
		}
		if value, err = decodeValue([]byte(inner)); err != nil {
			return nil, err
		}
	}

	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrCorruptJob, value)
	}

	postID, err := integerField(fields, "postId")
	if err != nil {
		return nil, err
	}
	attempt, err := integerField(fields, "attempt")
	if err != nil {
		return nil, err
	}
	text, ok := fields["text"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: text must be a string", ErrCorruptJob)
	}

	job := &domain.SummaryJob{
		PostID:  postID,
		Text:    text,
		Attempt: int(attempt),
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptJob, err)
	}
	return job, nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptJob, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrCorruptJob)
	}
	return value, nil
}

func integerField(fields map[string]any, name string) (int64, error) {
	num, ok := fields[name].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrCorruptJob, name)
	}

	if n, err := num.Int64(); err == nil {
		return n, nil
	}

	// Accept integral floats such as 3.0.
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrCorruptJob, name)
	}
	return int64(f), nil
}
