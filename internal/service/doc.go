// Package service holds the post use cases the summarization pipeline hooks
// into. PostService persists posts with a PENDING summary and emits a
// PostMutatedEvent so the producer can queue a summarization job; a failure
// to queue never fails the write.
package service
