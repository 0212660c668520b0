// Package events decouples post mutations from summarization.
//
// The post service emits a PostMutatedEvent after every create or update
// that leaves the post PENDING; handlers registered on the emitter (the
// producer's enqueuer) react to it. The service never imports the queue.
package events
