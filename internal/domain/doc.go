// Package domain contains the core business entities of the summarization
// pipeline: blog posts with their summary state, and the job envelope that
// travels through the queue. It is independent of any storage or transport.
package domain
