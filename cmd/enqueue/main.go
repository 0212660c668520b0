// Package main is the producer-side command line tool. It queues summaries
// for existing posts, re-queues everything still PENDING, and reports the
// queue depth next to the per-status post counts.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openPipeline).Execute(); err != nil {
		os.Exit(1)
	}
}
