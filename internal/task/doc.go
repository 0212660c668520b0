// Package task runs the summarization consumer: a loop that polls the job
// queue while work exists, hands each job to a bounded set of goroutines,
// and parks itself once the queue stays empty.
//
// All runtime flags shared between the loop, in-flight jobs and the control
// surface live in State, which serialises access with a mutex.
package task
