// Package api exposes the worker's control surface over HTTP: a health
// report of the consumer, the wakeup signal that (re)starts the consumer
// loop, and Prometheus metrics.
package api
