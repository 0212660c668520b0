// Package store defines interfaces for data persistence operations.
// These interfaces keep the summarization pipeline independent of the
// database technology behind them.
package store
