// Package progress carries pipeline events from a single producer to any number of observers.
//
// A Channel never blocks its producer: every subscription owns a FIFO queue that is drained
// by its own goroutine, so a slow or vanished observer cannot delay the pipeline. Events
// published while nobody is subscribed are dropped.
package progress
