// Package model provides the data structures shared by the pipeline packages.
// It defines the progress events, the stage descriptions handed to pipeline options,
// the result of a single stage invocation and the options interface itself.
package model
