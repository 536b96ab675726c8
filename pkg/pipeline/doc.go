// Package pipeline runs a fixed chain of external process stages.
//
// Each stage declares the workspace paths it reads and writes. The chain is checked when the
// pipeline is built: a stage may only require paths that exist before the run starts or that
// a strictly earlier stage produces. While running, the required paths of a stage are checked
// on disk before its command is even built, so a missing output surfaces as a failure of the
// consuming stage instead of a confusing engine error.
//
// Stages run one after the other on a background goroutine. The pipeline stops on the first
// failure: no later stage is launched, since every later stage consumes files the failed one
// was responsible for. Progress is published on a progress.Channel owned by the pipeline; any
// number of observers may subscribe, and none of them can slow the stages down.
//
// A Pipeline runs once. Build a new one for every run.
package pipeline
