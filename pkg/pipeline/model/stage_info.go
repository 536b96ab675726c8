package model

import "time"

type stageStatus string

const (
	StageStatusPending   stageStatus = "pending"
	StageStatusRunning   stageStatus = "running"
	StageStatusSucceeded stageStatus = "succeeded"
	StageStatusFailed    stageStatus = "failed"
)

// StageLink is a checked edge into a stage: the stage, or start, producing Keys.
type StageLink struct {
	From string
	Keys []string
}

// StageInfo describes one stage of the chain to pipeline options. Inputs hold the edges of
// the checked dependency graph, sorted by producer.
type StageInfo struct {
	Name     string
	Index    int
	Requires []string
	Produces []string
	Inputs   []StageLink
	Status   stageStatus
	Duration time.Duration
}

// StartStage and EndStage bracket the chain in graphs and measures.
var (
	StartStage = &StageInfo{Name: "start", Index: -1}
	EndStage   = &StageInfo{Name: "end", Index: -1}
)
