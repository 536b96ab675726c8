package model

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error
	// PrepareStage runs once per stage while the pipeline is built.
	// parentStage is the stage the new one depends on, StartStage for the first one.
	PrepareStage(parentStage, stage *StageInfo) error
	// OnStageResult runs after every stage invocation, successful or not.
	OnStageResult(stage *StageInfo, result StageResult) error
	// Finish runs after the pipeline reached a terminal state.
	Finish(err error) error
}
