package measure

import (
	"time"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
	startTime time.Time
}

func (pm *pipelineMeasure) New() error {
	pm.AddMetric(model.StartStage.Name)
	pm.AddMetric(model.EndStage.Name)
	pm.startTime = time.Now()

	return nil
}

func (pm *pipelineMeasure) PrepareStage(_, stage *model.StageInfo) error {
	pm.AddMetric(stage.Name)

	return nil
}

func (pm *pipelineMeasure) OnStageResult(stage *model.StageInfo, result model.StageResult) error {
	pm.AddMetric(stage.Name).AddResult(result)

	return nil
}

// Finish stores the duration of the whole run on the end metric.
func (pm *pipelineMeasure) Finish(error) error {
	pm.GetMetric(model.EndStage.Name).SetTotalDuration(time.Since(pm.startTime))

	return nil
}

// PipelineMeasure records the duration and outcome of every stage into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{Measure: measure}
}
