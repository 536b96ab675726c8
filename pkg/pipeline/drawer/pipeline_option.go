package drawer

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-reconstruct/pkg/pipeline/measure"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
	last      string
}

func (pd *pipelineDrawer) New() error {
	err := pd.AddStage(model.StartStage.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start stage to drawer")
	}
	err = pd.AddStage(model.EndStage.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end stage to drawer")
	}
	pd.last = model.StartStage.Name
	pd.startTime = time.Now()

	return nil
}

// PrepareStage links stage to the producers of its checked inputs.
func (pd *pipelineDrawer) PrepareStage(_, stage *model.StageInfo) error {
	err := pd.AddStage(stage.Name)
	if err != nil {
		return err
	}

	for _, link := range stage.Inputs {
		err := pd.AddLink(link.From, stage.Name, strings.Join(link.Keys, ","))
		if err != nil {
			return err
		}
	}
	pd.last = stage.Name

	return nil
}

func (pd *pipelineDrawer) OnStageResult(*model.StageInfo, model.StageResult) error {
	return nil
}

func (pd *pipelineDrawer) Finish(error) error {
	err := pd.AddLink(pd.last, model.EndStage.Name, "")
	if err != nil {
		return errors.Wrap(err, "unable to link end stage")
	}

	if pd.m != nil {
		err := pd.SetTotalTime(model.EndStage.Name, pd.startTime)
		if err != nil {
			return errors.Wrap(err, "unable to set total time")
		}
		err = pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err = pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the stage graph once the pipeline finished. A non nil measure must
// also be attached to the pipeline with measure.PipelineMeasure.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, m: measure}
}
