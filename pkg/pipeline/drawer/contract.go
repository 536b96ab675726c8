package drawer

import (
	"time"

	"github.com/askiada/go-reconstruct/pkg/pipeline/measure"
)

// Drawer is an interface that defines the methods for drawing a stage chain.
type Drawer interface {
	// AddStage adds a stage to the drawing.
	AddStage(name string) error
	// AddLink adds a link from the stage providing inputs to the stage consuming them.
	AddLink(parentName, childName, label string) error
	// Draw writes the drawing.
	Draw() error
	// SetTotalTime labels a stage with the time elapsed since start.
	SetTotalTime(name string, start time.Time) error
	// AddMeasure colours the stages with their measured duration and outcome.
	AddMeasure(measure measure.Measure) error
}
