package model

import (
	"fmt"
	"time"
)

type EventType string

const (
	InfoEvent              EventType = "info"
	OutputEvent            EventType = "output"
	StageCompletedEvent    EventType = "stage_completed"
	StageFailedEvent       EventType = "stage_failed"
	PipelineCompletedEvent EventType = "pipeline_completed"
	PipelineFailedEvent    EventType = "pipeline_failed"
	FileProcessedEvent     EventType = "file_processed"
	FileFailedEvent        EventType = "file_failed"
)

// Stream identifies which process stream produced an output line.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Event is a progress event. Only the fields relevant to Type are set.
type Event struct {
	Type    EventType
	Time    time.Time
	Stage   string
	File    string
	Stream  Stream
	Message string
	Err     error
}

func Info(format string, args ...interface{}) Event {
	return Event{Type: InfoEvent, Time: time.Now(), Message: fmt.Sprintf(format, args...)}
}

func Output(stage string, stream Stream, line string) Event {
	return Event{Type: OutputEvent, Time: time.Now(), Stage: stage, Stream: stream, Message: line}
}

func StageCompleted(stage string) Event {
	return Event{Type: StageCompletedEvent, Time: time.Now(), Stage: stage}
}

func StageFailed(stage string, err error) Event {
	return Event{Type: StageFailedEvent, Time: time.Now(), Stage: stage, Err: err}
}

func PipelineCompleted() Event {
	return Event{Type: PipelineCompletedEvent, Time: time.Now()}
}

func PipelineFailed(err error) Event {
	return Event{Type: PipelineFailedEvent, Time: time.Now(), Err: err}
}

func FileProcessed(path string) Event {
	return Event{Type: FileProcessedEvent, Time: time.Now(), File: path}
}

func FileFailed(path string, err error) Event {
	return Event{Type: FileFailedEvent, Time: time.Now(), File: path, Err: err}
}

// Terminal reports whether no event can follow e in a pipeline run.
func (e Event) Terminal() bool {
	return e.Type == PipelineCompletedEvent || e.Type == PipelineFailedEvent
}

func (e Event) String() string {
	switch e.Type {
	case InfoEvent:
		return e.Message
	case OutputEvent:
		return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
	case StageCompletedEvent:
		return fmt.Sprintf("%s: completed", e.Stage)
	case StageFailedEvent:
		return fmt.Sprintf("%s: failed: %v", e.Stage, e.Err)
	case PipelineCompletedEvent:
		return "pipeline completed"
	case PipelineFailedEvent:
		return fmt.Sprintf("pipeline failed: %v", e.Err)
	case FileProcessedEvent:
		return "processed " + e.File
	case FileFailedEvent:
		return fmt.Sprintf("failed %s: %v", e.File, e.Err)
	}

	return string(e.Type)
}
