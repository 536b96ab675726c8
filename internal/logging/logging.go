// Package logging builds the process logger and logs progress events.
package logging

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/progress"
)

const timestampFormat = "2006-01-02 15:04:05"

var ErrUnknownFormat = errors.New("unknown log format")

// New returns a logger writing to out. format is "text" or "json".
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse log level")
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}

	return logger, nil
}

// Observe logs every event of sub until the stream ends. Stage output goes to the debug
// level, failures to the error level.
func Observe(log logrus.FieldLogger, sub *progress.Subscription) {
	defer sub.Close()

	for event := range sub.Events() {
		Event(log, event)
	}
}

// Event logs a single event.
func Event(log logrus.FieldLogger, event model.Event) {
	entry := log.WithField("event", string(event.Type))
	if event.Stage != "" {
		entry = entry.WithField("stage", event.Stage)
	}
	if event.File != "" {
		entry = entry.WithField("file", event.File)
	}
	if event.Err != nil {
		entry = entry.WithError(event.Err)
	}

	switch event.Type {
	case model.OutputEvent:
		entry.WithField("stream", string(event.Stream)).Debug(event.Message)
	case model.InfoEvent:
		entry.Info(event.Message)
	case model.StageCompletedEvent:
		entry.Info("stage completed")
	case model.FileProcessedEvent:
		entry.Debug("image processed")
	case model.FileFailedEvent:
		entry.Warn("image failed")
	case model.StageFailedEvent:
		entry.Error("stage failed")
	case model.PipelineCompletedEvent:
		entry.Info("pipeline completed")
	case model.PipelineFailedEvent:
		entry.Error("pipeline failed")
	default:
		entry.Info(event.String())
	}
}
