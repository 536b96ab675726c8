package runner

import (
	"bytes"
	"strings"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

// lineWriter forwards complete lines written to it. A trailing partial line is kept until
// the next write or flush.
type lineWriter struct {
	stream model.Stream
	fn     func(model.Stream, string)
	buf    bytes.Buffer
}

func newLineWriter(stream model.Stream, fn func(model.Stream, string)) *lineWriter {
	return &lineWriter{stream: stream, fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if w.fn == nil {
		return len(p), nil
	}

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(line)
	}

	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.fn == nil || w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.String())
	w.buf.Reset()
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.fn(w.stream, line)
}
