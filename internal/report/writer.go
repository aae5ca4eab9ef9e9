package report

import (
	"io"

	"github.com/nao1215/ipfsprobe/internal/model"
)

// Writer writes a measurement in one format.
type Writer interface {
	// Write outputs m and returns the number of bytes written.
	Write(m *model.Measurement) (int, error)
}

// MultiWriter writes to multiple Writers in turn. It stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements Writer.
func (mw *MultiWriter) Write(m *model.Measurement) (int, error) {
	var total int
	for _, w := range mw.writers {
		n, err := w.Write(m)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts the bytes passed to an io.Writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
