package emit

import (
	"errors"
	"io"
)

const (
	firstSeparator = "\n    "
	separator      = ",\n    "
)

// flusher is implemented by buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// Document writes the top-level array of a run: "[", then each element
// on its own indented line, then "\n]\n". An empty document is "[]\n".
// Every element is flushed as soon as it is written.
type Document struct {
	w      io.Writer
	count  int
	begun  bool
	closed bool
}

// NewDocument returns a Document writing to w. Nothing is written until
// Begin.
func NewDocument(w io.Writer) *Document {
	return &Document{w: w}
}

// Begin writes the opening bracket. It is called implicitly by the first
// WriteElement or by End.
func (d *Document) Begin() error {
	if d.begun {
		return nil
	}
	d.begun = true
	if _, err := io.WriteString(d.w, "["); err != nil {
		return err
	}
	return d.flush()
}

// WriteElement writes one rendered top-level element.
func (d *Document) WriteElement(p []byte) error {
	if d.closed {
		return errors.New("emit: document is closed")
	}
	if err := d.Begin(); err != nil {
		return err
	}
	sep := separator
	if d.count == 0 {
		sep = firstSeparator
	}
	if _, err := io.WriteString(d.w, sep); err != nil {
		return err
	}
	if _, err := d.w.Write(p); err != nil {
		return err
	}
	d.count++
	return d.flush()
}

// End writes the closing bracket. Calling End more than once is a no-op.
func (d *Document) End() error {
	if d.closed {
		return nil
	}
	if err := d.Begin(); err != nil {
		return err
	}
	d.closed = true
	closing := "\n]\n"
	if d.count == 0 {
		closing = "]\n"
	}
	if _, err := io.WriteString(d.w, closing); err != nil {
		return err
	}
	return d.flush()
}

// Count returns the number of elements written.
func (d *Document) Count() int {
	return d.count
}

func (d *Document) flush() error {
	if f, ok := d.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
