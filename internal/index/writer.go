package index

import (
	"bufio"
	"io"
	"iter"

	"github.com/stlalpha/qmail/internal/qwk"
)

const writerBufferEntries = 256

// Writer appends index records to an open handle. Creating and truncating
// the file is up to the caller.
type Writer struct {
	bw       *bufio.Writer
	buf      [EntrySize]byte
	count    int   // Entries accepted
	accepted int64 // Bytes accepted by bw
	err      error
}

// NewWriter returns a Writer buffering records for w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, EntrySize*writerBufferEntries)}
}

// Write appends one record. After a failure every later call returns the
// same *qwk.IOError.
func (w *Writer) Write(e Entry) error {
	if w.err != nil {
		return w.err
	}
	e.Marshal(w.buf[:])
	n, err := w.bw.Write(w.buf[:])
	w.accepted += int64(n)
	if err != nil {
		return w.fail(err)
	}
	w.count++
	return nil
}

// Flush writes any buffered records to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		return w.fail(err)
	}
	return nil
}

// Count returns the number of records accepted by Write.
func (w *Writer) Count() int { return w.count }

// Flushed returns the number of whole records the underlying writer has
// accepted.
func (w *Writer) Flushed() int {
	return int((w.accepted - int64(w.bw.Buffered())) / EntrySize)
}

func (w *Writer) fail(err error) error {
	w.err = &qwk.IOError{Op: "write index", Written: w.Flushed(), Err: err}
	return w.err
}

// WriteIndex writes entries to w in the order received and flushes. It
// returns the number of records written; on failure the count is the
// number that reached w, also carried in the *qwk.IOError.
func WriteIndex(w io.Writer, entries iter.Seq[Entry]) (int, error) {
	iw := NewWriter(w)
	for e := range entries {
		if err := iw.Write(e); err != nil {
			return iw.Flushed(), err
		}
	}
	if err := iw.Flush(); err != nil {
		return iw.Flushed(), err
	}
	return iw.Count(), nil
}
