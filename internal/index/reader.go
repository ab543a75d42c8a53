package index

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/stlalpha/qmail/internal/qwk"
)

// Count returns the number of records in an index file of size bytes.
func Count(size int64) (int, error) {
	if size%EntrySize != 0 {
		return int(size / EntrySize), fmt.Errorf("%w: index size %d is not a multiple of %d",
			qwk.ErrTruncatedRecord, size, EntrySize)
	}
	return int(size / EntrySize), nil
}

// ReadIndex reads every record from r. A trailing partial record fails
// with ErrTruncatedRecord; the complete records before it are returned.
func ReadIndex(r io.Reader) ([]Entry, error) {
	return readIndex(r, 0)
}

func readIndex(r io.Reader, hint int) ([]Entry, error) {
	br := bufio.NewReader(r)
	entries := make([]Entry, 0, hint)
	var buf [EntrySize]byte
	for {
		n, err := io.ReadFull(br, buf[:])
		if err == io.EOF {
			return entries, nil
		}
		if err == io.ErrUnexpectedEOF {
			return entries, fmt.Errorf("%w: %d trailing bytes after record %d",
				qwk.ErrTruncatedRecord, n, len(entries))
		}
		if err != nil {
			return entries, &qwk.IOError{Op: "read index", Err: err}
		}
		var e Entry
		e.Unmarshal(buf[:])
		entries = append(entries, e)
	}
}

// ReadFile reads the index file at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &qwk.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	var hint int
	if fi, err := f.Stat(); err == nil {
		// A truncated tail is reported by readIndex.
		hint, _ = Count(fi.Size())
	}
	return readIndex(f, hint)
}

// ReadAt reads record i without loading the whole index.
func ReadAt(r io.ReaderAt, i int) (Entry, error) {
	var buf [EntrySize]byte
	if n, err := r.ReadAt(buf[:], int64(i)*EntrySize); n < EntrySize {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Entry{}, fmt.Errorf("%w: record %d", qwk.ErrTruncatedRecord, i)
		}
		return Entry{}, &qwk.IOError{Op: "read index", Err: err}
	}
	var e Entry
	e.Unmarshal(buf[:])
	return e, nil
}
