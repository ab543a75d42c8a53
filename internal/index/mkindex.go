package index

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/qwk"
)

// Result summarizes one MkIndex run.
type Result struct {
	RunID   string
	Index   string // Path of the index file
	Written int    // Index records written
	NDX     int    // Legacy NDX records written
	Skipped []qwk.SkippedRecord
	Err     error // Fatal error, nil when the run completed
}

// OK reports whether the run completed without a fatal error.
func (r Result) OK() bool { return r.Err == nil }

func (r Result) String() string {
	s := fmt.Sprintf("run %s: %d written, %d skipped", r.RunID, r.Written, len(r.Skipped))
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}

// MkIndex scans srcDir and writes destDir/messages.idx, one record per
// message as it is found. Conferences are resolved against sess, which may
// be nil. With WithNDX the legacy per-conference NDX files are written too.
func MkIndex(srcDir, destDir string, sess *control.Session, opts ...Option) Result {
	res := Result{RunID: uuid.NewString()}
	var table *control.Table
	if sess != nil {
		table = sess.Conferences
	}
	b := NewBuilder(table, opts...)

	s, err := b.Scan(srcDir)
	if err != nil {
		res.Err = err
		return res
	}
	defer s.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		res.Err = &qwk.IOError{Op: "mkdir", Path: destDir, Err: err}
		return res
	}
	res.Index = filepath.Join(destDir, IndexFile)
	f, err := os.Create(res.Index)
	if err != nil {
		res.Err = &qwk.IOError{Op: "create", Path: res.Index, Err: err}
		return res
	}

	var ndx *ndxSet
	if b.ndx {
		ndx = &ndxSet{dir: destDir, files: make(map[uint16]*ndxFile)}
	}

	w := NewWriter(f)
	var writeErr error
	for e := range s.Entries() {
		if writeErr = w.Write(e); writeErr != nil {
			break
		}
		if ndx != nil {
			if writeErr = ndx.add(e); writeErr != nil {
				break
			}
		}
	}
	if writeErr == nil {
		writeErr = w.Flush()
	}
	if err := f.Close(); err != nil && writeErr == nil {
		writeErr = &qwk.IOError{Op: "close", Path: res.Index, Written: w.Flushed(), Err: err}
	}
	if ndx != nil {
		n, err := ndx.close()
		res.NDX = n
		if writeErr == nil {
			writeErr = err
		}
	}

	res.Written = w.Flushed()
	res.Skipped = s.Skipped()
	res.Err = s.Err()
	if writeErr != nil {
		var ioErr *qwk.IOError
		if errors.As(writeErr, &ioErr) && ioErr.Path == "" {
			ioErr.Path = res.Index
		}
		res.Err = writeErr
	}

	if res.Err != nil {
		b.log.Printf("ERROR: index: %s: %v", srcDir, res.Err)
	} else {
		b.log.Printf("INFO: index: %s: %d messages indexed, %d skipped (run %s)",
			srcDir, res.Written, len(res.Skipped), res.RunID)
	}
	return res
}

type ndxFile struct {
	f  *os.File
	bw *bufio.Writer
	n  int
}

// ndxSet holds the per-conference NDX files of one run, opened on first use.
type ndxSet struct {
	dir   string
	files map[uint16]*ndxFile
}

func (s *ndxSet) add(e Entry) error {
	if e.Reply {
		return nil
	}
	nf, ok := s.files[e.Conference]
	if !ok {
		path := filepath.Join(s.dir, NDXName(e.Conference))
		f, err := os.Create(path)
		if err != nil {
			return &qwk.IOError{Op: "create", Path: path, Err: err}
		}
		nf = &ndxFile{f: f, bw: bufio.NewWriter(f)}
		s.files[e.Conference] = nf
	}
	if err := writeNDXRecord(nf.bw, e); err != nil {
		return &qwk.IOError{Op: "write ndx", Path: nf.f.Name(), Written: nf.n, Err: err}
	}
	nf.n++
	return nil
}

func (s *ndxSet) close() (int, error) {
	confs := make([]int, 0, len(s.files))
	for c := range s.files {
		confs = append(confs, int(c))
	}
	sort.Ints(confs)

	total := 0
	var first error
	for _, c := range confs {
		nf := s.files[uint16(c)]
		total += nf.n
		err := nf.bw.Flush()
		if cerr := nf.f.Close(); err == nil {
			err = cerr
		}
		if err != nil && first == nil {
			first = &qwk.IOError{Op: "write ndx", Path: nf.f.Name(), Err: err}
		}
	}
	return total, first
}
