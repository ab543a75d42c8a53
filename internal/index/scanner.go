package index

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"path/filepath"

	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/qwk"
)

// Scanner walks the source files of a packet one message at a time. The
// files are treated as one stream: the offset of each file's first byte is
// the sum of the sizes of the files before it.
//
// Use it like bufio.Scanner:
//
//	for s.Next() {
//		e := s.Entry()
//	}
//	if err := s.Err(); err != nil { ... }
//
// Stopping early only requires Close. Reset rewinds to the first file.
type Scanner struct {
	b     *Builder
	files []string
	fi    int

	f     *os.File
	r     *bufio.Reader
	path  string
	reply bool
	size  int64
	base  uint64 // Stream offset of the current file
	pos   uint64 // Read position within the current file

	hdr     [qwk.HeaderSize]byte
	entry   Entry
	skipped []qwk.SkippedRecord
	err     error
	done    bool
}

// header fields the scanner needs from either header form.
type record struct {
	number  uint64
	blocks  uint64
	conf    uint16
	sizeBad bool
}

// Next advances to the next well-formed message. It returns false at the
// end of the stream or on a fatal error.
func (s *Scanner) Next() bool {
	for !s.done && s.err == nil {
		if s.f == nil {
			if s.fi >= len(s.files) {
				s.done = true
				break
			}
			if err := s.open(s.files[s.fi]); err != nil {
				s.err = err
				break
			}
			s.fi++
		}
		ok, err := s.read()
		if err != nil {
			s.err = err
			s.closeFile()
			break
		}
		if ok {
			return true
		}
	}
	return false
}

// Entry returns the entry found by the last successful Next.
func (s *Scanner) Entry() Entry { return s.entry }

// Err returns the fatal error that stopped the scan, if any.
func (s *Scanner) Err() error { return s.err }

// Skipped returns the records skipped so far.
func (s *Scanner) Skipped() []qwk.SkippedRecord {
	out := make([]qwk.SkippedRecord, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// Reset rewinds the scanner to the start of the first file.
func (s *Scanner) Reset() error {
	err := s.closeFile()
	s.fi = 0
	s.base, s.pos = 0, 0
	s.entry = Entry{}
	s.skipped = nil
	s.err = nil
	s.done = false
	return err
}

// Close releases the open file. Next returns false afterwards.
func (s *Scanner) Close() error {
	s.done = true
	return s.closeFile()
}

// Entries yields entries until the stream ends; check Err afterwards.
func (s *Scanner) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for s.Next() {
			if !yield(s.Entry()) {
				return
			}
		}
	}
}

// All yields every entry, then the fatal error if there is one. The
// scanner is closed when the loop ends.
func (s *Scanner) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Entry(), nil) {
				return
			}
		}
		if s.err != nil {
			yield(Entry{}, s.err)
		}
	}
}

func (s *Scanner) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &qwk.IOError{Op: "open", Path: path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return &qwk.IOError{Op: "stat", Path: path, Err: err}
	}
	s.f = f
	s.r = bufio.NewReaderSize(f, 64*1024)
	s.path = path
	s.reply = isReplyFile(path)
	s.size = fi.Size()
	s.pos = 0
	logging.Debug("index: scanning %s (%d bytes) at stream offset %d", path, s.size, s.base)

	if s.b.packetHeader {
		n, err := s.r.Discard(qwk.BlockSize)
		s.pos += uint64(n)
		if err != nil && err != io.EOF {
			return &qwk.IOError{Op: "read", Path: path, Err: err}
		}
	}
	return nil
}

func (s *Scanner) closeFile() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.base += uint64(s.size)
	s.f, s.r = nil, nil
	if err != nil {
		return &qwk.IOError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}

// read consumes one record. It reports true when s.entry holds a new
// entry; false with a nil error means the record was skipped or the file
// ended.
func (s *Scanner) read() (bool, error) {
	hdrPos := s.pos
	n, err := io.ReadFull(s.r, s.hdr[:])
	switch {
	case err == io.EOF:
		s.closeFile()
		return false, nil
	case err == io.ErrUnexpectedEOF:
		s.skip(hdrPos, fmt.Errorf("%w: %d trailing bytes", qwk.ErrTruncatedRecord, n))
		s.closeFile()
		return false, nil
	case err != nil:
		return false, &qwk.IOError{Op: "read", Path: s.path, Err: err}
	}
	s.pos += qwk.HeaderSize

	rec, decodeErr := s.decode(s.hdr[:])
	if rec.sizeBad {
		found, err := s.headerAhead()
		if err != nil {
			return false, err
		}
		if found {
			return false, fmt.Errorf("%w: %s header at %d: %v",
				qwk.ErrUnrecoverableCorruption, filepath.Base(s.path), hdrPos, decodeErr)
		}
		// Nothing follows that looks like a header, so this was the last
		// record of the file and no later offset depends on it.
		s.skip(hdrPos, decodeErr)
		s.closeFile()
		return false, nil
	}

	bodyLen := qwk.BodyLen(rec.blocks, s.b.sizeIncludesHeader)
	left := uint64(s.size) - s.pos
	if bodyLen > left {
		reason := fmt.Errorf("%w: body of %d bytes, %d left in file", qwk.ErrTruncatedRecord, bodyLen, left)
		found, err := s.headerAhead()
		if err != nil {
			return false, err
		}
		if found {
			return false, fmt.Errorf("%w: %s header at %d: %w",
				qwk.ErrUnrecoverableCorruption, filepath.Base(s.path), hdrPos, reason)
		}
		s.skip(hdrPos, reason)
		s.closeFile()
		return false, nil
	}
	if _, err := s.r.Discard(int(bodyLen)); err != nil {
		return false, &qwk.IOError{Op: "read", Path: s.path, Err: err}
	}
	s.pos += bodyLen

	if decodeErr != nil {
		s.skip(hdrPos, decodeErr)
		return false, nil
	}

	e := Entry{
		Offset:     s.base + hdrPos + qwk.HeaderSize,
		Size:       uint32(bodyLen),
		Conference: rec.conf,
		Number:     rec.number,
		Source:     filepath.Base(s.path),
		Header:     hdrPos,
		Reply:      s.reply,
	}
	if c, ok := s.b.table.Lookup(int(rec.conf)); ok {
		e.ConferenceName = c.Name
	} else {
		e.Unresolved = true
		logging.Debug("index: %s message %d: conference %d not in control file", e.Source, e.Number, e.Conference)
	}
	s.entry = e
	return true, nil
}

func (s *Scanner) decode(b []byte) (record, error) {
	var rec record
	var err error
	if s.reply {
		var r *qwk.ReplyHeader
		r, err = s.b.codec.DecodeReply(b)
		rec.blocks = r.SizeMsg.Value
		if r.ConfNum.Value > math.MaxUint16 {
			err = errors.Join(err, &qwk.FieldError{Field: qwk.FieldConfNum.String(), Raw: r.ConfNum.Raw, Reason: "conference out of range"})
		}
		rec.conf = uint16(r.ConfNum.Value)
	} else {
		var h *qwk.MessageHeader
		h, err = s.b.codec.DecodeReceived(b)
		rec.blocks = h.SizeMsg.Value
		rec.number = h.NumMsg.Value
		rec.conf = uint16(h.Conference)
	}
	var derr *qwk.DecodeError
	rec.sizeBad = errors.As(err, &derr) && derr.Has(qwk.FieldSizeMsg)
	return rec, err
}

// headerAhead reports whether any later block of the current file decodes as a
// plausible header.
func (s *Scanner) headerAhead() (bool, error) {
	if int64(s.pos) >= s.size {
		return false, nil
	}
	sr := io.NewSectionReader(s.f, int64(s.pos), s.size-int64(s.pos))
	var blk [qwk.HeaderSize]byte
	for {
		if _, err := io.ReadFull(sr, blk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return false, nil
			}
			return false, &qwk.IOError{Op: "read", Path: s.path, Err: err}
		}
		if s.plausible(blk[:]) {
			return true, nil
		}
	}
}

func (s *Scanner) plausible(b []byte) bool {
	if s.reply {
		r, err := s.b.codec.DecodeReply(b)
		if err != nil {
			return false
		}
		_, err = r.Time()
		return err == nil
	}
	h, err := s.b.codec.DecodeReceived(b)
	if err != nil {
		return false
	}
	_, err = h.Time()
	return err == nil
}

func (s *Scanner) skip(hdrPos uint64, err error) {
	rec := qwk.SkippedRecord{Source: filepath.Base(s.path), Offset: s.base + hdrPos, Err: err}
	s.skipped = append(s.skipped, rec)
	s.b.log.Printf("WARN: index: skipping record at %s+%d: %v", rec.Source, hdrPos, err)
}
