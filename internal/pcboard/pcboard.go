// Package pcboard reads PCBoard message bases: the MSGS file holding a
// base header and 128-byte message blocks, the 64-byte record .IDX index
// and the legacy MSBIN .NDX index.
package pcboard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/qmail/internal/qwk"
)

// Record sizes.
const (
	BaseHeaderSize   = 22  // Four MSBIN counters and the lock string
	HeaderSize       = 128 // Message header, one block
	ExtHeaderSize    = 72  // Extended header inside the message body
	IndexRecordSize  = 64  // .IDX record
	OldIndexItemSize = 4   // .NDX record, MSBIN block number
	lockLen          = 6
)

// ExtHeaderID marks the start of an extended header.
var ExtHeaderID = [2]byte{0xFF, 0x40}

var (
	ErrOutOfRange     = errors.New("pcboard: message number out of range")
	ErrIndexCorrupted = errors.New("pcboard: index file corrupted")
	ErrNoIndex        = errors.New("pcboard: index file not found")
)

// BaseHeader is the header at the start of the MSGS file.
type BaseHeader struct {
	High    uint32 // Highest message number in the index
	Low     uint32 // Lowest message number in the index
	Active  uint32 // Messages not deleted
	Callers uint32
	Lock    string // "LOCKED" while PCBoard writes to the base
}

// Locked reports whether PCBoard holds the base lock.
func (h BaseHeader) Locked() bool { return h.Lock == "LOCKED" }

// Base is a PCBoard message base. Files are opened per call.
type Base struct {
	path string
	hdr  BaseHeader
}

// Open reads the base header of the MSGS file at path.
func Open(path string) (*Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &qwk.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var buf [BaseHeaderSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return nil, fmt.Errorf("pcboard: read base header of %s: %w", path, err)
	}
	return &Base{path: path, hdr: decodeBaseHeader(buf[:])}, nil
}

func decodeBaseHeader(b []byte) BaseHeader {
	return BaseHeader{
		High:    msbin(b[0:4]),
		Low:     msbin(b[4:8]),
		Active:  msbin(b[8:12]),
		Callers: msbin(b[12:16]),
		Lock:    text(b[16 : 16+lockLen]),
	}
}

// Path returns the MSGS file path.
func (b *Base) Path() string { return b.path }

// Header returns the base header read by Open.
func (b *Base) Header() BaseHeader { return b.hdr }

// sibling finds the file next to the MSGS file with extension ext, trying
// upper then lower case.
func (b *Base) sibling(ext string) (string, error) {
	stem := strings.TrimSuffix(b.path, filepath.Ext(b.path))
	for _, e := range []string{strings.ToUpper(ext), strings.ToLower(ext)} {
		p := stem + e
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s%s", ErrNoIndex, stem, strings.ToUpper(ext))
}

func msbin(b []byte) uint32 {
	return qwk.MSBINToUint32([4]byte(b))
}

// text decodes a fixed-width CP437 field, stopping at NUL and dropping
// trailing blanks.
func text(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(qwk.DecodeCP437(b), " ")
}
