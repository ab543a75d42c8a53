// Package index scans the message files of a mail packet and writes the
// per-message index: one fixed-size record of payload offset, payload size
// and conference for every message, in file order.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/stlalpha/qmail/internal/qwk"
)

const (
	offWidth  = 8
	sizeWidth = 4
	confWidth = 2
	// EntrySize is the width of one index record on disk.
	EntrySize = offWidth + sizeWidth + confWidth // 14 bytes
)

// File names written by MkIndex.
const (
	IndexFile = "messages.idx"
	NDXExt    = ".ndx"
)

// Entry locates one message payload in the scanned stream. Only Offset,
// Size and Conference are written to the index file; the other fields are
// kept for reporting.
type Entry struct {
	Offset     uint64 // Stream offset of the body, just past the header
	Size       uint32 // Body length in bytes
	Conference uint16

	Number         uint64 // NumMsg of a received header
	Source         string // File the message was read from
	Header         uint64 // Header position within Source
	Reply          bool   // Read from a reply (.msg) file
	ConferenceName string
	Unresolved     bool // Conference not in the control file
}

// End returns the stream offset just past the payload.
func (e Entry) End() uint64 { return e.Offset + uint64(e.Size) }

// Block returns the 1-based block number of the header within Source, as
// stored by legacy NDX files.
func (e Entry) Block() uint32 { return uint32(e.Header/qwk.BlockSize) + 1 }

func (e Entry) String() string {
	return fmt.Sprintf("%s#%d conf=%d off=%d size=%d", e.Source, e.Number, e.Conference, e.Offset, e.Size)
}

// Marshal writes the on-disk record into b, which must hold EntrySize bytes.
func (e Entry) Marshal(b []byte) {
	binary.LittleEndian.PutUint64(b[0:offWidth], e.Offset)
	binary.LittleEndian.PutUint32(b[offWidth:offWidth+sizeWidth], e.Size)
	binary.LittleEndian.PutUint16(b[offWidth+sizeWidth:EntrySize], e.Conference)
}

// Unmarshal reads the on-disk record from b.
func (e *Entry) Unmarshal(b []byte) {
	e.Offset = binary.LittleEndian.Uint64(b[0:offWidth])
	e.Size = binary.LittleEndian.Uint32(b[offWidth : offWidth+sizeWidth])
	e.Conference = binary.LittleEndian.Uint16(b[offWidth+sizeWidth : EntrySize])
}
