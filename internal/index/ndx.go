package index

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	"github.com/stlalpha/qmail/internal/qwk"
)

// NDXRecordSize is the width of one legacy NDX record: a 1-based block
// number as an MSBIN float followed by the conference byte.
const NDXRecordSize = 5

// NDXRecord is one record of a legacy per-conference index.
type NDXRecord struct {
	Block      uint32
	Conference byte
}

// HeaderOffset returns the byte position of the header the record points
// at, within messages.dat.
func (r NDXRecord) HeaderOffset() uint64 {
	if r.Block == 0 {
		return 0
	}
	return uint64(r.Block-1) * qwk.BlockSize
}

// NDXName returns the NDX file name for a conference number, e.g. 007.ndx.
func NDXName(conf uint16) string {
	return fmt.Sprintf("%03d%s", conf, NDXExt)
}

// WriteNDX writes one NDX record per entry. Entries read from reply files
// have no place in an NDX file and are ignored.
func WriteNDX(w io.Writer, entries iter.Seq[Entry]) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for e := range entries {
		if e.Reply {
			continue
		}
		if err := writeNDXRecord(bw, e); err != nil {
			return n, &qwk.IOError{Op: "write ndx", Written: n, Err: err}
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, &qwk.IOError{Op: "write ndx", Err: err}
	}
	return n, nil
}

func writeNDXRecord(w io.Writer, e Entry) error {
	var rec [NDXRecordSize]byte
	mb := qwk.Uint32ToMSBIN(e.Block())
	copy(rec[:4], mb[:])
	rec[4] = byte(e.Conference)
	_, err := w.Write(rec[:])
	return err
}

// ReadNDX reads every record of a legacy NDX file.
func ReadNDX(r io.Reader) ([]NDXRecord, error) {
	br := bufio.NewReader(r)
	var recs []NDXRecord
	var buf [NDXRecordSize]byte
	for {
		_, err := io.ReadFull(br, buf[:])
		if err == io.EOF {
			return recs, nil
		}
		if err == io.ErrUnexpectedEOF {
			return recs, fmt.Errorf("%w: partial ndx record after %d", qwk.ErrTruncatedRecord, len(recs))
		}
		if err != nil {
			return recs, &qwk.IOError{Op: "read ndx", Err: err}
		}
		recs = append(recs, NDXRecord{
			Block:      qwk.MSBINToUint32([4]byte(buf[:4])),
			Conference: buf[4],
		})
	}
}
