package pcboard

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/stlalpha/qmail/internal/qwk"
)

// IndexRecord is one 64-byte .IDX record.
//
//	Offset Len Field
//	     0   4 Offset    header position in MSGS, little-endian int32
//	     4   4 Num       message number, little-endian int32
//	     8  25 To
//	    33  25 From
//	    58   1 Status
//	    59   2 Date      days, little-endian, kept raw
//	    61   3 Reserved
type IndexRecord struct {
	Offset int32
	Num    int32
	To     string
	From   string
	Status byte
	Date   uint16
}

func decodeIndexRecord(b []byte) IndexRecord {
	return IndexRecord{
		Offset: int32(binary.LittleEndian.Uint32(b[0:4])),
		Num:    int32(binary.LittleEndian.Uint32(b[4:8])),
		To:     text(b[8:33]),
		From:   text(b[33:58]),
		Status: b[58],
		Date:   binary.LittleEndian.Uint16(b[59:61]),
	}
}

// ReadIndex reads every record of the .IDX file. A partial trailing record
// is reported as ErrIndexCorrupted.
func (b *Base) ReadIndex() ([]IndexRecord, error) {
	path, err := b.sibling(".idx")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &qwk.IOError{Op: "read", Path: path, Err: err}
	}
	if len(data)%IndexRecordSize != 0 {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrIndexCorrupted, path, len(data))
	}
	recs := make([]IndexRecord, 0, len(data)/IndexRecordSize)
	for i := 0; i < len(data); i += IndexRecordSize {
		recs = append(recs, decodeIndexRecord(data[i:i+IndexRecordSize]))
	}
	return recs, nil
}

// ReadOldIndex reads the .NDX file and returns the header offsets it
// lists. Reading stops at the first zero entry.
func (b *Base) ReadOldIndex() ([]int64, error) {
	path, err := b.sibling(".ndx")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &qwk.IOError{Op: "read", Path: path, Err: err}
	}
	var offs []int64
	for i := 0; i+OldIndexItemSize <= len(data); i += OldIndexItemSize {
		n := msbin(data[i : i+OldIndexItemSize])
		if n == 0 {
			break
		}
		offs = append(offs, int64(n-1)*qwk.BlockSize)
	}
	return offs, nil
}
