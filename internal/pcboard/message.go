package pcboard

import (
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/stlalpha/qmail/internal/qwk"
)

// MessageHeader is the first block of a message in the MSGS file.
//
//	Offset Len Field
//	     0   1 Status
//	     1   4 Number       MSBIN
//	     5   4 Ref          MSBIN
//	     9   1 Blocks       header block included
//	    10   8 Date         mm-dd-yy
//	    18   5 Time         HH:MM
//	    23  25 To
//	    48   4 ReplyDate    raw
//	    52   5 ReplyTime
//	    57   1 ReplyStatus
//	    58  25 From
//	    83  25 Subject
//	   108  12 Password
//	   120   1 Active       0xE1 active, 0xE2 deleted
//	   121   1 Echo
//	   122   4 Reserved
//	   126   1 ExtStatus
//	   127   1 NetTag
type MessageHeader struct {
	Status      byte
	Number      uint32
	Ref         uint32
	Blocks      uint8
	Date        string
	Time        string
	To          string
	ReplyDate   [4]byte
	ReplyTime   string
	ReplyStatus byte
	From        string
	Subject     string
	Password    string
	Active      byte
	Echo        byte
	Reserved    [4]byte
	ExtStatus   byte
	NetTag      byte
}

// decodeHeader decodes a 128-byte message header.
func decodeHeader(b []byte) (*MessageHeader, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("%w: header of %d bytes", qwk.ErrTruncatedRecord, len(b))
	}
	h := &MessageHeader{
		Status:      b[0],
		Number:      msbin(b[1:5]),
		Ref:         msbin(b[5:9]),
		Blocks:      b[9],
		Date:        text(b[10:18]),
		Time:        text(b[18:23]),
		To:          text(b[23:48]),
		ReplyDate:   [4]byte(b[48:52]),
		ReplyTime:   text(b[52:57]),
		ReplyStatus: b[57],
		From:        text(b[58:83]),
		Subject:     text(b[83:108]),
		Password:    text(b[108:120]),
		Active:      b[120],
		Echo:        b[121],
		Reserved:    [4]byte(b[122:126]),
		ExtStatus:   b[126],
		NetTag:      b[127],
	}
	return h, nil
}

// TimeWritten parses Date and Time.
func (h *MessageHeader) TimeWritten() (time.Time, error) {
	return time.Parse(qwk.DateLayout+" "+qwk.TimeLayout, h.Date+" "+h.Time)
}

// Deleted reports whether the active byte marks the message killed.
func (h *MessageHeader) Deleted() bool { return h.Active == qwk.DeletedFlag }

// Private reports whether the status byte marks the message private.
func (h *MessageHeader) Private() bool {
	return h.Status == qwk.StatusPrivateUnread || h.Status == qwk.StatusPrivateRead
}

// Extended header functions.
const (
	FuncTo      = "TO"
	FuncFrom    = "FROM"
	FuncSubject = "SUBJECT"
	FuncAttach  = "ATTACH"
	FuncList    = "LIST"
	FuncRoute   = "ROUTE"
	FuncOrigin  = "ORIGIN"
	FuncReqRR   = "REQRR"
	FuncAckRR   = "ACKRR"
	FuncAckName = "ACKNAME"
	FuncPackout = "PACKOUT"
	FuncTo2     = "TO2"
	FuncFrom2   = "FROM2"
	FuncForward = "FORWARD"
	FuncUFollow = "UFOLLOW"
	FuncUNewsgr = "UNEWSGR"
)

// ExtendedHeader is one 72-byte extended header at the start of a body:
// id(2) function(7) ':'(1) content(60) status(1) separator(1).
type ExtendedHeader struct {
	Function string
	Content  string
	Status   byte
}

func decodeExtended(b []byte) ExtendedHeader {
	return ExtendedHeader{
		Function: text(b[2:9]),
		Content:  text(b[10:70]),
		Status:   b[70],
	}
}

// Message is a header, its extended headers and the decoded text.
type Message struct {
	Header   *MessageHeader
	Extended []ExtendedHeader
	Text     string // UTF-8, lines separated by '\n'
	Offset   int64  // Position of the header in the MSGS file
}

func (m *Message) ext(fn string) (string, bool) {
	for _, e := range m.Extended {
		if e.Function == fn {
			return e.Content, true
		}
	}
	return "", false
}

// From returns the sender, preferring the FROM extended header over the
// 25-character header field.
func (m *Message) From() string {
	if v, ok := m.ext(FuncFrom); ok {
		return v
	}
	return m.Header.From
}

// To returns the recipient, preferring the TO extended header.
func (m *Message) To() string {
	if v, ok := m.ext(FuncTo); ok {
		return v
	}
	return m.Header.To
}

// Subject returns the subject, preferring the SUBJECT extended header.
func (m *Message) Subject() string {
	if v, ok := m.ext(FuncSubject); ok {
		return v
	}
	return m.Header.Subject
}

// readMessage reads the message whose header starts at off.
func readMessage(r io.ReaderAt, off int64) (*Message, error) {
	var hb [HeaderSize]byte
	if _, err := r.ReadAt(hb[:], off); err != nil {
		return nil, fmt.Errorf("pcboard: read header at %d: %w", off, err)
	}
	h, err := decodeHeader(hb[:])
	if err != nil {
		return nil, err
	}
	m := &Message{Header: h, Offset: off}
	if h.Blocks <= 1 {
		return m, nil
	}
	body := make([]byte, (int(h.Blocks)-1)*HeaderSize)
	if _, err := r.ReadAt(body, off+HeaderSize); err != nil {
		return nil, fmt.Errorf("pcboard: read body of message %d: %w: %w", h.Number, qwk.ErrTruncatedRecord, err)
	}
	i := 0
	for i+ExtHeaderSize <= len(body) && body[i] == ExtHeaderID[0] && body[i+1] == ExtHeaderID[1] {
		m.Extended = append(m.Extended, decodeExtended(body[i:i+ExtHeaderSize]))
		i += ExtHeaderSize
	}
	m.Text = qwk.DecodeBody(body[i:])
	return m, nil
}

// ReadMessage reads message num through the .IDX index.
func (b *Base) ReadMessage(num uint32) (*Message, error) {
	if num < b.hdr.Low || num > b.hdr.High {
		return nil, fmt.Errorf("%w: %d not in %d..%d", ErrOutOfRange, num, b.hdr.Low, b.hdr.High)
	}
	idx, err := b.sibling(".idx")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(idx)
	if err != nil {
		return nil, &qwk.IOError{Op: "open", Path: idx, Err: err}
	}
	defer f.Close()
	var rb [IndexRecordSize]byte
	if _, err := f.ReadAt(rb[:], int64(num-b.hdr.Low)*IndexRecordSize); err != nil {
		return nil, fmt.Errorf("pcboard: read index record %d: %w", num, err)
	}
	rec := decodeIndexRecord(rb[:])
	if rec.Offset <= 0 {
		return nil, fmt.Errorf("pcboard: message %d has no header offset", num)
	}

	msgs, err := os.Open(b.path)
	if err != nil {
		return nil, &qwk.IOError{Op: "open", Path: b.path, Err: err}
	}
	defer msgs.Close()
	return readMessage(msgs, int64(rec.Offset))
}

// Messages yields the active messages numbered above after, in index
// order. Index records without a header offset and deleted messages are
// skipped.
func (b *Base) Messages(after uint32) iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		recs, err := b.ReadIndex()
		if err != nil {
			yield(nil, err)
			return
		}
		f, err := os.Open(b.path)
		if err != nil {
			yield(nil, &qwk.IOError{Op: "open", Path: b.path, Err: err})
			return
		}
		defer f.Close()
		for _, rec := range recs {
			if rec.Offset <= 0 || rec.Num <= 0 || uint32(rec.Num) <= after {
				continue
			}
			m, err := readMessage(f, int64(rec.Offset))
			if err != nil {
				yield(nil, err)
				return
			}
			if m.Header.Deleted() {
				continue
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}
