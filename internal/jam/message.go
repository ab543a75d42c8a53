package jam

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/stlalpha/qmail/internal/qwk"
)

// indexRecord returns the index record of message num.
func (b *Base) indexRecord(num uint32) (IndexRecord, error) {
	n, err := b.count()
	if err != nil {
		return IndexRecord{}, err
	}
	first := b.hdr.BaseMsgNum
	if num < first || uint64(num) >= uint64(first)+uint64(n) {
		return IndexRecord{}, fmt.Errorf("%w: %d not in %d..%d", ErrOutOfRange, num, first, int64(first)+int64(n)-1)
	}
	var buf [IndexRecordSize]byte
	if _, err := b.jdx.ReadAt(buf[:], int64(num-first)*IndexRecordSize); err != nil {
		return IndexRecord{}, fmt.Errorf("jam: read index record %d: %w", num, err)
	}
	return IndexRecord{
		ToCRC:     binary.LittleEndian.Uint32(buf[0:4]),
		HdrOffset: binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}

// readHeaderOf returns the header of message num. A deleted index record
// yields ErrNotFound.
func (b *Base) readHeaderOf(num uint32) (*MessageHeader, error) {
	rec, err := b.indexRecord(num)
	if err != nil {
		return nil, err
	}
	if rec.Deleted() {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, num)
	}
	r := bufio.NewReader(io.NewSectionReader(b.jhr, int64(rec.HdrOffset), 1<<31-1))
	return readMessageHeader(r)
}

type subfieldHeader struct {
	LoID   uint16
	HiID   uint16
	DatLen uint32
}

func readMessageHeader(r io.Reader) (*MessageHeader, error) {
	h := &MessageHeader{}
	if err := binary.Read(r, binary.LittleEndian, &h.HeaderInfo); err != nil {
		return nil, err
	}
	if string(h.Signature[:]) != Signature {
		return nil, ErrInvalidSignature
	}
	if h.Revision != Revision {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRevision, h.Revision)
	}
	left := h.SubfieldLen
	for left > 0 {
		if left < SubfieldHdrSize {
			return nil, fmt.Errorf("%w: %d bytes left for a subfield header", ErrInvalidSubfield, left)
		}
		var sh subfieldHeader
		if err := binary.Read(r, binary.LittleEndian, &sh); err != nil {
			return nil, fmt.Errorf("jam: read subfield: %w", err)
		}
		left -= SubfieldHdrSize
		if sh.DatLen > left {
			return nil, fmt.Errorf("%w: %d for subfield %d", ErrInvalidSubfield, sh.DatLen, sh.LoID)
		}
		data := make([]byte, sh.DatLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("jam: read subfield %d: %w", sh.LoID, err)
		}
		left -= sh.DatLen
		h.Subfields = append(h.Subfields, Subfield{LoID: sh.LoID, HiID: sh.HiID, Data: data})
	}
	return h, nil
}

// Headers yields every header of the .jhr file in file order, deleted
// messages included.
func (b *Base) Headers() iter.Seq2[*MessageHeader, error] {
	return func(yield func(*MessageHeader, error) bool) {
		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.jhr == nil {
			yield(nil, ErrClosed)
			return
		}
		fi, err := b.jhr.Stat()
		if err != nil {
			yield(nil, fmt.Errorf("jam: stat headers: %w", err))
			return
		}
		r := bufio.NewReader(io.NewSectionReader(b.jhr, HeaderSize, fi.Size()-HeaderSize))
		for {
			if _, err := r.Peek(1); err == io.EOF {
				return
			}
			h, err := readMessageHeader(r)
			if err != nil {
				yield(nil, fmt.Errorf("jam: read headers: %w", err))
				return
			}
			if !yield(h, nil) {
				return
			}
		}
	}
}

// readText returns the text of h with CR line ends turned into '\n'.
func (b *Base) readText(h *MessageHeader) (string, error) {
	if h.TxtLen == 0 {
		return "", nil
	}
	if b.jdt == nil {
		return "", ErrClosed
	}
	buf := make([]byte, h.TxtLen)
	if _, err := b.jdt.ReadAt(buf, int64(h.Offset)); err != nil {
		return "", fmt.Errorf("jam: read text of message %d: %w", h.MessageNumber, err)
	}
	buf = bytes.ReplaceAll(buf, []byte("\r\n"), []byte("\n"))
	buf = bytes.ReplaceAll(buf, []byte("\r"), []byte("\n"))
	return qwk.DecodeCP437(buf), nil
}

// ReadMessage returns message num with its text.
func (b *Base) ReadMessage(num uint32) (*Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, err := b.readHeaderOf(num)
	if err != nil {
		return nil, err
	}
	return b.message(h)
}

func (b *Base) message(h *MessageHeader) (*Message, error) {
	text, err := b.readText(h)
	if err != nil {
		return nil, err
	}
	m := &Message{
		Number:  h.MessageNumber,
		Time:    time.Unix(int64(h.DateWritten), 0).UTC(),
		ReplyTo: h.ReplyTo,
		Private: h.Attribute&MsgPrivate != 0,
		Text:    text,
		Header:  h,
	}
	for _, sf := range h.Subfields {
		v := qwk.DecodeCP437(sf.Data)
		switch sf.LoID {
		case SfldSenderName:
			m.From = v
		case SfldReceiverName:
			m.To = v
		case SfldSubject:
			m.Subject = v
		case SfldMsgID:
			m.MsgID = v
		case SfldReplyID:
			m.ReplyID = v
		case SfldFTSKludge:
			m.Kludges = append(m.Kludges, v)
		}
	}
	return m, nil
}

// Messages yields the messages numbered from first on, skipping deleted
// index records and messages marked deleted.
func (b *Base) Messages(first uint32) iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		b.mu.RLock()
		defer b.mu.RUnlock()
		n, err := b.count()
		if err != nil {
			yield(nil, err)
			return
		}
		first = max(first, b.hdr.BaseMsgNum)
		end := uint64(b.hdr.BaseMsgNum) + uint64(n)
		for num := uint64(first); num < end; num++ {
			h, err := b.readHeaderOf(uint32(num))
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if h.Attribute&MsgDeleted != 0 {
				continue
			}
			m, err := b.message(h)
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}

// Search returns the numbers of the messages whose index record carries
// toCRC, the CRC32String of the recipient.
func (b *Base) Search(toCRC uint32) ([]uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.jdx == nil {
		return nil, ErrClosed
	}
	data, err := os.ReadFile(b.jdx.Name())
	if err != nil {
		return nil, fmt.Errorf("jam: read index: %w", err)
	}
	if len(data)%IndexRecordSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrIndexCorrupted, len(data))
	}
	var nums []uint32
	for i := 0; i < len(data); i += IndexRecordSize {
		if binary.LittleEndian.Uint32(data[i:]) == toCRC {
			nums = append(nums, b.hdr.BaseMsgNum+uint32(i/IndexRecordSize))
		}
	}
	return nums, nil
}

// WriteMessage appends m to the base and returns its number. From, To and
// Subject become subfields; the text is stored with CR line ends.
func (b *Base) WriteMessage(m *Message) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jhr == nil {
		return 0, ErrClosed
	}
	release, err := b.lock()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := b.readHeader(); err != nil {
		return 0, err
	}
	n, err := b.count()
	if err != nil {
		return 0, err
	}

	text := qwk.EncodeCP437(strings.ReplaceAll(strings.ReplaceAll(m.Text, "\r\n", "\n"), "\n", "\r"))
	textPos, err := appendTo(b.jdt, text)
	if err != nil {
		return 0, fmt.Errorf("jam: write text: %w", err)
	}

	h := &MessageHeader{Subfields: subfields(m)}
	copy(h.Signature[:], Signature)
	h.Revision = Revision
	h.ReplyTo = m.ReplyTo
	now := time.Now()
	written := m.Time
	if written.IsZero() {
		written = now
	}
	h.DateWritten = uint32(written.Unix())
	h.DateProcessed = uint32(now.Unix())
	h.MessageNumber = b.hdr.BaseMsgNum + uint32(n)
	h.Attribute = MsgLocal | MsgTypeLocal
	if m.Private {
		h.Attribute |= MsgPrivate
	}
	h.Offset = uint32(textPos)
	h.TxtLen = uint32(len(text))
	h.PasswordCRC = NoCRC
	for _, sf := range h.Subfields {
		h.SubfieldLen += SubfieldHdrSize + uint32(len(sf.Data))
	}
	if m.MsgID != "" {
		h.MSGIDcrc = CRC32String(m.MsgID)
	} else {
		h.MSGIDcrc = NoCRC
	}
	if m.ReplyID != "" {
		h.REPLYcrc = CRC32String(m.ReplyID)
	} else {
		h.REPLYcrc = NoCRC
	}

	var hb bytes.Buffer
	binary.Write(&hb, binary.LittleEndian, &h.HeaderInfo)
	for _, sf := range h.Subfields {
		binary.Write(&hb, binary.LittleEndian, subfieldHeader{sf.LoID, sf.HiID, uint32(len(sf.Data))})
		hb.Write(sf.Data)
	}
	hdrPos, err := appendTo(b.jhr, hb.Bytes())
	if err != nil {
		return 0, fmt.Errorf("jam: write header: %w", err)
	}

	var rec [IndexRecordSize]byte
	binary.LittleEndian.PutUint32(rec[0:4], CRC32String(m.To))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(hdrPos))
	if _, err := b.jdx.WriteAt(rec[:], int64(n)*IndexRecordSize); err != nil {
		return 0, fmt.Errorf("jam: write index: %w", err)
	}

	b.hdr.ActiveMsgs++
	b.hdr.ModCounter++
	if err := b.writeHeader(); err != nil {
		return 0, err
	}
	return h.MessageNumber, nil
}

func subfields(m *Message) []Subfield {
	var out []Subfield
	add := func(id uint16, v string) {
		if v != "" {
			out = append(out, Subfield{LoID: id, Data: qwk.EncodeCP437(v)})
		}
	}
	add(SfldSenderName, m.From)
	add(SfldReceiverName, m.To)
	add(SfldSubject, m.Subject)
	add(SfldMsgID, m.MsgID)
	add(SfldReplyID, m.ReplyID)
	for _, k := range m.Kludges {
		add(SfldFTSKludge, k)
	}
	return out
}

// appendTo writes p at the end of f and returns where it starts.
func appendTo(f *os.File, p []byte) (int64, error) {
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Write(p); err != nil {
		return 0, err
	}
	return pos, nil
}
