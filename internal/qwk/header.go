package qwk

import (
	"strings"
	"time"
)

// Received header field widths.
const (
	numMsgLen   = 7
	msgDateLen  = 8
	msgTimeLen  = 5
	nameLen     = 25
	passwordLen = 12
	refMsgLen   = 8
	sizeMsgLen  = 6
	reservedLen = 3
)

// Date and time layouts used by the header text fields.
const (
	DateLayout     = "01-02-06"
	TimeLayout     = "15:04"
	DateTimeLayout = DateLayout + TimeLayout
)

// MessageHeader is the 128-byte header preceding each message in
// messages.dat.
//
//	Offset Len Field
//	     0   1 Status
//	     1   7 NumMsg      ASCII digits
//	     8   8 MsgDate     mm-dd-yy
//	    16   5 MsgTime     HH:MM
//	    21  25 ForWho
//	    46  25 Author
//	    71  25 Subject
//	    96  12 PassWord
//	   108   8 RefMsg      ASCII digits
//	   116   6 SizeMsg     ASCII digits, 128-byte blocks
//	   122   1 Delete
//	   123   1 Conference
//	   124   1 Read
//	   125   3 Reserved    opaque
type MessageHeader struct {
	Status     byte
	NumMsg     Number
	MsgDate    Text
	MsgTime    Text
	ForWho     Text
	Author     Text
	Subject    Text
	PassWord   Text
	RefMsg     Number
	SizeMsg    Number
	Delete     byte
	Conference byte
	Read       byte
	Reserved   [reservedLen]byte // Meaning unknown; preserved verbatim
}

// DecodeReceived decodes a received header. b must be exactly HeaderSize
// bytes. When only some fields are malformed the header is still returned,
// together with a *DecodeError naming them.
func (c *Codec) DecodeReceived(b []byte) (*MessageHeader, error) {
	if len(b) != HeaderSize {
		return nil, truncatedError(len(b), HeaderSize)
	}
	p := c.received
	cur := &cursor{buf: b}
	var derr DecodeError
	number := func(f Field, n int) Number {
		v, fe := decodeNumber(f, cur.next(n), p[f])
		if fe != nil {
			derr.Fields = append(derr.Fields, fe)
		}
		return v
	}
	text := func(f Field, n int) Text {
		return decodeText(cur.next(n), p[f])
	}

	h := &MessageHeader{}
	h.Status = cur.one()
	h.NumMsg = number(FieldNumMsg, numMsgLen)
	h.MsgDate = text(FieldMsgDate, msgDateLen)
	h.MsgTime = text(FieldMsgTime, msgTimeLen)
	h.ForWho = text(FieldForWho, nameLen)
	h.Author = text(FieldAuthor, nameLen)
	h.Subject = text(FieldSubject, nameLen)
	h.PassWord = text(FieldPassWord, passwordLen)
	h.RefMsg = number(FieldRefMsg, refMsgLen)
	h.SizeMsg = number(FieldSizeMsg, sizeMsgLen)
	h.Delete = cur.one()
	h.Conference = cur.one()
	h.Read = cur.one()
	copy(h.Reserved[:], cur.next(reservedLen))

	if len(derr.Fields) > 0 {
		return h, &derr
	}
	return h, nil
}

// EncodeReceived encodes h into a HeaderSize-byte record.
func (c *Codec) EncodeReceived(h *MessageHeader) ([]byte, error) {
	p := c.received
	buf := make([]byte, HeaderSize)
	cur := &cursor{buf: buf}
	var derr DecodeError
	number := func(f Field, n int, v Number) {
		if fe := encodeNumber(cur.next(n), f, v, p[f]); fe != nil {
			derr.Fields = append(derr.Fields, fe)
		}
	}
	text := func(f Field, n int, t Text) {
		encodeText(cur.next(n), t, p[f])
	}

	cur.next(1)[0] = h.Status
	number(FieldNumMsg, numMsgLen, h.NumMsg)
	text(FieldMsgDate, msgDateLen, h.MsgDate)
	text(FieldMsgTime, msgTimeLen, h.MsgTime)
	text(FieldForWho, nameLen, h.ForWho)
	text(FieldAuthor, nameLen, h.Author)
	text(FieldSubject, nameLen, h.Subject)
	text(FieldPassWord, passwordLen, h.PassWord)
	number(FieldRefMsg, refMsgLen, h.RefMsg)
	number(FieldSizeMsg, sizeMsgLen, h.SizeMsg)
	cur.next(1)[0] = h.Delete
	cur.next(1)[0] = h.Conference
	cur.next(1)[0] = h.Read
	copy(cur.next(reservedLen), h.Reserved[:])

	if len(derr.Fields) > 0 {
		return nil, &derr
	}
	return buf, nil
}

// Time parses MsgDate and MsgTime.
func (h *MessageHeader) Time() (time.Time, error) {
	return time.Parse(DateLayout+" "+TimeLayout,
		strings.TrimSpace(h.MsgDate.Value)+" "+strings.TrimSpace(h.MsgTime.Value))
}

// SetTime replaces MsgDate and MsgTime.
func (h *MessageHeader) SetTime(t time.Time) {
	h.MsgDate = NewText(t.Format(DateLayout))
	h.MsgTime = NewText(t.Format(TimeLayout))
}

// Blocks returns the SizeMsg value.
func (h *MessageHeader) Blocks() uint64 { return h.SizeMsg.Value }

// BodyLen returns the message body length in bytes. When includesHeader is
// true SizeMsg counts the header block itself, as Qmail-produced packets do.
func (h *MessageHeader) BodyLen(includesHeader bool) uint64 {
	return BodyLen(h.SizeMsg.Value, includesHeader)
}

// BodyLen converts a block count to a body length in bytes.
func BodyLen(blocks uint64, includesHeader bool) uint64 {
	if includesHeader {
		if blocks == 0 {
			return 0
		}
		blocks--
	}
	return blocks * BlockSize
}

// IsPrivate reports whether the status byte marks a private message.
func (h *MessageHeader) IsPrivate() bool {
	return h.Status == StatusPrivateUnread || h.Status == StatusPrivateRead
}

// IsDeleted reports whether the active flag marks the message as killed.
func (h *MessageHeader) IsDeleted() bool {
	return h.Delete == DeletedFlag
}
