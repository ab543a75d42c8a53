package qwk

import (
	"strings"
	"time"
)

const (
	confNumLen  = 7
	dateTimeLen = 13
	tailLen     = 5
)

// ReplyHeader is the 128-byte header written for each outgoing message.
//
//	Offset Len Field
//	     0   1 Status
//	     1   7 ConfNum     ASCII digits
//	     8  13 DateTime    mm-dd-yyHH:MM
//	    21  25 ForWho
//	    46  25 Author
//	    71  25 Subject
//	    96  12 PassWord
//	   108   8 RefMsg      ASCII digits
//	   116   6 SizeMsg     ASCII digits, 128-byte blocks
//	   122   1 Delete
//	   123   5 Tail        opaque
type ReplyHeader struct {
	Status   byte
	ConfNum  Number
	DateTime Text
	ForWho   Text
	Author   Text
	Subject  Text
	PassWord Text
	RefMsg   Number
	SizeMsg  Number
	Delete   byte
	Tail     [tailLen]byte // Meaning unknown; preserved verbatim
}

// DefaultTail is the byte pattern Qmail writes after the Delete byte.
var DefaultTail = [tailLen]byte{0x00, 0x00, ' ', ' ', 0x00}

// NewReply returns a reply header with the usual Qmail defaults.
func NewReply(conf uint64, to, from, subject string, t time.Time) *ReplyHeader {
	r := &ReplyHeader{
		Status:  StatusPublicUnread,
		ConfNum: NewNumber(conf),
		ForWho:  NewText(to),
		Author:  NewText(from),
		Subject: NewText(subject),
		Delete:  ActiveFlag,
		Tail:    DefaultTail,
	}
	r.SetTime(t)
	return r
}

// NewReplyTo returns a reply addressed to the author of h, in the same
// conference, referencing h's message number.
func NewReplyTo(h *MessageHeader, from string, t time.Time) *ReplyHeader {
	subject := h.Subject.Value
	if !strings.HasPrefix(strings.ToUpper(subject), "RE:") {
		subject = "Re: " + subject
	}
	r := NewReply(uint64(h.Conference), h.Author.Value, from, subject, t)
	r.RefMsg = NewNumber(h.NumMsg.Value)
	if h.IsPrivate() {
		r.Status = StatusPrivateUnread
	}
	return r
}

// DecodeReply decodes a reply header. b must be exactly ReplySize bytes.
func (c *Codec) DecodeReply(b []byte) (*ReplyHeader, error) {
	if len(b) != ReplySize {
		return nil, truncatedError(len(b), ReplySize)
	}
	p := c.reply
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

	r := &ReplyHeader{}
	r.Status = cur.one()
	r.ConfNum = number(FieldConfNum, confNumLen)
	r.DateTime = text(FieldDateTime, dateTimeLen)
	r.ForWho = text(FieldForWho, nameLen)
	r.Author = text(FieldAuthor, nameLen)
	r.Subject = text(FieldSubject, nameLen)
	r.PassWord = text(FieldPassWord, passwordLen)
	r.RefMsg = number(FieldRefMsg, refMsgLen)
	r.SizeMsg = number(FieldSizeMsg, sizeMsgLen)
	r.Delete = cur.one()
	copy(r.Tail[:], cur.next(tailLen))

	if len(derr.Fields) > 0 {
		return r, &derr
	}
	return r, nil
}

// EncodeReply encodes r into a ReplySize-byte record.
func (c *Codec) EncodeReply(r *ReplyHeader) ([]byte, error) {
	p := c.reply
	buf := make([]byte, ReplySize)
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

	cur.next(1)[0] = r.Status
	number(FieldConfNum, confNumLen, r.ConfNum)
	text(FieldDateTime, dateTimeLen, r.DateTime)
	text(FieldForWho, nameLen, r.ForWho)
	text(FieldAuthor, nameLen, r.Author)
	text(FieldSubject, nameLen, r.Subject)
	text(FieldPassWord, passwordLen, r.PassWord)
	number(FieldRefMsg, refMsgLen, r.RefMsg)
	number(FieldSizeMsg, sizeMsgLen, r.SizeMsg)
	cur.next(1)[0] = r.Delete
	copy(cur.next(tailLen), r.Tail[:])

	if len(derr.Fields) > 0 {
		return nil, &derr
	}
	return buf, nil
}

// Time parses the combined DateTime field.
func (r *ReplyHeader) Time() (time.Time, error) {
	return time.Parse(DateTimeLayout, strings.TrimSpace(r.DateTime.Value))
}

// SetTime replaces the DateTime field.
func (r *ReplyHeader) SetTime(t time.Time) {
	r.DateTime = NewText(t.Format(DateTimeLayout))
}
