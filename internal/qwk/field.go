package qwk

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Field identifies a header field. Names follow the legacy structure
// member names so error messages can be matched against format notes.
type Field int

const (
	FieldStatus Field = iota
	FieldNumMsg
	FieldConfNum
	FieldMsgDate
	FieldMsgTime
	FieldDateTime
	FieldForWho
	FieldAuthor
	FieldSubject
	FieldPassWord
	FieldRefMsg
	FieldSizeMsg
	FieldDelete
	FieldConference
	FieldRead
)

var fieldNames = [...]string{
	FieldStatus:     "Status",
	FieldNumMsg:     "NumMsg",
	FieldConfNum:    "ConfNum",
	FieldMsgDate:    "MsgDate",
	FieldMsgTime:    "MsgTime",
	FieldDateTime:   "DateTime",
	FieldForWho:     "ForWho",
	FieldAuthor:     "Author",
	FieldSubject:    "Subject",
	FieldPassWord:   "PassWord",
	FieldRefMsg:     "RefMsg",
	FieldSizeMsg:    "SizeMsg",
	FieldDelete:     "Delete",
	FieldConference: "Conference",
	FieldRead:       "Read",
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "Field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// ParseField maps a legacy field name (case-insensitive) to its Field.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if strings.EqualFold(n, name) {
			return Field(i), true
		}
	}
	return 0, false
}

// Justify selects which side of a fixed-width field a value is aligned to.
// Decoding only accepts pad bytes on the padded side: trailing for
// JustifyLeft, leading for JustifyRight. JustifyEither accepts both and
// encodes like JustifyLeft, for packets whose producer is not known.
type Justify int

const (
	JustifyLeft Justify = iota
	JustifyRight
	JustifyEither
)

func (j Justify) String() string {
	switch j {
	case JustifyLeft:
		return "left"
	case JustifyRight:
		return "right"
	case JustifyEither:
		return "either"
	}
	return fmt.Sprintf("Justify(%d)", int(j))
}

// FieldPolicy is the pad/justify convention used for one field.
// Text fields are always left-justified; only Pad applies to them.
type FieldPolicy struct {
	Justify Justify
	Pad     byte
}

// Number is a fixed-width ASCII-digit field. Raw holds the bytes as read so
// an unchanged value re-encodes byte for byte.
type Number struct {
	Value uint64
	Raw   []byte
}

// NewNumber returns a Number without a raw view; it is encoded using the
// field policy.
func NewNumber(v uint64) Number { return Number{Value: v} }

// Digits returns the raw bytes with pad bytes removed.
func (n Number) Digits() string {
	return string(bytes.Trim(n.Raw, " \x00"))
}

// Text is a fixed-width, pad-filled text field. Value is the display view
// (pad trimmed, CP437 decoded); Raw holds the exact bytes as read.
type Text struct {
	Value string
	Raw   []byte
}

// NewText returns a Text without a raw view.
func NewText(s string) Text { return Text{Value: s} }

func (t Text) String() string { return t.Value }

var (
	cp437Decoder = charmap.CodePage437.NewDecoder()
	cp437Encoder = encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder())
)

// DecodeCP437 converts CP437 bytes to a UTF-8 string.
func DecodeCP437(b []byte) string {
	out, err := cp437Decoder.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// EncodeCP437 converts a UTF-8 string to CP437; unsupported runes become
// the code page's substitute byte.
func EncodeCP437(s string) []byte {
	out, err := cp437Encoder.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

func isBlank(c, pad byte) bool {
	if c == ' ' || c == 0 {
		return true
	}
	return c == pad && (pad < '0' || pad > '9')
}

func decodeNumber(f Field, raw []byte, p FieldPolicy) (Number, *FieldError) {
	n := Number{Raw: bytes.Clone(raw)}
	start, end := 0, len(raw)
	if p.Justify != JustifyLeft {
		for start < end && isBlank(raw[start], p.Pad) {
			start++
		}
	}
	if p.Justify != JustifyRight {
		for end > start && isBlank(raw[end-1], p.Pad) {
			end--
		}
	}
	var v uint64
	for i := start; i < end; i++ {
		c := raw[i]
		if c < '0' || c > '9' {
			return n, &FieldError{
				Field:  f.String(),
				Raw:    n.Raw,
				Reason: fmt.Sprintf("non-digit byte 0x%02x at position %d", c, i),
			}
		}
		v = v*10 + uint64(c-'0')
	}
	n.Value = v
	return n, nil
}

func encodeNumber(dst []byte, f Field, n Number, p FieldPolicy) *FieldError {
	if len(n.Raw) == len(dst) {
		if prev, err := decodeNumber(f, n.Raw, p); err == nil && prev.Value == n.Value {
			copy(dst, n.Raw)
			return nil
		}
	}
	s := strconv.FormatUint(n.Value, 10)
	if len(s) > len(dst) {
		return &FieldError{
			Field:  f.String(),
			Raw:    []byte(s),
			Reason: fmt.Sprintf("value does not fit in %d digits", len(dst)),
		}
	}
	for i := range dst {
		dst[i] = p.Pad
	}
	if p.Justify == JustifyRight {
		copy(dst[len(dst)-len(s):], s)
	} else {
		copy(dst, s)
	}
	return nil
}

// displayBytes cuts raw at the first NUL and trims trailing pad bytes.
func displayBytes(raw []byte, pad byte) []byte {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	end := len(raw)
	for end > 0 && (raw[end-1] == ' ' || raw[end-1] == pad) {
		end--
	}
	return raw[:end]
}

func decodeText(raw []byte, p FieldPolicy) Text {
	return Text{
		Value: DecodeCP437(displayBytes(raw, p.Pad)),
		Raw:   bytes.Clone(raw),
	}
}

func encodeText(dst []byte, t Text, p FieldPolicy) {
	if len(t.Raw) == len(dst) && DecodeCP437(displayBytes(t.Raw, p.Pad)) == t.Value {
		copy(dst, t.Raw)
		return
	}
	for i := range dst {
		dst[i] = p.Pad
	}
	copy(dst, EncodeCP437(t.Value))
}

// cursor walks a fixed-layout record.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) next(n int) []byte {
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) one() byte {
	b := c.buf[c.pos]
	c.pos++
	return b
}
