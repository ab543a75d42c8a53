package jam

import "time"

// BaseHeader is the fixed header at the start of the .jhr file.
type BaseHeader struct {
	Signature   [4]byte
	DateCreated uint32
	ModCounter  uint32 // Bumped on every change to the base
	ActiveMsgs  uint32
	PasswordCRC uint32 // NoCRC when the base has no password
	BaseMsgNum  uint32 // Number of the first index record
	Reserved    [1000]byte
}

// HeaderInfo is the fixed part of a message header.
type HeaderInfo struct {
	Signature     [4]byte
	Revision      uint16
	ReservedWord  uint16
	SubfieldLen   uint32
	TimesRead     uint32
	MSGIDcrc      uint32
	REPLYcrc      uint32
	ReplyTo       uint32
	Reply1st      uint32
	ReplyNext     uint32
	DateWritten   uint32
	DateReceived  uint32
	DateProcessed uint32
	MessageNumber uint32
	Attribute     uint32
	Attribute2    uint32
	Offset        uint32 // Text position in .jdt
	TxtLen        uint32
	PasswordCRC   uint32
	Cost          uint32
}

// MessageHeader is one header record of the .jhr file.
type MessageHeader struct {
	HeaderInfo
	Subfields []Subfield
}

// Subfield is a variable-length field following the fixed header.
type Subfield struct {
	LoID uint16
	HiID uint16
	Data []byte
}

// Get returns the data of the first subfield with id lo.
func (h *MessageHeader) Get(lo uint16) (string, bool) {
	for _, sf := range h.Subfields {
		if sf.LoID == lo {
			return string(sf.Data), true
		}
	}
	return "", false
}

// IndexRecord is one .jdx entry.
type IndexRecord struct {
	ToCRC     uint32
	HdrOffset uint32
}

// Deleted reports whether the record no longer points at a header.
func (r IndexRecord) Deleted() bool {
	return r.ToCRC == NoCRC && r.HdrOffset == NoCRC
}

// LastRead is one user's .jlr record.
type LastRead struct {
	UserCRC     uint32
	UserID      uint32
	LastReadMsg uint32
	HighReadMsg uint32
}

// Message is a header with its subfields resolved and its text decoded.
type Message struct {
	Number  uint32
	From    string
	To      string
	Subject string
	Time    time.Time
	ReplyTo uint32 // Number of the message this one answers
	MsgID   string
	ReplyID string
	Kludges []string
	Private bool
	Text    string // UTF-8, lines separated by '\n'

	Header *MessageHeader
}

// Deleted reports whether the message carries the deleted attribute.
func (m *Message) Deleted() bool {
	return m.Header != nil && m.Header.Attribute&MsgDeleted != 0
}
