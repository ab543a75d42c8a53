// Package jam reads and appends to JAM message bases, the source a mail
// door exports packets from and tosses replies into.
//
// A base is four files sharing one path stem: .jhr (headers), .jdt (text),
// .jdx (index) and .jlr (lastread pointers).
package jam

import "errors"

// File layout sizes.
const (
	Signature       = "JAM\x00"
	HeaderSize      = 1024 // Fixed base header at the start of .jhr
	MsgHeaderSize   = 76   // Fixed part of a message header
	SubfieldHdrSize = 8    // LoID(2) + HiID(2) + DatLen(4)
	IndexRecordSize = 8    // ToCRC(4) + HdrOffset(4)
	LastReadSize    = 16   // UserCRC(4) + UserID(4) + LastReadMsg(4) + HighReadMsg(4)

	// Revision is the only message header revision defined.
	Revision = 1

	// NoCRC is the CRC of an empty string. As password CRC it means the
	// base has no password.
	NoCRC = 0xFFFFFFFF
)

// File extensions of the four base files.
const (
	extHeader   = ".jhr"
	extText     = ".jdt"
	extIndex    = ".jdx"
	extLastRead = ".jlr"
)

// Message attribute flags.
const (
	MsgLocal     = 0x00000001
	MsgInTransit = 0x00000002
	MsgPrivate   = 0x00000004
	MsgRead      = 0x00000008
	MsgSent      = 0x00000010
	MsgTypeLocal = 0x00800000
	MsgTypeEcho  = 0x01000000
	MsgTypeNet   = 0x02000000
	MsgNoDisp    = 0x20000000
	MsgLocked    = 0x40000000
	MsgDeleted   = 0x80000000
)

// Subfield identifiers.
const (
	SfldOAddress     = 0
	SfldDAddress     = 1
	SfldSenderName   = 2
	SfldReceiverName = 3
	SfldMsgID        = 4
	SfldReplyID      = 5
	SfldSubject      = 6
	SfldPID          = 7
	SfldFTSKludge    = 2000
)

var (
	ErrInvalidSignature    = errors.New("jam: invalid signature")
	ErrUnsupportedRevision = errors.New("jam: unsupported message header revision")
	ErrInvalidSubfield     = errors.New("jam: invalid subfield length")
	ErrIndexCorrupted      = errors.New("jam: index file corrupted")
	ErrOutOfRange          = errors.New("jam: message number out of range")
	ErrNotFound            = errors.New("jam: not found")
	ErrClosed              = errors.New("jam: message base closed")
)
