// Package qwk implements the fixed-width record layouts of Qmail/QWK offline
// mail packets: the 128-byte received message header found in messages.dat,
// the 128-byte reply header written to BBSID.MSG, and the message body text
// that follows each header in 128-byte blocks.
package qwk

// Block and record sizes.
const (
	BlockSize  = 128 // Unit used by the SizeMsg field
	HeaderSize = 128 // Received header (MsgHeaderType)
	ReplySize  = 128 // Reply header (QmailRepType)
)

// Well-known file names inside a QWK packet. DOS is not case-sensitive, so
// callers compare them with strings.EqualFold.
const (
	MessagesFile = "messages.dat" // Messages prepared by the mail door
	ControlFile  = "control.dat"  // Board, user and conference list
	NewFilesFile = "newfiles.dat" // New files list
	WelcomeFile  = "welcome"      // First screen of the board
	WelcomeGFile = "welcomeg"     // First screen, ANSI mode
	NewsFile     = "news"         // News, ASCII mode
	NewsGFile    = "newsg"        // News, ANSI mode
	ReplyExt     = ".msg"         // Extension of the reply file
)

// Status byte values of a received header.
const (
	StatusPublicUnread  = ' '
	StatusPublicRead    = '-'
	StatusPrivateUnread = '+'
	StatusPrivateRead   = '*'
	StatusCommentUnread = '~'
	StatusCommentRead   = '`'
)

// Active flag values of the Delete byte.
const (
	ActiveFlag  = 0xE1
	DeletedFlag = 0xE2
)
