// Package door builds QWK packets from local message bases and tosses
// the replies that come back into them.
package door

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/qwk"
)

// ErrConference is returned for an area number a received header cannot
// carry.
var ErrConference = errors.New("door: conference number out of range")

// Message is one message read from a base, ready to be written to a
// packet.
type Message struct {
	Number  uint32
	From    string
	To      string
	Subject string
	Time    time.Time
	Ref     uint32
	Private bool
	Text    string
}

// Source is a message base one area is exported from.
type Source interface {
	// Messages yields the messages user has not yet downloaded.
	Messages(user string) iter.Seq2[Message, error]
	// Commit records last as the highest message user has downloaded.
	Commit(user string, last uint32) error
	// String names the base in log lines.
	String() string
}

// Area binds a conference of the packet to its source base.
type Area struct {
	Number int
	Name   string
	Source Source
}

type options struct {
	codec     *qwk.Codec
	log       logging.Logger
	indexOpts []index.Option
	max       int
	commit    bool
}

// Option configures Export and Toss.
type Option func(*options)

// WithCodec sets the codec headers are encoded and decoded with.
func WithCodec(c *qwk.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets where progress and unrouted replies are reported.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = logging.OrStd(l) }
}

// WithIndexOptions adds options for the index run that follows an export.
func WithIndexOptions(opts ...index.Option) Option {
	return func(o *options) { o.indexOpts = append(o.indexOpts, opts...) }
}

// WithMaxMessages caps the messages exported per area. Zero means no cap.
func WithMaxMessages(n int) Option {
	return func(o *options) { o.max = n }
}

// WithCommit makes Export advance each source's lastread pointer once the
// packet is complete.
func WithCommit(v bool) Option {
	return func(o *options) { o.commit = v }
}

func newOptions(opts []Option) *options {
	o := &options{codec: qwk.DefaultCodec, log: logging.Std{}}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

func checkConference(n int) error {
	if n < 0 || n > 255 {
		return fmt.Errorf("%w: %d", ErrConference, n)
	}
	return nil
}

func isPrivate(status byte) bool {
	return status == qwk.StatusPrivateUnread || status == qwk.StatusPrivateRead
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
