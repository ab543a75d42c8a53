package packet

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/qwk"
)

// Message is a decoded message. Exactly one of Header and Reply is set,
// depending on the file the message came from.
type Message struct {
	Header *qwk.MessageHeader
	Reply  *qwk.ReplyHeader
	Body   string
}

// ReadMessage loads the message e points at from dir, the directory that
// was indexed.
func ReadMessage(dir string, e index.Entry, codec *qwk.Codec) (*Message, error) {
	if codec == nil {
		codec = qwk.DefaultCodec
	}
	path := filepath.Join(dir, e.Source)
	f, err := os.Open(path)
	if err != nil {
		return nil, &qwk.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	buf := make([]byte, qwk.HeaderSize+int(e.Size))
	n, err := f.ReadAt(buf, int64(e.Header))
	if n < len(buf) {
		if err == nil || err == io.EOF {
			return nil, fmt.Errorf("%s at %d: %w", e.Source, e.Header, qwk.ErrTruncatedRecord)
		}
		return nil, &qwk.IOError{Op: "read", Path: path, Err: err}
	}

	m := &Message{Body: qwk.DecodeBody(buf[qwk.HeaderSize:])}
	if e.Reply {
		m.Reply, err = codec.DecodeReply(buf[:qwk.HeaderSize])
	} else {
		m.Header, err = codec.DecodeReceived(buf[:qwk.HeaderSize])
	}
	return m, err
}
