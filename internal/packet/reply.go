package packet

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/stlalpha/qmail/internal/qwk"
)

// Reply is one outgoing message.
type Reply struct {
	Header *qwk.ReplyHeader
	Body   string
}

type options struct {
	codec              *qwk.Codec
	sizeIncludesHeader bool
}

// Option configures reply reading and writing.
type Option func(*options)

// WithCodec sets the codec used for reply headers.
func WithCodec(c *qwk.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithSizeIncludesHeader selects whether SizeMsg counts the header block.
// Offline readers expect it to, so it defaults to true here.
func WithSizeIncludesHeader(v bool) Option {
	return func(o *options) { o.sizeIncludesHeader = v }
}

func newOptions(opts []Option) *options {
	o := &options{codec: qwk.DefaultCodec, sizeIncludesHeader: true}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// ReplyFileName returns the name of the reply file inside a .rep packet.
func ReplyFileName(bbsid string) string {
	return strings.ToUpper(strings.TrimSpace(bbsid)) + strings.ToUpper(qwk.ReplyExt)
}

// WriteReplies writes a reply file: a block holding the BBSID, then each
// reply's header and body. SizeMsg is set from the encoded body; the
// caller's headers are not modified.
func WriteReplies(w io.Writer, bbsid string, replies []Reply, opts ...Option) (int, error) {
	o := newOptions(opts)
	bw := bufio.NewWriter(w)

	first := bytes.Repeat([]byte{' '}, qwk.BlockSize)
	copy(first, strings.ToUpper(strings.TrimSpace(bbsid)))
	bw.Write(first)

	for i, r := range replies {
		if r.Header == nil {
			return i, fmt.Errorf("packet: reply %d has no header", i)
		}
		body, blocks := qwk.EncodeBody(r.Body)
		h := *r.Header
		size := uint64(blocks)
		if o.sizeIncludesHeader {
			size++
		}
		h.SizeMsg = qwk.NewNumber(size)
		hdr, err := o.codec.EncodeReply(&h)
		if err != nil {
			return i, fmt.Errorf("packet: reply %d: %w", i, err)
		}
		bw.Write(hdr)
		bw.Write(body)
	}
	if err := bw.Flush(); err != nil {
		return 0, &qwk.IOError{Op: "write replies", Err: err}
	}
	return len(replies), nil
}

// ReadReplies reads a reply file written by WriteReplies or an offline
// reader, returning the BBSID from its first block.
func ReadReplies(r io.Reader, opts ...Option) (string, []Reply, error) {
	o := newOptions(opts)
	br := bufio.NewReader(r)

	first := make([]byte, qwk.BlockSize)
	if _, err := io.ReadFull(br, first); err != nil {
		return "", nil, fmt.Errorf("packet: reply file: %w", qwk.ErrTruncatedRecord)
	}
	bbsid := strings.TrimSpace(string(bytes.TrimRight(first, "\x00")))

	var replies []Reply
	hdr := make([]byte, qwk.ReplySize)
	for {
		_, err := io.ReadFull(br, hdr)
		if err == io.EOF {
			return bbsid, replies, nil
		}
		if err != nil {
			return bbsid, replies, fmt.Errorf("packet: reply %d: %w", len(replies), qwk.ErrTruncatedRecord)
		}
		h, err := o.codec.DecodeReply(hdr)
		if err != nil {
			return bbsid, replies, fmt.Errorf("packet: reply %d: %w", len(replies), err)
		}
		body := make([]byte, qwk.BodyLen(h.SizeMsg.Value, o.sizeIncludesHeader))
		if _, err := io.ReadFull(br, body); err != nil {
			return bbsid, replies, fmt.Errorf("packet: reply %d body: %w", len(replies), qwk.ErrTruncatedRecord)
		}
		replies = append(replies, Reply{Header: h, Body: qwk.DecodeBody(body)})
	}
}

// CreateReplyPacket writes replies into a ZIP reply packet at path holding
// BBSID.MSG. A partial packet is never left at path.
func CreateReplyPacket(path, bbsid string, replies []Reply, opts ...Option) (int, error) {
	if strings.TrimSpace(bbsid) == "" {
		return 0, fmt.Errorf("packet: empty BBSID")
	}
	var n int
	err := createZip(path, func(zw *zip.Writer) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: ReplyFileName(bbsid), Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("add %s to packet: %w", ReplyFileName(bbsid), err)
		}
		n, err = WriteReplies(w, bbsid, replies, opts...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
