package index

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stlalpha/qmail/internal/qwk"
)

var testTime = time.Date(2026, time.January, 2, 3, 4, 0, 0, time.UTC)

func receivedHeader(t *testing.T, num uint64, conf byte, blocks uint64) []byte {
	t.Helper()
	h := &qwk.MessageHeader{
		Status:     qwk.StatusPublicUnread,
		NumMsg:     qwk.NewNumber(num),
		ForWho:     qwk.NewText("ALL"),
		Author:     qwk.NewText("SYSOP"),
		Subject:    qwk.NewText("Test message"),
		SizeMsg:    qwk.NewNumber(blocks),
		Delete:     qwk.ActiveFlag,
		Conference: conf,
	}
	h.SetTime(testTime)
	b, err := qwk.DefaultCodec.EncodeReceived(h)
	require.NoError(t, err)
	return b
}

func replyHeader(t *testing.T, conf uint64, blocks uint64) []byte {
	t.Helper()
	r := qwk.NewReply(conf, "SYSOP", "JOHN DOE", "Reply", testTime)
	r.SizeMsg = qwk.NewNumber(blocks)
	b, err := qwk.DefaultCodec.EncodeReply(r)
	require.NoError(t, err)
	return b
}

func body(blocks int) []byte {
	b := bytes.Repeat([]byte{' '}, blocks*qwk.BlockSize)
	if blocks > 0 {
		copy(b, "Hello there\xe3")
	}
	return b
}

func message(t *testing.T, num uint64, conf byte, blocks int) []byte {
	return append(receivedHeader(t, num, conf, uint64(blocks)), body(blocks)...)
}

func packetHeader(text string) []byte {
	b := bytes.Repeat([]byte{' '}, qwk.BlockSize)
	copy(b, text)
	return b
}

func writeSource(t *testing.T, dir, name string, chunks ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, bytes.Join(chunks, nil), 0o644))
	return path
}
