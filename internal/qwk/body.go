package qwk

import (
	"bytes"
	"strings"
)

// LineEnd terminates each line of QWK message text (CP437 pi).
const LineEnd = 0xE3

// DecodeBody converts message body blocks to text. Line terminators become
// '\n', NULs are dropped and the trailing block padding is trimmed.
func DecodeBody(b []byte) string {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch c {
		case 0:
			continue
		case LineEnd, '\r':
			out = append(out, '\n')
			if c == '\r' && i+1 < len(b) && b[i+1] == '\n' {
				i++
			}
		default:
			out = append(out, c)
		}
	}
	out = bytes.TrimRight(out, " ")
	return strings.TrimSuffix(DecodeCP437(out), "\n")
}

// EncodeBody converts text to body blocks: lines are terminated with
// LineEnd and the result is space-padded to a whole number of blocks.
// It returns the padded bytes and the number of blocks they occupy.
func EncodeBody(text string) ([]byte, int) {
	if text == "" {
		return nil, 0
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	var buf bytes.Buffer
	for _, line := range strings.Split(text, "\n") {
		buf.Write(EncodeCP437(line))
		buf.WriteByte(LineEnd)
	}
	blocks := (buf.Len() + BlockSize - 1) / BlockSize
	if pad := blocks*BlockSize - buf.Len(); pad > 0 {
		buf.Write(bytes.Repeat([]byte{' '}, pad))
	}
	return buf.Bytes(), blocks
}
