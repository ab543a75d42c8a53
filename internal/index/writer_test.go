package index

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/qmail/internal/qwk"
)

var errDiskFull = errors.New("disk full")

// limitWriter accepts limit bytes, then fails.
type limitWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	room := w.limit - w.buf.Len()
	if len(p) <= room {
		return w.buf.Write(p)
	}
	w.buf.Write(p[:room])
	return room, errDiskFull
}

func sampleEntries(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			Offset:     uint64(i)*384 + 128,
			Size:       256,
			Conference: uint16(i % 300),
		}
	}
	return entries
}

func TestWriteIndexZeroEntries(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteIndex(&buf, slices.Values([]Entry(nil)))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, buf.Len())
}

func TestWriteIndexLayout(t *testing.T) {
	var buf bytes.Buffer
	e := Entry{Offset: 0x0102030405060708, Size: 0x0A0B0C0D, Conference: 0x0E0F}
	n, err := WriteIndex(&buf, slices.Values([]Entry{e}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
		0x0D, 0x0C, 0x0B, 0x0A,
		0x0F, 0x0E,
	}, buf.Bytes())
}

func TestWriteReadRoundTrip(t *testing.T) {
	entries := sampleEntries(1000)
	var buf bytes.Buffer
	n, err := WriteIndex(&buf, slices.Values(entries))
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
	assert.Equal(t, 1000*EntrySize, buf.Len())

	count, err := Count(int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, 1000, count)

	got, err := ReadIndex(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	e, err := ReadAt(bytes.NewReader(buf.Bytes()), 999)
	require.NoError(t, err)
	assert.Equal(t, entries[999], e)

	_, err = ReadAt(bytes.NewReader(buf.Bytes()), 1000)
	assert.True(t, errors.Is(err, qwk.ErrTruncatedRecord))
}

func TestWriteIndexPartialFailure(t *testing.T) {
	w := &limitWriter{limit: 100*EntrySize + 5}
	n, err := WriteIndex(w, slices.Values(sampleEntries(600)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDiskFull))

	var ioErr *qwk.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, 100, ioErr.Written)
	assert.Equal(t, 100, n)
}

func TestWriterStaysFailed(t *testing.T) {
	w := NewWriter(&limitWriter{limit: 0})
	require.NoError(t, w.Write(Entry{Offset: 128}))
	err := w.Flush()
	require.Error(t, err)
	assert.Equal(t, err, w.Write(Entry{Offset: 256}))
	assert.Equal(t, 0, w.Flushed())
	assert.Equal(t, 1, w.Count())
}

func TestReadIndexTruncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteIndex(&buf, slices.Values(sampleEntries(3)))
	require.NoError(t, err)
	buf.Write([]byte{1, 2, 3})

	got, err := ReadIndex(&buf)
	assert.True(t, errors.Is(err, qwk.ErrTruncatedRecord))
	assert.Len(t, got, 3)

	n, err := Count(3*EntrySize + 3)
	assert.Error(t, err)
	assert.Equal(t, 3, n)
}

func TestReadFileTruncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteIndex(&buf, slices.Values(sampleEntries(5)))
	require.NoError(t, err)
	buf.Write([]byte{9, 9})
	path := filepath.Join(t.TempDir(), IndexFile)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := ReadFile(path)
	assert.True(t, errors.Is(err, qwk.ErrTruncatedRecord))
	assert.Equal(t, sampleEntries(5), got)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.idx"))
	var ioErr *qwk.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestNDXRoundTrip(t *testing.T) {
	entries := []Entry{
		{Header: 128, Conference: 0},
		{Header: 128 * 5, Conference: 3},
		{Header: 128 * 9, Conference: 3, Reply: true},
		{Header: 128 * 40, Conference: 255},
	}
	var buf bytes.Buffer
	n, err := WriteNDX(&buf, slices.Values(entries))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3*NDXRecordSize, buf.Len())
	assert.Equal(t, []byte{0, 0, 0, 0x82, 0}, buf.Bytes()[:NDXRecordSize])

	recs, err := ReadNDX(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, NDXRecord{Block: 2, Conference: 0}, recs[0])
	assert.Equal(t, NDXRecord{Block: 6, Conference: 3}, recs[1])
	assert.Equal(t, uint64(128*5), recs[1].HeaderOffset())
	assert.Equal(t, byte(255), recs[2].Conference)
	assert.Equal(t, uint64(128*40), recs[2].HeaderOffset())

	assert.Equal(t, "007.ndx", NDXName(7))
}
