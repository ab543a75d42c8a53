package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/qwk"
)

func TestMkIndex(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out")
	bad := message(t, 3, 1, 1)
	copy(bad[1:8], "bad    ")
	writeSource(t, src, "messages.dat",
		packetHeader("Produced by Qmail"),
		message(t, 1, 0, 2),
		message(t, 2, 1, 1),
		bad,
		message(t, 4, 1, 1),
	)
	sess := &control.Session{Conferences: control.NewTable("GENERAL", "TECH")}

	res := MkIndex(src, dest, sess, WithNDX(true), WithLogger(logging.NewTestLogger(t, "mkindex")))
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.Written)
	assert.Equal(t, 3, res.NDX)
	assert.Len(t, res.Skipped, 1)
	_, err := uuid.Parse(res.RunID)
	assert.NoError(t, err)
	assert.Contains(t, res.String(), "3 written, 1 skipped")

	entries, err := ReadFile(filepath.Join(dest, IndexFile))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(256), entries[0].Offset)
	assert.Equal(t, uint16(1), entries[2].Conference)

	f, err := os.Open(filepath.Join(dest, "001.ndx"))
	require.NoError(t, err)
	defer f.Close()
	recs, err := ReadNDX(f)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Header positions: 128, 512, 768 (skipped), 1024.
	assert.Equal(t, uint64(512), recs[0].HeaderOffset())
	assert.Equal(t, uint64(1024), recs[1].HeaderOffset())
	assert.FileExists(t, filepath.Join(dest, "000.ndx"))
}

func TestMkIndexEmptyPacket(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeSource(t, src, "messages.dat", packetHeader("Produced by Qmail"))

	res := MkIndex(src, dest, nil, WithLogger(logging.NoLog{}))
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Written)

	fi, err := os.Stat(filepath.Join(dest, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, int64(0), fi.Size())
}

func TestMkIndexUnrecoverable(t *testing.T) {
	src := t.TempDir()
	bad := message(t, 2, 0, 1)
	copy(bad[116:122], "zz    ")
	writeSource(t, src, "messages.dat",
		packetHeader("Produced by Qmail"),
		message(t, 1, 0, 1),
		bad,
		message(t, 3, 0, 1),
	)
	res := MkIndex(src, t.TempDir(), nil, WithLogger(logging.NoLog{}))
	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, qwk.ErrUnrecoverableCorruption))
	assert.Equal(t, 1, res.Written, "entries before the corruption stay on disk")
}

func TestMkIndexMissingSource(t *testing.T) {
	res := MkIndex(filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil, WithLogger(logging.NoLog{}))
	var ioErr *qwk.IOError
	require.True(t, errors.As(res.Err, &ioErr))
	assert.NotEmpty(t, res.RunID)
}
