package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/jam"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "none.json")
	// Repeatable flags keep appending to the values of earlier runs.
	exportOpts, tossOpts = doorFlags{}, doorFlags{}
	rootCmd.SetArgs(append([]string{"--config", missing, "--quiet"}, args...))
	return rootCmd.ExecuteContext(context.Background())
}

func writePacketDir(t *testing.T, dir string) {
	t.Helper()
	var ctl bytes.Buffer
	info := control.UserInfo{BoardName: "Starbase", BBSID: "STARBASE", UserName: "JOHN DOE"}
	require.NoError(t, control.Write(&ctl, info, control.NewTable("Main", "Tech")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "control.dat"), ctl.Bytes(), 0o644))

	var dat bytes.Buffer
	dat.Write(bytes.Repeat([]byte{' '}, qwk.BlockSize))
	for i, conf := range []byte{0, 1} {
		body, blocks := qwk.EncodeBody("Testing one two")
		h := &qwk.MessageHeader{
			Status:     qwk.StatusPublicUnread,
			NumMsg:     qwk.NewNumber(uint64(i + 1)),
			ForWho:     qwk.NewText("ALL"),
			Author:     qwk.NewText("SYSOP"),
			Subject:    qwk.NewText("Hello"),
			SizeMsg:    qwk.NewNumber(uint64(blocks + 1)),
			Delete:     qwk.ActiveFlag,
			Conference: conf,
		}
		h.SetTime(time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC))
		hb, err := qwk.DefaultCodec.EncodeReceived(h)
		require.NoError(t, err)
		dat.Write(hb)
		dat.Write(body)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "messages.dat"), dat.Bytes(), 0o644))
}

func TestIndexAndDumpCommands(t *testing.T) {
	dir := t.TempDir()
	writePacketDir(t, dir)

	require.NoError(t, execute(t, "index", dir))
	entries, err := index.ReadFile(filepath.Join(dir, index.IndexFile))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint16(1), entries[1].Conference)

	assert.NoError(t, execute(t, "dump", dir))
	assert.NoError(t, execute(t, "control", filepath.Join(dir, "control.dat")))
}

func TestSubjectColumnFitsTerminal(t *testing.T) {
	assert.Equal(t, 16, subjectWidth(80))
	assert.Equal(t, 12, subjectWidth(40))
	assert.Equal(t, "Hello", truncate("Hello", 16))
	assert.Equal(t, "Re: Long su…", truncate("Re: Long subject line", 12))
}

func TestIndexCommandMissingSource(t *testing.T) {
	assert.Error(t, execute(t, "index", filepath.Join(t.TempDir(), "nope")))
}

func TestReplyAddAndShow(t *testing.T) {
	dir := t.TempDir()
	bodyFile := filepath.Join(dir, "body.txt")
	require.NoError(t, os.WriteFile(bodyFile, []byte("Thanks for the files\n"), 0o644))
	rep := filepath.Join(dir, "STARBASE.REP")

	require.NoError(t, execute(t, "reply", "add", rep,
		"--bbsid", "starbase", "--conf", "3", "--from", "JOHN DOE", "--subject", "Files", "--body", bodyFile))
	require.NoError(t, execute(t, "reply", "add", rep, "--append",
		"--from", "JOHN DOE", "--subject", "Second", "--body", bodyFile))

	files, err := packet.Extract(context.Background(), rep, filepath.Join(dir, "out"), nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "starbase.msg", filepath.Base(files[0]))

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()
	bbsid, replies, err := packet.ReadReplies(f)
	require.NoError(t, err)
	assert.Equal(t, "STARBASE", bbsid)
	require.Len(t, replies, 2)
	assert.Equal(t, uint64(3), replies[0].Header.ConfNum.Value)
	assert.Equal(t, "Thanks for the files", replies[0].Body)
	assert.Equal(t, "Second", replies[1].Header.Subject.Value)

	assert.NoError(t, execute(t, "reply", "show", rep))
}

func TestReplyAddRequiresBBSID(t *testing.T) {
	dir := t.TempDir()
	bodyFile := filepath.Join(dir, "body.txt")
	require.NoError(t, os.WriteFile(bodyFile, []byte("hi"), 0o644))
	err := execute(t, "reply", "add", filepath.Join(dir, "X.REP"),
		"--bbsid", "", "--from", "A", "--subject", "B", "--body", bodyFile)
	assert.Error(t, err)
}

func TestExportAndTossCommands(t *testing.T) {
	dir := t.TempDir()
	stem := filepath.Join(dir, "general")
	base, err := jam.Create(stem, "")
	require.NoError(t, err)
	_, err = base.WriteMessage(&jam.Message{From: "Sysop", To: "All", Subject: "Welcome", Text: "Hello"})
	require.NoError(t, err)
	require.NoError(t, base.Close())

	area := "jam:1:GENERAL:" + stem
	dest := filepath.Join(dir, "out")
	qwkFile := filepath.Join(dir, "STARBASE.QWK")
	require.NoError(t, execute(t, "export", dest, "--area", area,
		"--user", "Jane Doe", "--bbsid", "starbase", "--packet", qwkFile, "--commit"))

	entries, err := index.ReadFile(filepath.Join(dest, index.IndexFile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint16(1), entries[0].Conference)
	files, err := packet.Extract(context.Background(), qwkFile, filepath.Join(dir, "unpacked"), nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	rep := filepath.Join(dir, "STARBASE.REP")
	reply := qwk.NewReply(1, "Sysop", "JANE DOE", "Re: Welcome", time.Now())
	_, err = packet.CreateReplyPacket(rep, "STARBASE", []packet.Reply{{Header: reply, Body: "Thanks"}})
	require.NoError(t, err)
	require.NoError(t, execute(t, "toss", rep, "--area", area))

	base, err = jam.Open(stem)
	require.NoError(t, err)
	defer base.Close()
	n, err := base.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	lr, err := base.LastRead("Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), lr.LastReadMsg)

	assert.NoError(t, execute(t, "base", "stats", "jam", stem))
	assert.NoError(t, execute(t, "base", "list", "jam", stem))
	assert.NoError(t, execute(t, "base", "read", "jam", stem, "2"))
	assert.NoError(t, execute(t, "base", "lastread", stem))
	assert.Error(t, execute(t, "base", "stats", "squish", stem))
}

func TestTossCreatesMissingBase(t *testing.T) {
	dir := t.TempDir()
	rep := filepath.Join(dir, "STARBASE.REP")
	reply := qwk.NewReply(4, "All", "JANE DOE", "First post", time.Now())
	_, err := packet.CreateReplyPacket(rep, "STARBASE", []packet.Reply{{Header: reply, Body: "Hello"}})
	require.NoError(t, err)

	stem := filepath.Join(dir, "new")
	require.NoError(t, execute(t, "toss", rep, "--area", "jam:4:NEW:"+stem))

	base, err := jam.Open(stem)
	require.NoError(t, err)
	defer base.Close()
	m, err := base.ReadMessage(1)
	require.NoError(t, err)
	assert.Equal(t, "First post", m.Subject)
}

func TestExportRequiresUser(t *testing.T) {
	err := execute(t, "export", t.TempDir(), "--user", "", "--area", "jam:1:GENERAL:"+filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}
