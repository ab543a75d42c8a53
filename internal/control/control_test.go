package control

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stlalpha/qmail/internal/qwk"
)

const sampleQWK = "Vision BBS\r\n" +
	"Lyon, France\r\n" +
	"+33-555-0100\r\n" +
	"Jean Sysop\r\n" +
	"00000,VISION\r\n" +
	"03-05-1994,21:07:33\r\n" +
	"JOHN DOE\r\n" +
	"\r\n" +
	"0\r\n" +
	"42\r\n" +
	"2\r\n" +
	"0\r\nMain Board\r\n" +
	"1\r\nTECHNICAL TALK\r\n" +
	"7\r\nChat\r\n" +
	"WELCOME\r\nNEWS\r\nGOODBYE\r\n" +
	"\x1a"

func TestParseQWK(t *testing.T) {
	info, table, err := Parse(strings.NewReader(sampleQWK))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.BoardName != "Vision BBS" || info.City != "Lyon, France" || info.Sysop != "Jean Sysop" {
		t.Errorf("board fields: %+v", info)
	}
	if info.BBSID != "VISION" || info.Serial != "00000" {
		t.Errorf("BBSID/serial: got %q/%q", info.BBSID, info.Serial)
	}
	if want := time.Date(1994, 3, 5, 21, 7, 33, 0, time.UTC); !info.Created.Equal(want) {
		t.Errorf("Created: got %v, want %v", info.Created, want)
	}
	if info.UserName != "JOHN DOE" || info.FirstName != "JOHN" {
		t.Errorf("user: got %q/%q", info.UserName, info.FirstName)
	}
	if info.MessageCount != 42 || info.LastConf != 2 {
		t.Errorf("counts: got %d/%d", info.MessageCount, info.LastConf)
	}
	if info.Welcome != "WELCOME" || info.News != "NEWS" || info.Goodbye != "GOODBYE" {
		t.Errorf("files: got %q/%q/%q", info.Welcome, info.News, info.Goodbye)
	}

	if table.Len() != 3 {
		t.Fatalf("table length: got %d, want 3", table.Len())
	}
	if got := table.Name(1); got != "TECHNICAL TAL" {
		t.Errorf("name truncated to %d: got %q", NameLength, got)
	}
	c, ok := table.Lookup(7)
	if !ok || c.Index != 2 || c.Name != "Chat" {
		t.Errorf("Lookup(7): got %+v, %v", c, ok)
	}
	if _, ok := table.Lookup(3); ok {
		t.Errorf("Lookup(3) should fail")
	}
}

func TestParseLinesScenario(t *testing.T) {
	in := "Vision BBS\nJOHN DOE\n3\nGENERAL\nTECH\nCHAT\n"
	info, table, err := Parse(strings.NewReader(in),
		WithHeader(HeaderBoardName, HeaderUserName, HeaderLastConf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("table length: got %d, want 3", table.Len())
	}
	if got := table.Name(1); got != "TECH" {
		t.Errorf("table[1]: got %q, want TECH", got)
	}
	for i := 0; i < info.LastConf; i++ {
		if table.Name(i) == "" {
			t.Errorf("table[%d] empty", i)
		}
	}
}

func TestParseLinesDefaultHeader(t *testing.T) {
	in := strings.Join([]string{
		"Vision BBS", "Jane Q Public", "Lyon", "555-0101", "555-0102", "20", "1",
		"GENERAL", "TECH",
	}, "\r\n")
	info, table, err := Parse(strings.NewReader(in), WithFormat(FormatLines))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.Security != 20 || info.LastConf != 1 || info.HomePhone != "555-0101" || info.DataPhone != "555-0102" {
		t.Errorf("scalars: %+v", info)
	}
	if info.FirstName != "Jane" {
		t.Errorf("FirstName: got %q", info.FirstName)
	}
	if table.Len() != 2 {
		t.Errorf("table length: got %d", table.Len())
	}
}

func TestParseErrors(t *testing.T) {
	lines3 := WithHeader(HeaderBoardName, HeaderUserName, HeaderLastConf)
	tests := []struct {
		name string
		in   string
		opts []Option
		want error
	}{
		{"short lines header", "Board\nUser\n", []Option{lines3}, qwk.ErrControlFileTooShort},
		{"short qwk header", "Board\nCity\nPhone\n", nil, qwk.ErrControlFileTooShort},
		{"qwk missing conferences", strings.Join(qwkHeader("5"), "\n") + "\n0\nMain\n", nil, qwk.ErrControlFileTooShort},
		{"lastconf past table", "Board\nUser\n4\nA\nB\n", []Option{lines3}, qwk.ErrControlFileTooShort},
		{"too many lines conferences", "Board\nUser\n0\nA\nB\nC\n", []Option{lines3, WithMaxConferences(2)}, qwk.ErrTooManyConferences},
		{"too many qwk conferences", strings.Join(qwkHeader("300"), "\n"), nil, qwk.ErrTooManyConferences},
		{"bad security", "Board\nUser\nabc\n", []Option{WithHeader(HeaderBoardName, HeaderUserName, HeaderSecurity)}, qwk.ErrMalformedField},
		{"empty conference name", "Board\nUser\n0\nA\n\nC\n", []Option{lines3}, qwk.ErrMalformedField},
		{"bad conference number", strings.Join(qwkHeader("0"), "\n") + "\nx\nMain\n", nil, qwk.ErrMalformedField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, table, err := Parse(strings.NewReader(tt.in), tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if table != nil {
				t.Errorf("table should be nil on error")
			}
		})
	}
}

func qwkHeader(lastConf string) []string {
	return []string{"Board", "City", "Phone", "Sysop", "0,BBS", "", "USER", "", "0", "0", lastConf}
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.dat")
	_, _, err := Read(path)
	var ioErr *qwk.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *qwk.IOError, got %v", err)
	}
	if ioErr.Path != path {
		t.Errorf("path: got %q, want %q", ioErr.Path, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist")
	}
}

func TestSessionLoadReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "control.dat")
	if err := os.WriteFile(path, []byte(sampleQWK), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewSession()
	if s.Loaded() {
		t.Fatal("new session reports loaded")
	}
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Loaded() || s.Info.BBSID != "VISION" || s.Conferences.Len() != 3 {
		t.Errorf("after Load: %+v", s)
	}

	if err := s.Load(filepath.Join(dir, "missing.dat")); err == nil {
		t.Fatal("expected error loading missing file")
	}
	if s.Loaded() || s.Info.BBSID != "" {
		t.Errorf("failed Load should leave the session reset: %+v", s.Info)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	info, table, err := Parse(strings.NewReader(sampleQWK))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, info, table); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info2, table2, err := Parse(&buf)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if info2 != info {
		t.Errorf("info changed:\n got %+v\nwant %+v", info2, info)
	}
	if strings.Join(table2.Names(), ",") != strings.Join(table.Names(), ",") {
		t.Errorf("names changed: %v vs %v", table2.Names(), table.Names())
	}
	if c, _ := table2.Lookup(7); c.Name != "Chat" {
		t.Errorf("conference numbers not preserved")
	}
}

func TestNewTableOf(t *testing.T) {
	table := NewTableOf(Conference{Number: 10, Name: "Tech"}, Conference{Number: 3, Name: "Chat"})
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	c, ok := table.Lookup(3)
	if !ok || c.Index != 1 || c.Name != "Chat" {
		t.Errorf("Lookup(3) = %+v, %v", c, ok)
	}
	if _, ok := table.Lookup(1); ok {
		t.Error("Lookup(1) should fail: numbers are not positions")
	}
}

func TestParseCP437(t *testing.T) {
	in := "Caf\x82 BBS\nREN\x90\n0\nG\x82n\x82ral\n"
	info, table, err := Parse(strings.NewReader(in),
		WithHeader(HeaderBoardName, HeaderUserName, HeaderLastConf))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.BoardName != "Café BBS" || info.UserName != "RENÉ" {
		t.Errorf("decoded: %q/%q", info.BoardName, info.UserName)
	}
	if table.Name(0) != "Général" {
		t.Errorf("conference: %q", table.Name(0))
	}
}

func TestParseHeaderField(t *testing.T) {
	h, err := ParseHeaderField("UserName")
	if err != nil || h != HeaderUserName {
		t.Errorf("got %v, %v", h, err)
	}
	if _, err := ParseHeaderField("shoe size"); err == nil {
		t.Error("expected error for unknown field")
	}
}
