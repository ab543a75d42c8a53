package control

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/stlalpha/qmail/internal/qwk"
)

// Write writes info and t as a FormatQWK control file with CRLF line ends.
// The LastConf line is always derived from t.
func Write(w io.Writer, info UserInfo, t *Table) error {
	bw := bufio.NewWriter(w)
	lastConf := t.Len() - 1
	created := ""
	if !info.Created.IsZero() {
		created = info.Created.Format(qwkCreatedLayout)
	}
	serial := info.Serial
	if serial == "" {
		serial = "0"
	}

	lines := []string{
		info.BoardName,
		info.City,
		info.DataPhone,
		info.Sysop,
		serial + "," + info.BBSID,
		created,
		info.UserName,
		info.Menu,
		"0",
		strconv.Itoa(info.MessageCount),
		strconv.Itoa(lastConf),
	}
	for _, c := range t.Conferences() {
		lines = append(lines, strconv.Itoa(c.Number), c.Name)
	}
	lines = append(lines, info.Welcome, info.News, info.Goodbye)

	for _, l := range lines {
		bw.Write(qwk.EncodeCP437(l))
		bw.WriteString("\r\n")
	}
	if err := bw.Flush(); err != nil {
		return &qwk.IOError{Op: "write", Err: fmt.Errorf("control file: %w", err)}
	}
	return nil
}
