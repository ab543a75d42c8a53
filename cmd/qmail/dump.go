package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
	"github.com/stlalpha/qmail/internal/term"
)

type dumpFlags struct {
	indexFile string
	body      bool
	conf      int
}

var dumpOpts dumpFlags

var dumpCmd = &cobra.Command{
	Use:   "dump <dir>",
	Short: "List the messages of an indexed directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var ndxCmd = &cobra.Command{
	Use:   "ndx <file.ndx>",
	Short: "Display the records of a legacy NDX file",
	Args:  cobra.ExactArgs(1),
	RunE:  runNDX,
}

func init() {
	flag := dumpCmd.Flags()
	flag.StringVar(&dumpOpts.indexFile, "index", "", "index file (default <dir>/messages.idx)")
	flag.BoolVarP(&dumpOpts.body, "body", "b", false, "print message bodies")
	flag.IntVar(&dumpOpts.conf, "conf", -1, "only show this conference number")
	rootCmd.AddCommand(dumpCmd, ndxCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	dir := args[0]
	idx := dumpOpts.indexFile
	if idx == "" {
		idx = filepath.Join(dir, index.IndexFile)
	}
	entries, err := index.ReadFile(idx)
	if err != nil {
		return err
	}

	var table *control.Table
	if sess, err := loadSession(dir); err == nil {
		table = sess.Conferences
	} else {
		term.Debugf("conference names unavailable: %s", err)
	}

	c := codec()
	width := subjectWidth(term.Width())
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		if dumpOpts.conf >= 0 && int(e.Conference) != dumpOpts.conf {
			continue
		}
		m, err := packet.ReadMessage(dir, e, c)
		if err != nil {
			term.Warnf("message %d (%s): %s", i+1, e, err)
			if m == nil {
				continue
			}
		}
		row := messageRow(i+1, e, m, table)
		if dumpOpts.body {
			pterm.DefaultSection.Println(fmt.Sprintf("#%d %s", i+1, row[3]))
			fmt.Println(m.Body)
		}
		row[3] = truncate(row[3], width)
		rows = append(rows, row)
	}
	if dumpOpts.body {
		return nil
	}
	if len(rows) == 0 {
		term.Warn("No messages")
		return nil
	}
	return term.Table([]string{"#", "Conference", "From", "Subject", "To", "Date", "Blocks"}, rows)
}

func messageRow(n int, e index.Entry, m *packet.Message, table *control.Table) []string {
	conf := strconv.Itoa(int(e.Conference))
	if c, ok := table.Lookup(int(e.Conference)); ok {
		conf += " " + c.Name
	}
	var from, subject, to, date string
	switch {
	case m.Header != nil:
		from, subject, to = m.Header.Author.Value, m.Header.Subject.Value, m.Header.ForWho.Value
		if t, err := m.Header.Time(); err == nil {
			date = t.Format(dateFormat)
		}
	case m.Reply != nil:
		from, subject, to = m.Reply.Author.Value, m.Reply.Subject.Value, m.Reply.ForWho.Value
		if t, err := m.Reply.Time(); err == nil {
			date = t.Format(dateFormat)
		}
	}
	blocks := strconv.FormatUint(uint64(e.Size)/qwk.BlockSize, 10)
	return []string{strconv.Itoa(n), conf, from, subject, to, date, blocks}
}

// subjectWidth is the room left for the subject column on a terminal cols
// wide.
func subjectWidth(cols int) int {
	const others = 64
	return max(cols-others, 12)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func runNDX(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := index.ReadNDX(f)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(r.Block), 10),
			strconv.FormatUint(r.HeaderOffset(), 10),
			strconv.Itoa(int(r.Conference)),
		})
	}
	if len(rows) == 0 {
		term.Warn("No records")
		return nil
	}
	return term.Table([]string{"Block", "Offset", "Conference"}, rows)
}
