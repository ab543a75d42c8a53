// Package control reads the control file of a mail packet: the board and
// user details found at the top of the file and the conference list that
// follows them.
package control

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxConferences is the default conference limit. The received header
	// stores the conference in a single byte.
	MaxConferences = 256
	// NameLength is the default width conference names are truncated to.
	NameLength = 13
)

// UserInfo holds the scalar fields of the control file header. Fields the
// selected layout does not carry are left at their zero value.
type UserInfo struct {
	BoardName    string
	City         string
	HomePhone    string
	DataPhone    string
	Sysop        string
	Serial       string
	BBSID        string
	Created      time.Time
	UserName     string
	FirstName    string
	Menu         string
	Security     int
	MessageCount int
	LastConf     int

	Welcome string
	News    string
	Goodbye string
}

// Conference is one entry of the conference table.
type Conference struct {
	Index  int
	Number int
	Name   string
}

// Table is the ordered conference table of one control file. It is not
// modified after parsing.
type Table struct {
	confs    []Conference
	byNumber map[int]int
}

func newTable(confs []Conference) *Table {
	t := &Table{confs: confs, byNumber: make(map[int]int, len(confs))}
	for i, c := range confs {
		if _, dup := t.byNumber[c.Number]; !dup {
			t.byNumber[c.Number] = i
		}
	}
	return t
}

// NewTable builds a table from names, numbering conferences by position.
func NewTable(names ...string) *Table {
	confs := make([]Conference, len(names))
	for i, n := range names {
		confs[i] = Conference{Index: i, Number: i, Name: n}
	}
	return newTable(confs)
}

// NewTableOf builds a table from conferences that carry their own numbers.
// Index is taken from the position.
func NewTableOf(confs ...Conference) *Table {
	out := make([]Conference, len(confs))
	for i, c := range confs {
		c.Index = i
		out[i] = c
	}
	return newTable(out)
}

// Len returns the number of conferences. A nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.confs)
}

// At returns the conference at index i.
func (t *Table) At(i int) (Conference, bool) {
	if i < 0 || i >= t.Len() {
		return Conference{}, false
	}
	return t.confs[i], true
}

// Name returns the name at index i, or "" when i is out of range.
func (t *Table) Name(i int) string {
	c, _ := t.At(i)
	return c.Name
}

// Lookup resolves a conference number as carried by message headers.
func (t *Table) Lookup(number int) (Conference, bool) {
	if t == nil {
		return Conference{}, false
	}
	i, ok := t.byNumber[number]
	if !ok {
		return Conference{}, false
	}
	return t.confs[i], true
}

// Conferences returns a copy of the table in file order.
func (t *Table) Conferences() []Conference {
	if t == nil {
		return nil
	}
	out := make([]Conference, len(t.confs))
	copy(out, t.confs)
	return out
}

// Names returns the conference names in file order.
func (t *Table) Names() []string {
	names := make([]string, t.Len())
	for i := range names {
		names[i] = t.confs[i].Name
	}
	return names
}

func (c Conference) String() string {
	return fmt.Sprintf("%d %s", c.Number, c.Name)
}

// Session is the state loaded from one control file. It replaces the
// process-wide board variables of the old door code: build one per packet,
// pass it to the index builder, and Reset it before loading the next.
type Session struct {
	Info        UserInfo
	Conferences *Table
	Path        string

	opts []Option
}

// NewSession returns an empty session whose Load parses with opts.
func NewSession(opts ...Option) *Session {
	return &Session{opts: opts}
}

// Load parses path into s, replacing whatever was loaded before. On error
// s is left reset.
func (s *Session) Load(path string) error {
	s.Reset()
	info, table, err := Read(path, s.opts...)
	if err != nil {
		return err
	}
	s.Info = info
	s.Conferences = table
	s.Path = path
	return nil
}

// Reset clears the loaded state.
func (s *Session) Reset() {
	s.Info = UserInfo{}
	s.Conferences = nil
	s.Path = ""
}

// Loaded reports whether a control file has been loaded.
func (s *Session) Loaded() bool { return s != nil && s.Conferences != nil }

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}
