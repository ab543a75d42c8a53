package control

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/qmail/internal/qwk"
)

// Format selects the control file layout.
type Format int

const (
	// FormatQWK is the standard control.dat: eleven header lines, then a
	// number line and a name line per conference, then the welcome, news
	// and goodbye file names.
	FormatQWK Format = iota
	// FormatLines is a configurable list of header lines followed by one
	// conference name per line.
	FormatLines
)

func (f Format) String() string {
	switch f {
	case FormatQWK:
		return "qwk"
	case FormatLines:
		return "lines"
	}
	return "Format(" + strconv.Itoa(int(f)) + ")"
}

// ParseFormat maps "qwk" or "lines" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "qwk":
		return FormatQWK, nil
	case "lines":
		return FormatLines, nil
	}
	return 0, fmt.Errorf("control: unknown format %q", s)
}

// HeaderField names the UserInfo field a FormatLines header line fills.
type HeaderField int

const (
	HeaderSkip HeaderField = iota // Line is read and ignored
	HeaderBoardName
	HeaderCity
	HeaderHomePhone
	HeaderDataPhone
	HeaderSysop
	HeaderBBSID
	HeaderUserName
	HeaderFirstName
	HeaderSecurity
	HeaderLastConf
)

var headerNames = map[HeaderField]string{
	HeaderSkip:      "skip",
	HeaderBoardName: "boardname",
	HeaderCity:      "city",
	HeaderHomePhone: "homephone",
	HeaderDataPhone: "dataphone",
	HeaderSysop:     "sysop",
	HeaderBBSID:     "bbsid",
	HeaderUserName:  "username",
	HeaderFirstName: "firstname",
	HeaderSecurity:  "security",
	HeaderLastConf:  "lastconf",
}

func (h HeaderField) String() string {
	if n, ok := headerNames[h]; ok {
		return n
	}
	return "HeaderField(" + strconv.Itoa(int(h)) + ")"
}

// ParseHeaderField maps a name such as "UserName" to its HeaderField.
func ParseHeaderField(s string) (HeaderField, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for h, n := range headerNames {
		if n == s {
			return h, nil
		}
	}
	return 0, fmt.Errorf("control: unknown header field %q", s)
}

// DefaultHeader is the FormatLines header layout used by Qmail doors.
var DefaultHeader = []HeaderField{
	HeaderBoardName,
	HeaderUserName,
	HeaderCity,
	HeaderHomePhone,
	HeaderDataPhone,
	HeaderSecurity,
	HeaderLastConf,
}

const qwkHeaderLines = 11

// qwkCreatedLayout is the date line of a QWK control file.
const qwkCreatedLayout = "01-02-2006,15:04:05"

type parser struct {
	format   Format
	header   []HeaderField
	maxConfs int
	nameLen  int
}

// Option configures Read and Parse.
type Option func(*parser)

// WithFormat selects the file layout. The default is FormatQWK.
func WithFormat(f Format) Option {
	return func(p *parser) { p.format = f }
}

// WithHeader sets the FormatLines header layout and selects FormatLines.
func WithHeader(fields ...HeaderField) Option {
	return func(p *parser) {
		p.format = FormatLines
		p.header = append([]HeaderField(nil), fields...)
	}
}

// WithMaxConferences overrides MaxConferences.
func WithMaxConferences(n int) Option {
	return func(p *parser) {
		if n > 0 {
			p.maxConfs = n
		}
	}
}

// WithNameLength overrides NameLength.
func WithNameLength(n int) Option {
	return func(p *parser) {
		if n > 0 {
			p.nameLen = n
		}
	}
}

func newParser(opts []Option) *parser {
	p := &parser{
		format:   FormatQWK,
		header:   DefaultHeader,
		maxConfs: MaxConferences,
		nameLen:  NameLength,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Read parses the control file at path.
func Read(path string, opts ...Option) (UserInfo, *Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return UserInfo{}, nil, &qwk.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	info, table, err := Parse(f, opts...)
	var ioErr *qwk.IOError
	if errors.As(err, &ioErr) && ioErr.Path == "" {
		ioErr.Path = path
	}
	return info, table, err
}

// Parse parses a control file from r. Text is decoded from CP437.
func Parse(r io.Reader, opts ...Option) (UserInfo, *Table, error) {
	p := newParser(opts)
	lines, err := readLines(r)
	if err != nil {
		return UserInfo{}, nil, err
	}
	var info UserInfo
	var table *Table
	switch p.format {
	case FormatLines:
		info, table, err = p.parseLines(lines)
	default:
		info, table, err = p.parseQWK(lines)
	}
	if err != nil {
		return UserInfo{}, nil, err
	}
	if info.FirstName == "" {
		info.FirstName = firstWord(info.UserName)
	}
	return info, table, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		b := sc.Bytes()
		for len(b) > 0 && (b[len(b)-1] == '\r' || b[len(b)-1] == 0x1A) {
			b = b[:len(b)-1]
		}
		lines = append(lines, strings.TrimRight(qwk.DecodeCP437(b), " \t"))
	}
	if err := sc.Err(); err != nil {
		return nil, &qwk.IOError{Op: "read", Err: err}
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func (p *parser) parseLines(lines []string) (UserInfo, *Table, error) {
	var info UserInfo
	if len(lines) < len(p.header) {
		return info, nil, fmt.Errorf("%w: %d header lines, want %d",
			qwk.ErrControlFileTooShort, len(lines), len(p.header))
	}
	hasLastConf := false
	for i, h := range p.header {
		if err := setField(&info, h, lines[i]); err != nil {
			return UserInfo{}, nil, err
		}
		hasLastConf = hasLastConf || h == HeaderLastConf
	}

	rest := lines[len(p.header):]
	if len(rest) > p.maxConfs {
		return UserInfo{}, nil, fmt.Errorf("%w: %d conferences, limit %d",
			qwk.ErrTooManyConferences, len(rest), p.maxConfs)
	}
	confs := make([]Conference, len(rest))
	for i, line := range rest {
		name, err := p.name(i, line)
		if err != nil {
			return UserInfo{}, nil, err
		}
		confs[i] = Conference{Index: i, Number: i, Name: name}
	}
	if hasLastConf && info.LastConf > len(confs) {
		return UserInfo{}, nil, fmt.Errorf("%w: last conference %d but only %d listed",
			qwk.ErrControlFileTooShort, info.LastConf, len(confs))
	}
	return info, newTable(confs), nil
}

func (p *parser) parseQWK(lines []string) (UserInfo, *Table, error) {
	var info UserInfo
	if len(lines) < qwkHeaderLines {
		return info, nil, fmt.Errorf("%w: %d header lines, want %d",
			qwk.ErrControlFileTooShort, len(lines), qwkHeaderLines)
	}
	info.BoardName = strings.TrimSpace(lines[0])
	info.City = strings.TrimSpace(lines[1])
	info.DataPhone = strings.TrimSpace(lines[2])
	info.Sysop = strings.TrimSpace(lines[3])
	serial, bbsid, _ := strings.Cut(lines[4], ",")
	info.Serial = strings.TrimSpace(serial)
	info.BBSID = strings.ToUpper(strings.TrimSpace(bbsid))
	if t, err := time.Parse(qwkCreatedLayout, strings.TrimSpace(lines[5])); err == nil {
		info.Created = t
	}
	info.UserName = strings.TrimSpace(lines[6])
	info.Menu = strings.TrimSpace(lines[7])

	var err error
	if info.MessageCount, err = atoi("MessageCount", lines[9]); err != nil {
		return UserInfo{}, nil, err
	}
	if info.LastConf, err = atoi("LastConf", lines[10]); err != nil {
		return UserInfo{}, nil, err
	}
	count := info.LastConf + 1
	if count < 0 {
		return UserInfo{}, nil, &qwk.FieldError{Field: "LastConf", Raw: []byte(lines[10]), Reason: "negative"}
	}
	if count > p.maxConfs {
		return UserInfo{}, nil, fmt.Errorf("%w: %d conferences, limit %d",
			qwk.ErrTooManyConferences, count, p.maxConfs)
	}

	rest := lines[qwkHeaderLines:]
	if len(rest) < 2*count {
		return UserInfo{}, nil, fmt.Errorf("%w: %d conferences declared, %d listed",
			qwk.ErrControlFileTooShort, count, len(rest)/2)
	}
	confs := make([]Conference, count)
	for i := range confs {
		num, err := atoi(fmt.Sprintf("conference %d number", i), rest[2*i])
		if err != nil {
			return UserInfo{}, nil, err
		}
		name, err := p.name(i, rest[2*i+1])
		if err != nil {
			return UserInfo{}, nil, err
		}
		confs[i] = Conference{Index: i, Number: num, Name: name}
	}

	tail := rest[2*count:]
	for i, dst := range []*string{&info.Welcome, &info.News, &info.Goodbye} {
		if i < len(tail) {
			*dst = strings.TrimSpace(tail[i])
		}
	}
	return info, newTable(confs), nil
}

func (p *parser) name(i int, line string) (string, error) {
	name := strings.TrimSpace(line)
	if name == "" {
		return "", &qwk.FieldError{Field: fmt.Sprintf("conference %d name", i), Raw: []byte(line), Reason: "empty"}
	}
	if r := []rune(name); len(r) > p.nameLen {
		name = strings.TrimRight(string(r[:p.nameLen]), " ")
	}
	return name, nil
}

func setField(info *UserInfo, h HeaderField, line string) error {
	v := strings.TrimSpace(line)
	var err error
	switch h {
	case HeaderBoardName:
		info.BoardName = v
	case HeaderCity:
		info.City = v
	case HeaderHomePhone:
		info.HomePhone = v
	case HeaderDataPhone:
		info.DataPhone = v
	case HeaderSysop:
		info.Sysop = v
	case HeaderBBSID:
		info.BBSID = strings.ToUpper(v)
	case HeaderUserName:
		info.UserName = v
	case HeaderFirstName:
		info.FirstName = v
	case HeaderSecurity:
		info.Security, err = atoi("Security", line)
	case HeaderLastConf:
		info.LastConf, err = atoi("LastConf", line)
		if err == nil && info.LastConf < 0 {
			err = &qwk.FieldError{Field: "LastConf", Raw: []byte(line), Reason: "negative"}
		}
	}
	return err
}

func atoi(field, line string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, &qwk.FieldError{Field: field, Raw: []byte(line), Reason: "not a number"}
	}
	return n, nil
}
