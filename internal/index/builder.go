package index

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/qwk"
)

// Builder scans a packet directory into index entries, resolving each
// message's conference against a control file table.
type Builder struct {
	table              *control.Table
	codec              *qwk.Codec
	sizeIncludesHeader bool
	packetHeader       bool
	ndx                bool
	log                logging.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCodec sets the codec used to decode headers.
func WithCodec(c *qwk.Codec) Option {
	return func(b *Builder) {
		if c != nil {
			b.codec = c
		}
	}
}

// WithSizeIncludesHeader makes SizeMsg count the header block, as packets
// produced by Qmail do. By default SizeMsg counts body blocks only.
func WithSizeIncludesHeader(v bool) Option {
	return func(b *Builder) { b.sizeIncludesHeader = v }
}

// WithPacketHeader controls whether the first block of each source file is
// skipped. In messages.dat it holds the producer's copyright line, in a
// reply file the BBSID. Enabled by default.
func WithPacketHeader(v bool) Option {
	return func(b *Builder) { b.packetHeader = v }
}

// WithNDX makes MkIndex also write the legacy per-conference NDX files.
func WithNDX(v bool) Option {
	return func(b *Builder) { b.ndx = v }
}

// WithLogger sets where skipped records are reported.
func WithLogger(l logging.Logger) Option {
	return func(b *Builder) { b.log = logging.OrStd(l) }
}

// NewBuilder returns a Builder resolving conferences against table. A nil
// table leaves every entry unresolved.
func NewBuilder(table *control.Table, opts ...Option) *Builder {
	b := &Builder{
		table:        table,
		codec:        qwk.DefaultCodec,
		packetHeader: true,
		log:          logging.Std{},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Scan returns a lazy scanner over the message files of srcDir. Nothing is
// read until the first call to Next.
func (b *Builder) Scan(srcDir string) (*Scanner, error) {
	files, err := SourceFiles(srcDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		b.log.Printf("WARN: no message files found in %s", srcDir)
	}
	return &Scanner{b: b, files: files}, nil
}

// Build scans srcDir completely and returns every entry along with the
// records that were skipped.
func (b *Builder) Build(srcDir string) ([]Entry, []qwk.SkippedRecord, error) {
	s, err := b.Scan(srcDir)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	var entries []Entry
	for s.Next() {
		entries = append(entries, s.Entry())
	}
	return entries, s.Skipped(), s.Err()
}

// SourceFiles lists the message-bearing files of dir: messages.dat and any
// reply files, matched case-insensitively and sorted by name.
func SourceFiles(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, &qwk.IOError{Op: "list", Path: dir, Err: err}
	}
	var files []string
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		if isSource(de.Name()) {
			files = append(files, filepath.Join(dir, de.Name()))
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	return files, nil
}

func isSource(name string) bool {
	return strings.EqualFold(name, qwk.MessagesFile) || isReplyFile(name)
}

func isReplyFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), qwk.ReplyExt)
}
