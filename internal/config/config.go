package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
)

// DefaultFile is looked up when Load is given a directory.
const DefaultFile = "qmail.json"

// Config holds everything qmail reads from its configuration file.
type Config struct {
	Paths     PathsConfig      `json:"paths" yaml:"paths"`
	Control   ControlConfig    `json:"control" yaml:"control"`
	Index     IndexConfig      `json:"index" yaml:"index"`
	Codec     CodecConfig      `json:"codec" yaml:"codec"`
	Reply     ReplyConfig      `json:"reply" yaml:"reply"`
	Inbound   InboundConfig    `json:"inbound" yaml:"inbound"`
	Door      DoorConfig       `json:"door" yaml:"door"`
	Archivers []packet.Archiver `json:"archivers,omitempty" yaml:"archivers,omitempty"`
}

// PathsConfig lists the directories used by the inbound processor.
type PathsConfig struct {
	Inbound string `json:"inbound" yaml:"inbound"` // packets waiting to be indexed
	Work    string `json:"work" yaml:"work"`       // extraction area
	Index   string `json:"index" yaml:"index"`     // one subdirectory per packet
	Catalog string `json:"catalog" yaml:"catalog"` // bbolt run history
}

// ControlConfig selects how CONTROL.DAT is read.
type ControlConfig struct {
	Format         string   `json:"format" yaml:"format"`
	Header         []string `json:"header,omitempty" yaml:"header,omitempty"`
	MaxConferences int      `json:"maxConferences" yaml:"maxConferences"`
	NameLength     int      `json:"nameLength" yaml:"nameLength"`
}

// IndexConfig maps onto the index builder options.
type IndexConfig struct {
	SizeIncludesHeader bool `json:"sizeIncludesHeader" yaml:"sizeIncludesHeader"`
	PacketHeader       bool `json:"packetHeader" yaml:"packetHeader"`
	NDX                bool `json:"ndx" yaml:"ndx"`
}

// PolicyConfig is the textual form of a qwk.FieldPolicy.
// Justify is "left", "right" or "either"; Pad is "space", "zero", "nul" or a single
// character.
type PolicyConfig struct {
	Justify string `json:"justify" yaml:"justify"`
	Pad     string `json:"pad" yaml:"pad"`
}

// CodecConfig overrides field policies per form, keyed by field name.
type CodecConfig struct {
	Received map[string]PolicyConfig `json:"received,omitempty" yaml:"received,omitempty"`
	Reply    map[string]PolicyConfig `json:"reply,omitempty" yaml:"reply,omitempty"`
}

// ReplyConfig controls reply packet creation.
type ReplyConfig struct {
	BBSID              string `json:"bbsid" yaml:"bbsid"`
	SizeIncludesHeader bool   `json:"sizeIncludesHeader" yaml:"sizeIncludesHeader"`
}

// InboundConfig drives the watch command.
type InboundConfig struct {
	Schedule       string `json:"schedule" yaml:"schedule"` // cron spec with seconds, empty disables
	Watch          bool   `json:"watch" yaml:"watch"`
	DebounceMillis int    `json:"debounceMillis" yaml:"debounceMillis"`
}

// Message base types a door area can name.
const (
	AreaJAM     = "jam"
	AreaPCBoard = "pcboard"
)

// DoorConfig describes the local message bases the export and toss
// commands work on.
type DoorConfig struct {
	BoardName   string       `json:"boardName" yaml:"boardName"`
	Sysop       string       `json:"sysop" yaml:"sysop"`
	User        string       `json:"user" yaml:"user"`
	MaxMessages int          `json:"maxMessages" yaml:"maxMessages"` // per area, 0 for no cap
	Areas       []AreaConfig `json:"areas,omitempty" yaml:"areas,omitempty"`
}

// AreaConfig binds a conference number to a message base.
type AreaConfig struct {
	Type   string `json:"type" yaml:"type"` // AreaJAM or AreaPCBoard
	Number int    `json:"number" yaml:"number"`
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"` // JAM path stem or PCBoard MSGS file
}

// ParseArea parses the command line form type:number:name:path.
func ParseArea(s string) (AreaConfig, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return AreaConfig{}, fmt.Errorf("area %q: want type:number:name:path", s)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return AreaConfig{}, fmt.Errorf("area %q: bad number: %w", s, err)
	}
	a := AreaConfig{Type: strings.ToLower(parts[0]), Number: n, Name: parts[2], Path: parts[3]}
	return a, a.validate()
}

func (a AreaConfig) validate() error {
	switch a.Type {
	case AreaJAM, AreaPCBoard:
	default:
		return fmt.Errorf("area %d: unknown type %q", a.Number, a.Type)
	}
	if a.Number < 0 || a.Number > 255 {
		return fmt.Errorf("area %d: number must be 0-255", a.Number)
	}
	if a.Path == "" {
		return fmt.Errorf("area %d: missing path", a.Number)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: PathsConfig{
			Inbound: "data/inbound",
			Work:    "data/work",
			Index:   "data/index",
			Catalog: "data/catalog.db",
		},
		Control: ControlConfig{
			Format:         control.FormatQWK.String(),
			MaxConferences: control.MaxConferences,
			NameLength:     control.NameLength,
		},
		Index: IndexConfig{
			SizeIncludesHeader: true, // Qmail counts the header block in SizeMsg
			PacketHeader:       true,
		},
		Reply: ReplyConfig{
			SizeIncludesHeader: true,
		},
		Inbound: InboundConfig{
			Schedule:       "0 */5 * * * *",
			Watch:          true,
			DebounceMillis: 500,
		},
		Archivers: packet.DefaultArchivers(),
	}
}

// Load reads the configuration at path. A directory is joined with
// DefaultFile. Files ending in .yaml or .yml are read as YAML, anything else
// as JSON. Values missing from the file keep their defaults; a missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.Archivers = nil
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, DefaultFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("WARN: config file %s not found, using defaults", path)
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.Archivers) == 0 {
		cfg.Archivers = packet.DefaultArchivers()
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("invalid config %s: %w", path, err)
	}

	log.Printf("INFO: loaded config from %s", path)
	return cfg, nil
}

// Save writes cfg as indented JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks every value that is turned into library options.
func (c Config) Validate() error {
	if _, err := c.ControlOptions(); err != nil {
		return err
	}
	if _, err := c.NewCodec(); err != nil {
		return err
	}
	if c.Inbound.DebounceMillis < 0 {
		return fmt.Errorf("inbound.debounceMillis must not be negative")
	}
	if c.Door.MaxMessages < 0 {
		return fmt.Errorf("door.maxMessages must not be negative")
	}
	seen := make(map[int]bool, len(c.Door.Areas))
	for _, a := range c.Door.Areas {
		if err := a.validate(); err != nil {
			return fmt.Errorf("door: %w", err)
		}
		if seen[a.Number] {
			return fmt.Errorf("door: area %d listed twice", a.Number)
		}
		seen[a.Number] = true
	}
	return nil
}

// Debounce returns the watcher settle time.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.Inbound.DebounceMillis) * time.Millisecond
}

// ControlOptions converts the control section.
func (c Config) ControlOptions() ([]control.Option, error) {
	var opts []control.Option
	if c.Control.Format != "" {
		f, err := control.ParseFormat(c.Control.Format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, control.WithFormat(f))
	}
	if len(c.Control.Header) > 0 {
		fields := make([]control.HeaderField, 0, len(c.Control.Header))
		for _, s := range c.Control.Header {
			h, err := control.ParseHeaderField(s)
			if err != nil {
				return nil, err
			}
			fields = append(fields, h)
		}
		opts = append(opts, control.WithHeader(fields...))
	}
	if c.Control.MaxConferences < 0 || c.Control.NameLength < 0 {
		return nil, fmt.Errorf("control limits must not be negative")
	}
	if c.Control.MaxConferences > 0 {
		opts = append(opts, control.WithMaxConferences(c.Control.MaxConferences))
	}
	if c.Control.NameLength > 0 {
		opts = append(opts, control.WithNameLength(c.Control.NameLength))
	}
	return opts, nil
}

// NewCodec builds a qwk.Codec from the codec section.
func (c Config) NewCodec() (*qwk.Codec, error) {
	var opts []qwk.Option
	for _, set := range []struct {
		form qwk.Form
		m    map[string]PolicyConfig
	}{
		{qwk.FormReceived, c.Codec.Received},
		{qwk.FormReply, c.Codec.Reply},
	} {
		for name, pc := range set.m {
			f, ok := qwk.ParseField(name)
			if !ok {
				return nil, fmt.Errorf("%w: unknown field %q", qwk.ErrInvalidPolicy, name)
			}
			p, err := pc.Policy()
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", set.form, name, err)
			}
			opts = append(opts, qwk.WithPolicy(set.form, f, p))
		}
	}
	return qwk.NewCodec(opts...)
}

// Policy converts the textual policy.
func (p PolicyConfig) Policy() (qwk.FieldPolicy, error) {
	var fp qwk.FieldPolicy
	switch strings.ToLower(p.Justify) {
	case "", "left":
		fp.Justify = qwk.JustifyLeft
	case "right":
		fp.Justify = qwk.JustifyRight
	case "either":
		fp.Justify = qwk.JustifyEither
	default:
		return fp, fmt.Errorf("%w: justify %q", qwk.ErrInvalidPolicy, p.Justify)
	}
	switch strings.ToLower(p.Pad) {
	case "", "space":
		fp.Pad = ' '
	case "zero":
		fp.Pad = '0'
	case "nul":
		fp.Pad = 0
	default:
		if len(p.Pad) != 1 {
			return fp, fmt.Errorf("%w: pad %q", qwk.ErrInvalidPolicy, p.Pad)
		}
		fp.Pad = p.Pad[0]
	}
	return fp, nil
}

// IndexOptions converts the index section, using codec for header decoding.
func (c Config) IndexOptions(codec *qwk.Codec) []index.Option {
	return []index.Option{
		index.WithCodec(codec),
		index.WithSizeIncludesHeader(c.Index.SizeIncludesHeader),
		index.WithPacketHeader(c.Index.PacketHeader),
		index.WithNDX(c.Index.NDX),
	}
}

// ReplyOptions converts the reply section.
func (c Config) ReplyOptions(codec *qwk.Codec) []packet.Option {
	return []packet.Option{
		packet.WithCodec(codec),
		packet.WithSizeIncludesHeader(c.Reply.SizeIncludesHeader),
	}
}
