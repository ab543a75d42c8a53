package packet

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Archiver defines how one packet compression format is recognized and
// unpacked. ZIP is handled natively; the others shell out to the classic
// DOS-era tools when they are installed and enabled.
type Archiver struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Extensions []string   `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Magic      string     `json:"magic,omitempty" yaml:"magic,omitempty"` // Hex-encoded leading bytes
	Native     bool       `json:"native" yaml:"native"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
	Unpack     CommandDef `json:"unpack,omitempty" yaml:"unpack,omitempty"`
	Timeout    int        `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// CommandDef is an external command. Args may use {ARCHIVE} and {OUTDIR}.
type CommandDef struct {
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// IsEmpty reports whether no command is set.
func (cd CommandDef) IsEmpty() bool { return cd.Command == "" }

// DefaultArchivers returns the built-in definitions. Only ZIP is enabled.
func DefaultArchivers() []Archiver {
	return []Archiver{
		{
			ID:         "zip",
			Name:       "ZIP Archive",
			Extensions: []string{".qwk", ".rep", ".zip"},
			Magic:      "504B0304",
			Native:     true,
			Enabled:    true,
		},
		{
			ID:         "arj",
			Name:       "ARJ Archive",
			Extensions: []string{".arj"},
			Magic:      "60EA",
			Unpack:     CommandDef{Command: "arj", Args: []string{"e", "-y", "{ARCHIVE}", "{OUTDIR}"}},
		},
		{
			ID:         "lha",
			Name:       "LHA/LZH Archive",
			Extensions: []string{".lha", ".lzh"},
			Unpack:     CommandDef{Command: "lha", Args: []string{"xfw={OUTDIR}", "{ARCHIVE}"}},
		},
	}
}

func (a Archiver) magic() []byte {
	b, err := hex.DecodeString(a.Magic)
	if err != nil {
		return nil
	}
	return b
}

func (a Archiver) matchesExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range a.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Detect picks the enabled archiver for the file at path. Magic bytes win
// over extensions, since a .qwk packet may be in any format. A nil list
// means DefaultArchivers.
func Detect(path string, archivers []Archiver) (Archiver, bool, error) {
	if archivers == nil {
		archivers = DefaultArchivers()
	}
	head, err := readMagic(path, 16)
	if err != nil {
		return Archiver{}, false, fmt.Errorf("packet: %w", err)
	}
	for _, a := range archivers {
		if a.Enabled && hasMagic(head, a.magic()) {
			return a, true, nil
		}
	}
	for _, a := range archivers {
		if a.Enabled && a.Magic == "" && a.matchesExtension(path) {
			return a, true, nil
		}
	}
	return Archiver{}, false, nil
}

func (a Archiver) unpack(ctx context.Context, archive, outDir string) error {
	if a.Unpack.IsEmpty() {
		return fmt.Errorf("packet: archiver %s has no unpack command", a.ID)
	}
	archive, err := filepath.Abs(archive)
	if err != nil {
		return err
	}

	args := make([]string, len(a.Unpack.Args))
	for i, arg := range a.Unpack.Args {
		arg = strings.ReplaceAll(arg, "{ARCHIVE}", archive)
		arg = strings.ReplaceAll(arg, "{OUTDIR}", outDir)
		args[i] = arg
	}

	timeout := 60 * time.Second
	if a.Timeout > 0 {
		timeout = time.Duration(a.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.Unpack.Command, args...)
	cmd.Dir = outDir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("packet: %s timed out after %v", a.Unpack.Command, timeout)
	}
	if err != nil {
		return fmt.Errorf("packet: %s failed: %w (output: %s)", a.Unpack.Command, err, strings.TrimSpace(string(output)))
	}
	return nil
}
