package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
	"github.com/stlalpha/qmail/internal/term"
)

type indexFlags struct {
	ndx                bool
	sizeIncludesHeader bool
	packetHeader       bool
}

var indexOpts indexFlags

var indexCmd = &cobra.Command{
	Use:   "index <packet or directory> [dest]",
	Short: "Build messages.idx for an extracted packet or a .qwk file",
	Long: "\nBuild messages.idx for an extracted packet or a .qwk file.\n" +
		"The index is written to dest, or next to the messages when dest is omitted.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runIndex,
}

func init() {
	flag := indexCmd.Flags()
	flag.BoolVar(&indexOpts.ndx, "ndx", false, "also write the per-conference NDX files")
	flag.BoolVar(&indexOpts.sizeIncludesHeader, "size-includes-header", true, "SizeMsg counts the header block")
	flag.BoolVar(&indexOpts.packetHeader, "packet-header", true, "skip the first block of each source file")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	src := args[0]
	dest := src
	if len(args) > 1 {
		dest = args[1]
	}

	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		tmp, err := os.MkdirTemp("", "qmail-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		if _, err := packet.Extract(cmd.Context(), src, tmp, cfg.Archivers); err != nil {
			return err
		}
		if len(args) == 1 {
			dest = filepath.Dir(src)
		}
		src = tmp
	}

	sess, err := loadSession(src)
	if err != nil {
		term.Warnf("control file: %s", err)
	}

	opts := cfg.IndexOptions(codec())
	flags := cmd.Flags()
	if flags.Changed("ndx") {
		opts = append(opts, index.WithNDX(indexOpts.ndx))
	}
	if flags.Changed("size-includes-header") {
		opts = append(opts, index.WithSizeIncludesHeader(indexOpts.sizeIncludesHeader))
	}
	if flags.Changed("packet-header") {
		opts = append(opts, index.WithPacketHeader(indexOpts.packetHeader))
	}
	if !logging.DebugEnabled {
		opts = append(opts, index.WithLogger(logging.NoLog{}))
	}

	res := index.MkIndex(src, dest, sess, opts...)
	for _, s := range res.Skipped {
		term.Warnf("skipped: %s", s)
	}
	if !res.OK() {
		if errors.Is(res.Err, qwk.ErrUnrecoverableCorruption) {
			return fmt.Errorf("packet is corrupt, no index written: %w", res.Err)
		}
		return res.Err
	}
	term.Infof("%s: %d messages indexed, %d skipped", res.Index, res.Written, len(res.Skipped))
	if res.NDX > 0 {
		term.Infof("%d NDX records written", res.NDX)
	}
	return nil
}

// loadSession reads control.dat from dir. A nil session is returned when the
// file is missing or unreadable.
func loadSession(dir string) (*control.Session, error) {
	opts, err := cfg.ControlOptions()
	if err != nil {
		return nil, err
	}
	path, ok := findFile(dir, "control.dat")
	if !ok {
		return nil, fmt.Errorf("no control.dat in %s", dir)
	}
	sess := control.NewSession(opts...)
	if err := sess.Load(path); err != nil {
		return nil, err
	}
	return sess, nil
}

// findFile looks up name in dir ignoring case.
func findFile(dir, name string) (string, bool) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, de := range des {
		if !de.IsDir() && strings.EqualFold(de.Name(), name) {
			return filepath.Join(dir, de.Name()), true
		}
	}
	return "", false
}
