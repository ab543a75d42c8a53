package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/term"
)

var extractCmd = &cobra.Command{
	Use:   "extract <packet> <dir>",
	Short: "Unpack a .qwk or .rep packet with lowercased file names",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	files, err := packetExtract(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	for _, f := range files {
		term.Info(filepath.Base(f))
	}
	term.Debugf("%d files extracted to %s", len(files), args[1])
	return nil
}

func packetExtract(cmd *cobra.Command, src, dir string) ([]string, error) {
	return packet.Extract(cmd.Context(), src, dir, cfg.Archivers)
}
