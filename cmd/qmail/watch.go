package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/catalog"
	"github.com/stlalpha/qmail/internal/inbound"
	"github.com/stlalpha/qmail/internal/term"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index packets arriving in the inbound directory until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index the packets waiting in the inbound directory once",
	Args:  cobra.NoArgs,
	RunE:  runInbound,
}

func init() {
	rootCmd.AddCommand(watchCmd, runCmd)
}

func openProcessor() (*inbound.Processor, *catalog.Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.Catalog), 0755); err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Open(cfg.Paths.Catalog)
	if err != nil {
		return nil, nil, err
	}
	p, err := inbound.New(cfg, cat, nil)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	return p, cat, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, cat, err := openProcessor()
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	term.Infof("watching %s (ctrl-c to stop)", cfg.Paths.Inbound)
	return p.Start(ctx)
}

func runInbound(cmd *cobra.Command, args []string) error {
	p, cat, err := openProcessor()
	if err != nil {
		return err
	}
	defer cat.Close()

	res := p.RunOnce(cmd.Context())
	for _, e := range res.Errors {
		term.Error(e)
	}
	term.Infof("%d packets indexed, %d messages, %d skipped, %d already indexed",
		res.Packets, res.Messages, res.Skipped, res.Duplicates)
	return nil
}
