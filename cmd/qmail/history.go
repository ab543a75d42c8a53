package main

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/catalog"
	"github.com/stlalpha/qmail/internal/term"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display the packets indexed so far",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(cfg.Paths.Catalog)
	if err != nil {
		return err
	}
	defer cat.Close()

	runs, err := cat.List()
	if err != nil {
		return err
	}
	term.Debugf("catalog %s: %d runs", cat.Path(), len(runs))
	if len(runs) == 0 {
		term.Warn("No packet indexed yet")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := "ok"
		if !r.OK() {
			status = r.Error
		}
		rows = append(rows, []string{
			r.StartedAt.Format(dateFormat),
			filepath.Base(r.Packet),
			r.BBSID,
			strconv.Itoa(r.Written),
			strconv.Itoa(r.Skipped),
			r.Duration().Round(time.Millisecond).String(),
			status,
		})
		term.Debugf("run %s: %s", r.ID, r.Fingerprint)
	}
	return term.Table([]string{"Date", "Packet", "BBSID", "Messages", "Skipped", "Took", "Status"}, rows)
}
