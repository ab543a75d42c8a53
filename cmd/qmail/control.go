package main

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/term"
)

const dateFormat = "2006-01-02 15:04:05"

var controlCmd = &cobra.Command{
	Use:   "control <control.dat>",
	Short: "Display the user information and conference table of a control file",
	Args:  cobra.ExactArgs(1),
	RunE:  runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	opts, err := cfg.ControlOptions()
	if err != nil {
		return err
	}
	sess := control.NewSession(opts...)
	if err := sess.Load(args[0]); err != nil {
		return err
	}
	info := sess.Info

	created := ""
	if !info.Created.IsZero() {
		created = info.Created.Format(dateFormat)
	}
	err = pterm.DefaultTable.WithData(pterm.TableData{
		{"Board", info.BoardName},
		{"City", info.City},
		{"Sysop", info.Sysop},
		{"BBSID", info.BBSID},
		{"Created", created},
		{"User", info.UserName},
		{"Messages", strconv.Itoa(info.MessageCount)},
		{"Last conference", strconv.Itoa(info.LastConf)},
	}).Render()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, sess.Conferences.Len())
	for _, c := range sess.Conferences.Conferences() {
		rows = append(rows, []string{strconv.Itoa(c.Index), strconv.Itoa(c.Number), c.Name})
	}
	if len(rows) == 0 {
		term.Warn("No conferences listed")
		return nil
	}
	return term.Table([]string{"Index", "Number", "Name"}, rows)
}
