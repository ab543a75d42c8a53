package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/config"
	"github.com/stlalpha/qmail/internal/jam"
	"github.com/stlalpha/qmail/internal/pcboard"
	"github.com/stlalpha/qmail/internal/term"
)

var basePassword string

var baseCmd = &cobra.Command{
	Use:   "base",
	Short: "Inspect the JAM and PCBoard message bases export reads",
}

var baseStatsCmd = &cobra.Command{
	Use:   "stats <jam|pcboard> <path>",
	Short: "Display message base statistics",
	Args:  cobra.ExactArgs(2),
	RunE:  runBaseStats,
}

var baseListCmd = &cobra.Command{
	Use:   "list <jam|pcboard> <path>",
	Short: "List the messages of a message base",
	Args:  cobra.ExactArgs(2),
	RunE:  runBaseList,
}

var baseReadCmd = &cobra.Command{
	Use:   "read <jam|pcboard> <path> <number>",
	Short: "Print one message",
	Args:  cobra.ExactArgs(3),
	RunE:  runBaseRead,
}

var baseLastreadCmd = &cobra.Command{
	Use:   "lastread <path>",
	Short: "Show the lastread records of a JAM base",
	Args:  cobra.ExactArgs(1),
	RunE:  runBaseLastread,
}

func init() {
	baseReadCmd.Flags().StringVar(&basePassword, "password", "", "password of a protected JAM base")
	baseCmd.AddCommand(baseStatsCmd, baseListCmd, baseReadCmd, baseLastreadCmd)
	rootCmd.AddCommand(baseCmd)
}

func checkBaseType(t string) error {
	switch t {
	case config.AreaJAM, config.AreaPCBoard:
		return nil
	}
	return fmt.Errorf("unknown base type %q: want %s or %s", t, config.AreaJAM, config.AreaPCBoard)
}

func runBaseStats(cmd *cobra.Command, args []string) error {
	if err := checkBaseType(args[0]); err != nil {
		return err
	}
	if args[0] == config.AreaPCBoard {
		b, err := pcboard.Open(args[1])
		if err != nil {
			return err
		}
		h := b.Header()
		rows := [][]string{
			{"Messages", fmt.Sprintf("%d..%d, %d active", h.Low, h.High, h.Active)},
			{"Callers", strconv.Itoa(int(h.Callers))},
			{"Locked", strconv.FormatBool(h.Locked())},
		}
		if recs, err := b.ReadIndex(); err == nil {
			rows = append(rows, []string{"IDX records", strconv.Itoa(len(recs))})
		} else {
			term.Warnf("index: %s", err)
		}
		if offs, err := b.ReadOldIndex(); err == nil {
			rows = append(rows, []string{"NDX records", strconv.Itoa(len(offs))})
		} else {
			term.Debugf("old index: %s", err)
		}
		return term.Table([]string{b.Path(), ""}, rows)
	}

	b, err := jam.Open(args[1])
	if err != nil {
		return err
	}
	defer b.Close()
	total, err := b.Count()
	if err != nil {
		return err
	}
	h := b.Header()
	return term.Table([]string{b.Path(), ""}, [][]string{
		{"Created", time.Unix(int64(h.DateCreated), 0).Format(dateFormat)},
		{"ModCounter", strconv.Itoa(int(h.ModCounter))},
		{"BaseMsgNum", strconv.Itoa(int(h.BaseMsgNum))},
		{"Messages", fmt.Sprintf("%d total, %d active", total, h.ActiveMsgs)},
		{"Password", strconv.FormatBool(b.NeedsPassword())},
	})
}

func runBaseList(cmd *cobra.Command, args []string) error {
	if err := checkBaseType(args[0]); err != nil {
		return err
	}
	width := subjectWidth(term.Width())
	var rows [][]string
	if args[0] == config.AreaPCBoard {
		b, err := pcboard.Open(args[1])
		if err != nil {
			return err
		}
		recs, err := b.ReadIndex()
		if err != nil {
			return err
		}
		for _, r := range recs {
			rows = append(rows, []string{strconv.Itoa(int(r.Num)), r.From, r.To, strconv.Itoa(int(r.Offset))})
		}
		return term.Table([]string{"#", "From", "To", "Offset"}, rows)
	}

	b, err := jam.Open(args[1])
	if err != nil {
		return err
	}
	defer b.Close()
	for h, err := range b.Headers() {
		if err != nil {
			return err
		}
		from, _ := h.Get(jam.SfldSenderName)
		to, _ := h.Get(jam.SfldReceiverName)
		subject, _ := h.Get(jam.SfldSubject)
		status := ""
		if h.Attribute&jam.MsgDeleted != 0 {
			status = "deleted"
		} else if h.Attribute&jam.MsgPrivate != 0 {
			status = "private"
		}
		rows = append(rows, []string{
			strconv.Itoa(int(h.MessageNumber)), from, to, truncate(subject, width),
			time.Unix(int64(h.DateWritten), 0).Format(dateFormat), status,
		})
	}
	if len(rows) == 0 {
		term.Warn("No messages")
		return nil
	}
	return term.Table([]string{"#", "From", "To", "Subject", "Date", "Status"}, rows)
}

func runBaseRead(cmd *cobra.Command, args []string) error {
	if err := checkBaseType(args[0]); err != nil {
		return err
	}
	num, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return fmt.Errorf("bad message number %q", args[2])
	}
	if args[0] == config.AreaPCBoard {
		b, err := pcboard.Open(args[1])
		if err != nil {
			return err
		}
		m, err := b.ReadMessage(uint32(num))
		if err != nil {
			return err
		}
		pterm.DefaultSection.Println(fmt.Sprintf("#%d %s", m.Header.Number, m.Subject()))
		fmt.Printf("From: %s\nTo:   %s\nDate: %s %s\n", m.From(), m.To(), m.Header.Date, m.Header.Time)
		for _, e := range m.Extended {
			term.Debugf("extended %s: %s", e.Function, e.Content)
		}
		fmt.Println()
		fmt.Println(m.Text)
		return nil
	}

	b, err := jam.Open(args[1])
	if err != nil {
		return err
	}
	defer b.Close()
	if b.NeedsPassword() && !b.CheckPassword(basePassword) {
		return errors.New("base is password protected: wrong or missing --password")
	}
	m, err := b.ReadMessage(uint32(num))
	if err != nil {
		return err
	}
	pterm.DefaultSection.Println(fmt.Sprintf("#%d %s", m.Number, m.Subject))
	fmt.Printf("From: %s\nTo:   %s\nDate: %s\n", m.From, m.To, m.Time.Format(dateFormat))
	if m.Deleted() {
		term.Warn("message is marked deleted")
	}
	fmt.Println()
	fmt.Println(m.Text)
	return nil
}

func runBaseLastread(cmd *cobra.Command, args []string) error {
	b, err := jam.Open(args[0])
	if err != nil {
		return err
	}
	defer b.Close()
	records, err := b.LastReads()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		term.Info("No lastread records")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, lr := range records {
		rows = append(rows, []string{
			fmt.Sprintf("0x%08X", lr.UserCRC),
			strconv.Itoa(int(lr.UserID)),
			strconv.Itoa(int(lr.LastReadMsg)),
			strconv.Itoa(int(lr.HighReadMsg)),
		})
	}
	return term.Table([]string{"UserCRC", "UserID", "LastRead", "HighRead"}, rows)
}
