package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
	"github.com/stlalpha/qmail/internal/term"
)

type replyFlags struct {
	bbsid    string
	conf     uint64
	to       string
	from     string
	subject  string
	refMsg   uint64
	bodyFile string
	private  bool
	appendTo bool
}

var replyOpts replyFlags

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Create or inspect reply packets",
}

var replyAddCmd = &cobra.Command{
	Use:   "add <packet.rep>",
	Short: "Write a reply into a reply packet",
	Long: "\nWrite a reply into a reply packet. The body is read from --body, or\n" +
		"from standard input when --body is \"-\" or omitted.",
	Args: cobra.ExactArgs(1),
	RunE: runReplyAdd,
}

var replyShowCmd = &cobra.Command{
	Use:   "show <packet.rep | BBSID.MSG>",
	Short: "List the replies in a reply packet or reply file",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplyShow,
}

func init() {
	flag := replyAddCmd.Flags()
	flag.StringVar(&replyOpts.bbsid, "bbsid", "", "BBSID of the board (default from config)")
	flag.Uint64Var(&replyOpts.conf, "conf", 0, "conference number")
	flag.StringVar(&replyOpts.to, "to", "ALL", "recipient")
	flag.StringVar(&replyOpts.from, "from", "", "author")
	flag.StringVar(&replyOpts.subject, "subject", "", "subject")
	flag.Uint64Var(&replyOpts.refMsg, "ref", 0, "number of the message replied to")
	flag.StringVar(&replyOpts.bodyFile, "body", "-", "file holding the message text")
	flag.BoolVar(&replyOpts.private, "private", false, "mark the reply private")
	flag.BoolVarP(&replyOpts.appendTo, "append", "a", false, "keep the replies already in the packet")
	_ = replyAddCmd.MarkFlagRequired("from")
	_ = replyAddCmd.MarkFlagRequired("subject")

	replyCmd.AddCommand(replyAddCmd, replyShowCmd)
	rootCmd.AddCommand(replyCmd)
}

func runReplyAdd(cmd *cobra.Command, args []string) error {
	path := args[0]
	bbsid := replyOpts.bbsid
	if bbsid == "" {
		bbsid = cfg.Reply.BBSID
	}

	var replies []packet.Reply
	if replyOpts.appendTo {
		if _, err := os.Stat(path); err == nil {
			id, existing, err := readReplyPacket(cmd, path)
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			if bbsid == "" {
				bbsid = id
			}
			replies = existing
		}
	}
	if bbsid == "" {
		return errors.New("missing BBSID: use --bbsid or set reply.bbsid in the configuration")
	}

	body, err := readBody(cmd, replyOpts.bodyFile)
	if err != nil {
		return err
	}
	h := qwk.NewReply(replyOpts.conf, replyOpts.to, replyOpts.from, replyOpts.subject, time.Now())
	h.RefMsg = qwk.NewNumber(replyOpts.refMsg)
	if replyOpts.private {
		h.Status = qwk.StatusPrivateUnread
	}
	replies = append(replies, packet.Reply{Header: h, Body: body})

	n, err := packet.CreateReplyPacket(path, bbsid, replies, cfg.ReplyOptions(codec())...)
	if err != nil {
		return err
	}
	term.Infof("%s: %d replies for %s", path, n, strings.ToUpper(bbsid))
	return nil
}

func readBody(cmd *cobra.Command, name string) (string, error) {
	var data []byte
	var err error
	if name == "" || name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("cannot read message body: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func runReplyShow(cmd *cobra.Command, args []string) error {
	bbsid, replies, err := readReplyPacket(cmd, args[0])
	if err != nil {
		return err
	}
	term.Infof("BBSID %s, %d replies", bbsid, len(replies))

	rows := make([][]string, 0, len(replies))
	for i, r := range replies {
		date := r.Header.DateTime.Value
		if t, err := r.Header.Time(); err == nil {
			date = t.Format(dateFormat)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatUint(r.Header.ConfNum.Value, 10),
			r.Header.Author.Value,
			r.Header.ForWho.Value,
			r.Header.Subject.Value,
			date,
		})
	}
	return term.Table([]string{"#", "Conference", "From", "To", "Subject", "Date"}, rows)
}

// readReplyPacket reads either a bare reply file or a packet holding one.
func readReplyPacket(cmd *cobra.Command, path string) (string, []packet.Reply, error) {
	opts := cfg.ReplyOptions(codec())
	if strings.EqualFold(filepath.Ext(path), qwk.ReplyExt) {
		f, err := os.Open(path)
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		return packet.ReadReplies(f, opts...)
	}

	tmp, err := os.MkdirTemp("", "qmail-")
	if err != nil {
		return "", nil, err
	}
	defer os.RemoveAll(tmp)
	files, err := packetExtract(cmd, path, tmp)
	if err != nil {
		return "", nil, err
	}
	for _, name := range files {
		if !strings.EqualFold(filepath.Ext(name), qwk.ReplyExt) {
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		return packet.ReadReplies(f, opts...)
	}
	return "", nil, fmt.Errorf("%s holds no reply file", filepath.Base(path))
}
