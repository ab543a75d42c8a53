package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stlalpha/qmail/internal/config"
	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/door"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/jam"
	"github.com/stlalpha/qmail/internal/logging"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/pcboard"
	"github.com/stlalpha/qmail/internal/qwk"
	"github.com/stlalpha/qmail/internal/term"
)

type doorFlags struct {
	areas  []string
	user   string
	bbsid  string
	packet string
	commit bool
	max    int
}

var (
	exportOpts doorFlags
	tossOpts   doorFlags
)

var exportCmd = &cobra.Command{
	Use:   "export <dest>",
	Short: "Build a QWK packet from local JAM and PCBoard message bases",
	Long: "\nBuild messages.dat, control.dat and messages.idx in dest from the\n" +
		"configured message bases, or from the bases given with --area\n" +
		"(type:number:name:path, type jam or pcboard).",
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var tossCmd = &cobra.Command{
	Use:   "toss <packet.rep | BBSID.MSG>",
	Short: "Write the replies of a reply packet into JAM message bases",
	Args:  cobra.ExactArgs(1),
	RunE:  runToss,
}

func init() {
	flag := exportCmd.Flags()
	flag.StringArrayVar(&exportOpts.areas, "area", nil, "message base as type:number:name:path (repeatable)")
	flag.StringVar(&exportOpts.user, "user", "", "user the packet is built for (default from config)")
	flag.StringVar(&exportOpts.bbsid, "bbsid", "", "BBSID of the board (default from config)")
	flag.StringVar(&exportOpts.packet, "packet", "", "also zip the packet to this file")
	flag.BoolVar(&exportOpts.commit, "commit", false, "advance lastread pointers past the exported messages")
	flag.IntVar(&exportOpts.max, "max", 0, "messages per area, 0 for the configured limit")

	flag = tossCmd.Flags()
	flag.StringArrayVar(&tossOpts.areas, "area", nil, "message base as jam:number:name:path (repeatable)")

	rootCmd.AddCommand(exportCmd, tossCmd)
}

func areaConfigs(flags []string) ([]config.AreaConfig, error) {
	if len(flags) == 0 {
		if len(cfg.Door.Areas) == 0 {
			return nil, errors.New("no message bases: use --area or set door.areas in the configuration")
		}
		return cfg.Door.Areas, nil
	}
	areas := make([]config.AreaConfig, 0, len(flags))
	for _, s := range flags {
		a, err := config.ParseArea(s)
		if err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, nil
}

// openAreas opens the bases of areas. The returned func closes the JAM
// bases.
func openAreas(areas []config.AreaConfig) ([]door.Area, func(), error) {
	var (
		out  []door.Area
		jams []*jam.Base
	)
	closeAll := func() {
		for _, b := range jams {
			b.Close()
		}
	}
	for _, a := range areas {
		var src door.Source
		switch a.Type {
		case config.AreaJAM:
			b, err := jam.Open(a.Path)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("area %d: %w", a.Number, err)
			}
			jams = append(jams, b)
			src = door.JAMSource{Base: b}
		case config.AreaPCBoard:
			b, err := pcboard.Open(a.Path)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("area %d: %w", a.Number, err)
			}
			src = &door.PCBoardSource{Base: b}
		}
		out = append(out, door.Area{Number: a.Number, Name: a.Name, Source: src})
	}
	return out, closeAll, nil
}

func doorLogger() logging.Logger {
	if logging.DebugEnabled {
		return logging.Std{}
	}
	return logging.NoLog{}
}

func runExport(cmd *cobra.Command, args []string) error {
	dest := args[0]
	user := firstNonEmpty(exportOpts.user, cfg.Door.User)
	if user == "" {
		return errors.New("missing user: use --user or set door.user in the configuration")
	}
	acs, err := areaConfigs(exportOpts.areas)
	if err != nil {
		return err
	}
	areas, closeAll, err := openAreas(acs)
	if err != nil {
		return err
	}
	defer closeAll()

	info := control.UserInfo{
		BoardName: cfg.Door.BoardName,
		Sysop:     cfg.Door.Sysop,
		BBSID:     strings.ToUpper(firstNonEmpty(exportOpts.bbsid, cfg.Reply.BBSID)),
		Created:   time.Now(),
		UserName:  strings.ToUpper(user),
	}
	limit := exportOpts.max
	if limit == 0 {
		limit = cfg.Door.MaxMessages
	}
	c := codec()
	res, err := door.Export(dest, info, areas,
		door.WithCodec(c),
		door.WithLogger(doorLogger()),
		door.WithIndexOptions(index.WithPacketHeader(true), index.WithNDX(cfg.Index.NDX)),
		door.WithMaxMessages(limit),
		door.WithCommit(exportOpts.commit),
	)
	if err != nil {
		return err
	}
	for _, a := range areas {
		term.Infof("%3d %-13s %d messages", a.Number, a.Name, res.Areas[a.Number])
	}
	term.Infof("%s: %d messages for %s", dest, res.Messages, info.UserName)

	if exportOpts.packet != "" {
		if err := packet.Pack(exportOpts.packet,
			filepath.Join(dest, qwk.ControlFile),
			filepath.Join(dest, qwk.MessagesFile)); err != nil {
			return err
		}
		term.Infof("packet written to %s", exportOpts.packet)
	}
	return nil
}

func runToss(cmd *cobra.Command, args []string) error {
	acs, err := areaConfigs(tossOpts.areas)
	if err != nil {
		return err
	}
	bases := make(map[int]*jam.Base)
	defer func() {
		for _, b := range bases {
			b.Close()
		}
	}()
	for _, a := range acs {
		if a.Type != config.AreaJAM {
			term.Warnf("area %d: %s bases are read-only, replies for it are not tossed", a.Number, a.Type)
			continue
		}
		b, err := jam.Open(a.Path)
		if errors.Is(err, os.ErrNotExist) {
			term.Infof("area %d: creating JAM base %s", a.Number, a.Path)
			b, err = jam.Create(a.Path, "")
		}
		if err != nil {
			return fmt.Errorf("area %d: %w", a.Number, err)
		}
		bases[a.Number] = b
	}

	bbsid, replies, err := readReplyPacket(cmd, args[0])
	if err != nil {
		return err
	}
	res, err := door.Toss(replies, bases, door.WithCodec(codec()), door.WithLogger(doorLogger()))
	if err != nil {
		return err
	}
	if res.Unrouted > 0 {
		term.Warnf("%d replies for conferences without a base", res.Unrouted)
	}
	term.Infof("%s: %d of %d replies tossed", bbsid, res.Tossed, len(replies))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
