package door

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/qmail/internal/control"
	"github.com/stlalpha/qmail/internal/index"
	"github.com/stlalpha/qmail/internal/qwk"
)

// Producer is written into the first block of messages.dat.
const Producer = "Produced by qmail"

// Result summarizes one Export.
type Result struct {
	Dir      string
	Messages int
	Areas    map[int]int  // Messages exported per conference number
	Index    index.Result // Index run over the new messages.dat
}

type areaRun struct {
	area  Area
	count int
	last  uint32
}

// Export writes messages.dat and control.dat for info.UserName into dest,
// one conference per area, then indexes dest. With WithCommit the sources'
// lastread pointers advance past the exported messages.
func Export(dest string, info control.UserInfo, areas []Area, opts ...Option) (Result, error) {
	o := newOptions(opts)
	res := Result{Dir: dest, Areas: make(map[int]int, len(areas))}
	user := strings.TrimSpace(info.UserName)
	if user == "" {
		return res, errors.New("door: export needs a user name")
	}

	confs := make([]control.Conference, 0, len(areas))
	for _, a := range areas {
		if err := checkConference(a.Number); err != nil {
			return res, err
		}
		confs = append(confs, control.Conference{Number: a.Number, Name: a.Name})
	}
	table := control.NewTableOf(confs...)

	if err := os.MkdirAll(dest, 0755); err != nil {
		return res, &qwk.IOError{Op: "mkdir", Path: dest, Err: err}
	}
	runs, err := writeMessages(filepath.Join(dest, qwk.MessagesFile), user, areas, o)
	if err != nil {
		return res, err
	}
	for _, r := range runs {
		res.Areas[r.area.Number] = r.count
		res.Messages += r.count
	}

	info.MessageCount = res.Messages
	ctlPath := filepath.Join(dest, qwk.ControlFile)
	if err := writeControl(ctlPath, info, table); err != nil {
		return res, err
	}

	sess := &control.Session{Info: info, Conferences: table, Path: ctlPath}
	idxOpts := append([]index.Option{
		index.WithCodec(o.codec),
		index.WithSizeIncludesHeader(true),
		index.WithLogger(o.log),
	}, o.indexOpts...)
	res.Index = index.MkIndex(dest, dest, sess, idxOpts...)
	if res.Index.Err != nil {
		return res, fmt.Errorf("door: index %s: %w", dest, res.Index.Err)
	}

	if o.commit {
		for _, r := range runs {
			if r.count == 0 {
				continue
			}
			if err := r.area.Source.Commit(user, r.last); err != nil {
				return res, fmt.Errorf("door: commit %s: %w", r.area.Source, err)
			}
		}
	}
	o.log.Printf("INFO: export: %s: %d messages in %d areas for %s", dest, res.Messages, len(areas), user)
	return res, nil
}

func writeMessages(path, user string, areas []Area, o *options) ([]areaRun, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &qwk.IOError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	first := bytes.Repeat([]byte{' '}, qwk.BlockSize)
	copy(first, Producer)
	bw.Write(first)

	runs := make([]areaRun, 0, len(areas))
	for _, a := range areas {
		r := areaRun{area: a}
		for m, err := range a.Source.Messages(user) {
			if err != nil {
				return nil, fmt.Errorf("door: area %d (%s): %w", a.Number, a.Source, err)
			}
			if o.max > 0 && r.count >= o.max {
				break
			}
			hdr, body, err := encodeMessage(o.codec, a.Number, m)
			if err != nil {
				return nil, fmt.Errorf("door: area %d message %d: %w", a.Number, m.Number, err)
			}
			bw.Write(hdr)
			bw.Write(body)
			r.count++
			r.last = m.Number
		}
		o.log.Printf("INFO: export: area %d %s: %d messages from %s", a.Number, a.Name, r.count, a.Source)
		runs = append(runs, r)
	}
	if err := bw.Flush(); err != nil {
		return nil, &qwk.IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &qwk.IOError{Op: "close", Path: path, Err: err}
	}
	return runs, nil
}

// encodeMessage returns the received header and body blocks of m. SizeMsg
// counts the header block.
func encodeMessage(c *qwk.Codec, conf int, m Message) ([]byte, []byte, error) {
	body, blocks := qwk.EncodeBody(m.Text)
	h := &qwk.MessageHeader{
		Status:     qwk.StatusPublicUnread,
		NumMsg:     qwk.NewNumber(uint64(m.Number)),
		ForWho:     qwk.NewText(m.To),
		Author:     qwk.NewText(m.From),
		Subject:    qwk.NewText(m.Subject),
		RefMsg:     qwk.NewNumber(uint64(m.Ref)),
		SizeMsg:    qwk.NewNumber(uint64(blocks) + 1),
		Delete:     qwk.ActiveFlag,
		Conference: byte(conf),
	}
	if m.Private {
		h.Status = qwk.StatusPrivateUnread
	}
	h.SetTime(m.Time)
	hdr, err := c.EncodeReceived(h)
	if err != nil {
		return nil, nil, err
	}
	return hdr, body, nil
}

func writeControl(path string, info control.UserInfo, t *control.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return &qwk.IOError{Op: "create", Path: path, Err: err}
	}
	if err := control.Write(f, info, t); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &qwk.IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}
