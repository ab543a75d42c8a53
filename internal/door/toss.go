package door

import (
	"fmt"

	"github.com/stlalpha/qmail/internal/jam"
	"github.com/stlalpha/qmail/internal/packet"
	"github.com/stlalpha/qmail/internal/qwk"
)

// TossResult counts what Toss did with a reply file.
type TossResult struct {
	Tossed   int
	Unrouted int // No base for the reply's conference
	Killed   int // Marked deleted by the reader
}

// Toss writes replies into the JAM base of their conference. Replies for
// a conference without a base are logged and counted, not fatal.
func Toss(replies []packet.Reply, bases map[int]*jam.Base, opts ...Option) (TossResult, error) {
	o := newOptions(opts)
	var res TossResult
	for i, r := range replies {
		h := r.Header
		if h == nil {
			return res, fmt.Errorf("door: reply %d has no header", i)
		}
		if h.Delete == qwk.DeletedFlag {
			res.Killed++
			continue
		}
		conf := int(h.ConfNum.Value)
		base, ok := bases[conf]
		if !ok || base == nil {
			o.log.Printf("WARN: toss: reply %d from %s: no base for conference %d", i, h.Author.Value, conf)
			res.Unrouted++
			continue
		}
		m := &jam.Message{
			From:    h.Author.Value,
			To:      h.ForWho.Value,
			Subject: h.Subject.Value,
			ReplyTo: uint32(h.RefMsg.Value),
			Private: isPrivate(h.Status),
			Text:    r.Body,
		}
		if t, err := h.Time(); err == nil {
			m.Time = t
		} else {
			o.log.Printf("WARN: toss: reply %d: bad date %q, using current time", i, h.DateTime.Value)
		}
		num, err := base.WriteMessage(m)
		if err != nil {
			return res, fmt.Errorf("door: toss reply %d into %s: %w", i, base.Path(), err)
		}
		o.log.Printf("INFO: toss: %s -> %s as #%d in %s", m.From, m.To, num, base.Path())
		res.Tossed++
	}
	return res, nil
}
