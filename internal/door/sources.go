package door

import (
	"errors"
	"fmt"
	"iter"

	"github.com/stlalpha/qmail/internal/jam"
	"github.com/stlalpha/qmail/internal/pcboard"
)

// JAMSource exports a JAM base, starting after the user's lastread
// pointer. Private messages are only exported to their recipient.
type JAMSource struct {
	Base *jam.Base
}

func (s JAMSource) String() string { return "jam:" + s.Base.Path() }

func (s JAMSource) Messages(user string) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		if err := s.Base.Refresh(); err != nil {
			yield(Message{}, err)
			return
		}
		var after uint32
		lr, err := s.Base.LastRead(user)
		switch {
		case err == nil:
			after = lr.LastReadMsg
		case !errors.Is(err, jam.ErrNotFound):
			yield(Message{}, err)
			return
		}
		personal, err := s.personal(user)
		if err != nil {
			yield(Message{}, err)
			return
		}

		for m, err := range s.Base.Messages(after + 1) {
			if err != nil {
				yield(Message{}, err)
				return
			}
			if m.Private && !personal[m.Number] {
				continue
			}
			msg := Message{
				Number:  m.Number,
				From:    m.From,
				To:      m.To,
				Subject: m.Subject,
				Time:    m.Time,
				Ref:     m.ReplyTo,
				Private: m.Private,
				Text:    m.Text,
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// personal returns the numbers of the messages whose index record names
// user as recipient.
func (s JAMSource) personal(user string) (map[uint32]bool, error) {
	nums, err := s.Base.Search(jam.CRC32String(user))
	if err != nil {
		return nil, err
	}
	set := make(map[uint32]bool, len(nums))
	for _, n := range nums {
		set[n] = true
	}
	return set, nil
}

func (s JAMSource) Commit(user string, last uint32) error {
	high := last
	lr, err := s.Base.LastRead(user)
	switch {
	case err == nil:
		high = max(high, lr.HighReadMsg)
	case !errors.Is(err, jam.ErrNotFound):
		return err
	}
	return s.Base.SetLastRead(user, jam.CRC32String(user), last, high)
}

// PCBoardSource exports a PCBoard base. PCBoard keeps lastread pointers
// in its user file, so the starting point is carried in After and Commit
// only advances it.
type PCBoardSource struct {
	Base  *pcboard.Base
	After uint32
}

func (s *PCBoardSource) String() string { return "pcboard:" + s.Base.Path() }

func (s *PCBoardSource) Messages(user string) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for m, err := range s.Base.Messages(s.After) {
			if err != nil {
				yield(Message{}, err)
				return
			}
			h := m.Header
			if h.Private() && !sameName(m.To(), user) {
				continue
			}
			when, err := h.TimeWritten()
			if err != nil {
				yield(Message{}, fmt.Errorf("pcboard message %d: %w", h.Number, err))
				return
			}
			msg := Message{
				Number:  h.Number,
				From:    m.From(),
				To:      m.To(),
				Subject: m.Subject(),
				Time:    when,
				Ref:     h.Ref,
				Private: h.Private(),
				Text:    m.Text,
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func (s *PCBoardSource) Commit(user string, last uint32) error {
	s.After = max(s.After, last)
	return nil
}
