package qwk

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestReplyRoundTrip(t *testing.T) {
	when := time.Date(2026, time.October, 19, 14, 30, 0, 0, time.UTC)
	r := NewReply(12, "SYSOP", "JOHN DOE", "Question about files", when)
	r.SizeMsg = NewNumber(4)
	r.Tail = [5]byte{0x01, 0x0A, 0x00, 0xFF, ' '}

	buf, err := DefaultCodec.EncodeReply(r)
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	if len(buf) != ReplySize {
		t.Fatalf("encoded length: got %d, want %d", len(buf), ReplySize)
	}
	if got := string(buf[1:8]); got != "12     " {
		t.Errorf("ConfNum bytes: got %q", got)
	}
	if got := string(buf[8:21]); got != "10-19-2614:30" {
		t.Errorf("DateTime bytes: got %q", got)
	}
	if !bytes.Equal(buf[123:], r.Tail[:]) {
		t.Errorf("tail bytes: got %v, want %v", buf[123:], r.Tail)
	}

	got, err := DefaultCodec.DecodeReply(buf)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if got.ConfNum.Value != 12 || got.SizeMsg.Value != 4 {
		t.Errorf("numbers: got conf=%d size=%d", got.ConfNum.Value, got.SizeMsg.Value)
	}
	if got.ForWho.Value != "SYSOP" || got.Author.Value != "JOHN DOE" || got.Subject.Value != "Question about files" {
		t.Errorf("text: got %q/%q/%q", got.ForWho, got.Author, got.Subject)
	}
	if got.Tail != r.Tail {
		t.Errorf("tail: got %v, want %v", got.Tail, r.Tail)
	}
	if got.Delete != ActiveFlag {
		t.Errorf("Delete: got %#x", got.Delete)
	}
	parsed, err := got.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !parsed.Equal(when) {
		t.Errorf("Time: got %v, want %v", parsed, when)
	}

	again, err := DefaultCodec.EncodeReply(got)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(again, buf) {
		t.Errorf("re-encode changed bytes")
	}
}

func TestReplyPolicyIndependentOfReceived(t *testing.T) {
	c, err := NewCodec(WithPolicy(FormReply, FieldRefMsg, FieldPolicy{Justify: JustifyRight, Pad: '0'}))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	r := &ReplyHeader{RefMsg: NewNumber(99)}
	buf, err := c.EncodeReply(r)
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	if got := string(buf[108:116]); got != "00000099" {
		t.Errorf("reply RefMsg: got %q", got)
	}

	h := &MessageHeader{RefMsg: NewNumber(99)}
	buf, err = c.EncodeReceived(h)
	if err != nil {
		t.Fatalf("EncodeReceived: %v", err)
	}
	if got := string(buf[108:116]); got != "99      " {
		t.Errorf("received RefMsg should keep default policy, got %q", got)
	}
}

func TestDecodeReplyErrors(t *testing.T) {
	if _, err := DefaultCodec.DecodeReply(make([]byte, 100)); !errors.Is(err, ErrTruncatedRecord) {
		t.Errorf("expected ErrTruncatedRecord, got %v", err)
	}

	buf, _ := DefaultCodec.EncodeReply(NewReply(1, "A", "B", "C", time.Now()))
	copy(buf[116:122], "12X   ")
	r, err := DefaultCodec.DecodeReply(buf)
	var derr *DecodeError
	if !errors.As(err, &derr) || !derr.Has(FieldSizeMsg) {
		t.Fatalf("expected SizeMsg DecodeError, got %v", err)
	}
	if r == nil || r.ConfNum.Value != 1 {
		t.Errorf("remaining fields should decode, got %+v", r)
	}
}

func TestNewReplyTo(t *testing.T) {
	orig := &MessageHeader{
		Status:     StatusPrivateUnread,
		NumMsg:     NewNumber(812),
		Author:     NewText("BOB SMITH"),
		Subject:    NewText("Meeting"),
		Conference: 4,
	}
	r := NewReplyTo(orig, "ALICE", time.Now())
	if r.ForWho.Value != "BOB SMITH" {
		t.Errorf("ForWho: got %q", r.ForWho)
	}
	if r.Subject.Value != "Re: Meeting" {
		t.Errorf("Subject: got %q", r.Subject)
	}
	if r.RefMsg.Value != 812 || r.ConfNum.Value != 4 {
		t.Errorf("RefMsg/ConfNum: got %d/%d", r.RefMsg.Value, r.ConfNum.Value)
	}
	if r.Status != StatusPrivateUnread {
		t.Errorf("private original should produce private reply, got %q", r.Status)
	}

	orig.Subject = NewText("RE: Meeting")
	if r := NewReplyTo(orig, "ALICE", time.Now()); r.Subject.Value != "RE: Meeting" {
		t.Errorf("subject already prefixed: got %q", r.Subject)
	}
}
