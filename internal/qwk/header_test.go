package qwk

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// pad left-justifies s in an n-byte space-filled field.
func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s[:n]
}

// rawHeader assembles a received header from already-padded field text.
func rawHeader(num, date, tm, to, from, subj, pw, ref, size string, conf byte) []byte {
	var b bytes.Buffer
	b.WriteByte(' ')
	b.WriteString(pad(num, 7))
	b.WriteString(pad(date, 8))
	b.WriteString(pad(tm, 5))
	b.WriteString(pad(to, 25))
	b.WriteString(pad(from, 25))
	b.WriteString(pad(subj, 25))
	b.WriteString(pad(pw, 12))
	b.WriteString(pad(ref, 8))
	b.WriteString(pad(size, 6))
	b.WriteByte(ActiveFlag)
	b.WriteByte(conf)
	b.WriteByte(0x00)
	b.Write([]byte{' ', 'E', '*'})
	return b.Bytes()
}

func TestReceivedRoundTrip(t *testing.T) {
	h := &MessageHeader{
		Status:     StatusPublicUnread,
		NumMsg:     NewNumber(1234),
		ForWho:     NewText("ALL"),
		Author:     NewText("SYSOP"),
		Subject:    NewText("Welcome aboard"),
		RefMsg:     NewNumber(17),
		SizeMsg:    NewNumber(3),
		Delete:     ActiveFlag,
		Conference: 7,
		Read:       0x20,
		Reserved:   [3]byte{0x20, 'E', 0x00},
	}
	h.SetTime(time.Date(1994, time.March, 5, 21, 7, 0, 0, time.UTC))

	buf, err := DefaultCodec.EncodeReceived(h)
	if err != nil {
		t.Fatalf("EncodeReceived: %v", err)
	}
	if len(buf) != HeaderSize {
		t.Fatalf("encoded length: got %d, want %d", len(buf), HeaderSize)
	}
	if got := string(buf[1:8]); got != "1234   " {
		t.Errorf("NumMsg bytes: got %q", got)
	}
	if got := string(buf[8:21]); got != "03-05-9421:07" {
		t.Errorf("date/time bytes: got %q", got)
	}
	if got := string(buf[116:122]); got != "3     " {
		t.Errorf("SizeMsg bytes: got %q", got)
	}
	if buf[123] != 7 {
		t.Errorf("Conference byte: got %d, want 7", buf[123])
	}

	got, err := DefaultCodec.DecodeReceived(buf)
	if err != nil {
		t.Fatalf("DecodeReceived: %v", err)
	}
	if got.NumMsg.Value != 1234 || got.RefMsg.Value != 17 || got.SizeMsg.Value != 3 {
		t.Errorf("numbers: got %d/%d/%d", got.NumMsg.Value, got.RefMsg.Value, got.SizeMsg.Value)
	}
	if got.ForWho.Value != "ALL" || got.Author.Value != "SYSOP" || got.Subject.Value != "Welcome aboard" {
		t.Errorf("text: got %q/%q/%q", got.ForWho, got.Author, got.Subject)
	}
	if got.Reserved != h.Reserved {
		t.Errorf("reserved: got %v, want %v", got.Reserved, h.Reserved)
	}
	if got.Conference != 7 || got.Read != 0x20 || got.Delete != ActiveFlag {
		t.Errorf("flag bytes: got conf=%d read=%#x delete=%#x", got.Conference, got.Read, got.Delete)
	}
	when, err := got.Time()
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if !when.Equal(time.Date(1994, time.March, 5, 21, 7, 0, 0, time.UTC)) {
		t.Errorf("Time: got %v", when)
	}
}

func TestDecodeReceivedSizeMsg(t *testing.T) {
	raw := rawHeader("1", "01-02-95", "10:00", "ALL", "BOB", "Hi", "", "", "000002", 1)
	h, err := DefaultCodec.DecodeReceived(raw)
	if err != nil {
		t.Fatalf("DecodeReceived: %v", err)
	}
	if h.Blocks() != 2 {
		t.Errorf("Blocks: got %d, want 2", h.Blocks())
	}
	if got := h.BodyLen(false); got != 256 {
		t.Errorf("BodyLen: got %d, want 256", got)
	}
	if got := h.BodyLen(true); got != 128 {
		t.Errorf("BodyLen including header: got %d, want 128", got)
	}
	if h.SizeMsg.Digits() != "000002" {
		t.Errorf("Digits: got %q", h.SizeMsg.Digits())
	}
}

func TestDecodeReceivedWrongLength(t *testing.T) {
	raw := rawHeader("1", "", "", "", "", "", "", "", "1", 0)
	for _, n := range []int{0, HeaderSize - 1, HeaderSize + 1} {
		buf := make([]byte, n)
		copy(buf, raw)
		if _, err := DefaultCodec.DecodeReceived(buf); !errors.Is(err, ErrTruncatedRecord) {
			t.Errorf("len %d: expected ErrTruncatedRecord, got %v", n, err)
		}
	}
}

func TestDecodeReceivedNumericPadding(t *testing.T) {
	tests := []struct {
		name    string
		justify Justify
		field   string
		want    uint64
		wantErr bool
	}{
		{"left justified", JustifyLeft, "42     ", 42, false},
		{"zero padded", JustifyLeft, "0000042", 42, false},
		{"all blank", JustifyLeft, "       ", 0, false},
		{"nul padded", JustifyLeft, "42\x00\x00\x00\x00\x00", 42, false},
		{"leading blanks when left justified", JustifyLeft, "     42", 0, true},
		{"right justified", JustifyRight, "     42", 42, false},
		{"right justified all blank", JustifyRight, "       ", 0, false},
		{"trailing blanks when right justified", JustifyRight, "42     ", 0, true},
		{"either accepts right", JustifyEither, "     42", 42, false},
		{"either accepts centered", JustifyEither, "  42   ", 42, false},
		{"embedded space", JustifyEither, "4 2    ", 0, true},
		{"letter", JustifyLeft, "4A     ", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(WithPolicy(FormReceived, FieldNumMsg, FieldPolicy{Justify: tt.justify, Pad: ' '}))
			if err != nil {
				t.Fatalf("NewCodec: %v", err)
			}
			raw := rawHeader("1", "", "", "", "", "", "", "", "1", 0)
			copy(raw[1:8], tt.field)
			h, err := c.DecodeReceived(raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedField) {
					t.Fatalf("expected ErrMalformedField, got %v", err)
				}
				var derr *DecodeError
				if !errors.As(err, &derr) || !derr.Has(FieldNumMsg) {
					t.Fatalf("expected DecodeError naming NumMsg, got %v", err)
				}
				if h == nil || h.SizeMsg.Value != 1 {
					t.Errorf("other fields should still decode, got %+v", h)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.NumMsg.Value != tt.want {
				t.Errorf("NumMsg: got %d, want %d", h.NumMsg.Value, tt.want)
			}
			if string(h.NumMsg.Raw) != tt.field {
				t.Errorf("Raw: got %q, want %q", h.NumMsg.Raw, tt.field)
			}
		})
	}
}

func TestEitherJustifyEncodesLeft(t *testing.T) {
	c, err := NewCodec(WithPolicy(FormReceived, FieldNumMsg, FieldPolicy{Justify: JustifyEither, Pad: ' '}))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	buf, err := c.EncodeReceived(&MessageHeader{NumMsg: NewNumber(42), SizeMsg: NewNumber(1)})
	if err != nil {
		t.Fatalf("EncodeReceived: %v", err)
	}
	if got := string(buf[1:8]); got != "42     " {
		t.Errorf("NumMsg: got %q", got)
	}
}

func TestReencodePreservesRawBytes(t *testing.T) {
	raw := rawHeader("0000012", "12-31-99", "23:59", "JOHN DOE", "JANE ROE", "Test", "SECRET", "11", "000002", 3)
	raw[80] = 0x00 // NUL inside Subject padding

	h, err := DefaultCodec.DecodeReceived(raw)
	if err != nil {
		t.Fatalf("DecodeReceived: %v", err)
	}
	out, err := DefaultCodec.EncodeReceived(h)
	if err != nil {
		t.Fatalf("EncodeReceived: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("re-encode changed bytes:\n got %q\nwant %q", out, raw)
	}

	h.SizeMsg.Value = 3
	h.Subject.Value = "Changed"
	out, err = DefaultCodec.EncodeReceived(h)
	if err != nil {
		t.Fatalf("EncodeReceived after change: %v", err)
	}
	if got := string(out[116:122]); got != "3     " {
		t.Errorf("modified SizeMsg: got %q", got)
	}
	if got := string(out[71:96]); got != pad("Changed", 25) {
		t.Errorf("modified Subject: got %q", got)
	}
	if got := string(out[1:8]); got != "0000012" {
		t.Errorf("untouched NumMsg should keep raw bytes, got %q", got)
	}
}

func TestEncodeNumberOverflow(t *testing.T) {
	h := &MessageHeader{NumMsg: NewNumber(12345678)}
	_, err := DefaultCodec.EncodeReceived(h)
	if !errors.Is(err, ErrMalformedField) {
		t.Fatalf("expected ErrMalformedField, got %v", err)
	}
}

func TestFieldPolicy(t *testing.T) {
	c, err := NewCodec(
		WithPolicy(FormReceived, FieldSizeMsg, FieldPolicy{Justify: JustifyRight, Pad: '0'}),
		WithPolicy(FormReceived, FieldNumMsg, FieldPolicy{Justify: JustifyRight, Pad: ' '}),
		WithPolicy(FormReceived, FieldForWho, FieldPolicy{Pad: 0x00}),
	)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	buf, err := c.EncodeReceived(&MessageHeader{
		NumMsg:  NewNumber(5),
		ForWho:  NewText("ALL"),
		SizeMsg: NewNumber(2),
	})
	if err != nil {
		t.Fatalf("EncodeReceived: %v", err)
	}
	if got := string(buf[116:122]); got != "000002" {
		t.Errorf("SizeMsg: got %q, want %q", got, "000002")
	}
	if got := string(buf[1:8]); got != "      5" {
		t.Errorf("NumMsg: got %q", got)
	}
	if got := buf[21:46]; !bytes.Equal(got, append([]byte("ALL"), make([]byte, 22)...)) {
		t.Errorf("ForWho: got %q", got)
	}

	h, err := c.DecodeReceived(buf)
	if err != nil {
		t.Fatalf("DecodeReceived: %v", err)
	}
	if h.ForWho.Value != "ALL" || h.SizeMsg.Value != 2 || h.NumMsg.Value != 5 {
		t.Errorf("decode with policy: got %q %d %d", h.ForWho, h.SizeMsg.Value, h.NumMsg.Value)
	}
}

func TestInvalidPolicy(t *testing.T) {
	cases := []Option{
		WithPolicy(FormReceived, FieldSizeMsg, FieldPolicy{Justify: JustifyLeft, Pad: '0'}),
		WithPolicy(FormReceived, FieldSubject, FieldPolicy{Justify: JustifyRight, Pad: ' '}),
		WithPolicy(FormReceived, FieldSubject, FieldPolicy{Justify: JustifyEither, Pad: ' '}),
		WithPolicy(FormReceived, FieldNumMsg, FieldPolicy{Justify: JustifyEither, Pad: '0'}),
		WithPolicy(FormReceived, FieldNumMsg, FieldPolicy{Justify: Justify(7), Pad: ' '}),
		WithPolicy(FormReceived, FieldConfNum, FieldPolicy{Pad: ' '}),
		WithPolicy(FormReply, FieldMsgTime, FieldPolicy{Pad: ' '}),
	}
	for i, opt := range cases {
		if _, err := NewCodec(opt); !errors.Is(err, ErrInvalidPolicy) {
			t.Errorf("case %d: expected ErrInvalidPolicy, got %v", i, err)
		}
	}
}

func TestTextCP437(t *testing.T) {
	raw := rawHeader("1", "", "", "Ren\x82", "", "", "", "", "1", 0)
	h, err := DefaultCodec.DecodeReceived(raw)
	if err != nil {
		t.Fatalf("DecodeReceived: %v", err)
	}
	if h.ForWho.Value != "René" {
		t.Errorf("ForWho: got %q, want %q", h.ForWho.Value, "René")
	}

	h.Author = NewText("Zoë")
	out, err := DefaultCodec.EncodeReceived(h)
	if err != nil {
		t.Fatalf("EncodeReceived: %v", err)
	}
	if got := out[46:49]; !bytes.Equal(got, []byte{'Z', 'o', 0x89}) {
		t.Errorf("Author bytes: got %q", got)
	}
}

func TestStatusHelpers(t *testing.T) {
	h := &MessageHeader{Status: StatusPrivateRead, Delete: DeletedFlag}
	if !h.IsPrivate() {
		t.Error("expected private")
	}
	if !h.IsDeleted() {
		t.Error("expected deleted")
	}
	h.Status, h.Delete = StatusPublicRead, ActiveFlag
	if h.IsPrivate() || h.IsDeleted() {
		t.Error("expected public, active")
	}
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("sizemsg")
	if !ok || f != FieldSizeMsg {
		t.Errorf("ParseField(sizemsg): got %v %v", f, ok)
	}
	if _, ok := ParseField("bogus"); ok {
		t.Error("ParseField(bogus) should fail")
	}
}
