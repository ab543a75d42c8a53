package qwk

import "fmt"

// Form selects one of the two header layouts.
type Form int

const (
	FormReceived Form = iota // messages.dat
	FormReply                // BBSID.MSG
)

func (f Form) String() string {
	if f == FormReply {
		return "reply"
	}
	return "received"
}

// Fields that carry a pad policy in each form.
var (
	receivedNumeric = []Field{FieldNumMsg, FieldRefMsg, FieldSizeMsg}
	receivedText    = []Field{FieldMsgDate, FieldMsgTime, FieldForWho, FieldAuthor, FieldSubject, FieldPassWord}
	replyNumeric    = []Field{FieldConfNum, FieldRefMsg, FieldSizeMsg}
	replyText       = []Field{FieldDateTime, FieldForWho, FieldAuthor, FieldSubject, FieldPassWord}
)

// Codec encodes and decodes received and reply headers using per-field pad
// and justify policies. Producers were never consistent about how numeric
// fields are padded, so each field of each form can be configured on its own.
type Codec struct {
	received map[Field]FieldPolicy
	reply    map[Field]FieldPolicy
}

// Option configures a Codec.
type Option func(*Codec) error

// DefaultCodec uses the Qmail conventions: numbers left-justified and
// space-padded, text space-padded.
var DefaultCodec = mustCodec()

func mustCodec() *Codec {
	c, err := NewCodec()
	if err != nil {
		panic(err)
	}
	return c
}

// NewCodec creates a Codec with the default policies, then applies opts.
func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{
		received: make(map[Field]FieldPolicy),
		reply:    make(map[Field]FieldPolicy),
	}
	def := FieldPolicy{Justify: JustifyLeft, Pad: ' '}
	for _, f := range append(receivedNumeric, receivedText...) {
		c.received[f] = def
	}
	for _, f := range append(replyNumeric, replyText...) {
		c.reply[f] = def
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithPolicy overrides the policy of a single field in one form.
// Only right-justified numbers may use a digit as pad byte: trailing
// padding would change the value.
func WithPolicy(form Form, f Field, p FieldPolicy) Option {
	return func(c *Codec) error {
		m := c.policies(form)
		if _, ok := m[f]; !ok {
			return fmt.Errorf("%w: %s has no field %s", ErrInvalidPolicy, form, f)
		}
		if p.Justify < JustifyLeft || p.Justify > JustifyEither {
			return fmt.Errorf("%w: %s.%s: %s", ErrInvalidPolicy, form, f, p.Justify)
		}
		if isNumeric(form, f) && p.Justify != JustifyRight && p.Pad >= '0' && p.Pad <= '9' {
			return fmt.Errorf("%w: %s.%s %s-justified with digit pad %q", ErrInvalidPolicy, form, f, p.Justify, p.Pad)
		}
		if !isNumeric(form, f) && p.Justify != JustifyLeft {
			return fmt.Errorf("%w: %s.%s is a text field and is always left-justified", ErrInvalidPolicy, form, f)
		}
		m[f] = p
		return nil
	}
}

// Policy returns the policy in effect for a field.
func (c *Codec) Policy(form Form, f Field) (FieldPolicy, bool) {
	p, ok := c.policies(form)[f]
	return p, ok
}

func (c *Codec) policies(form Form) map[Field]FieldPolicy {
	if form == FormReply {
		return c.reply
	}
	return c.received
}

func isNumeric(form Form, f Field) bool {
	list := receivedNumeric
	if form == FormReply {
		list = replyNumeric
	}
	for _, n := range list {
		if n == f {
			return true
		}
	}
	return false
}
