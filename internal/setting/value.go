package setting

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind discriminates the variants a Value can hold.
type Kind uint8

// Value kinds. KindNone is the zero Value, returned for absent keys.
const (
	KindNone Kind = iota
	KindInteger
	KindFloat
	KindString
	KindOneShot
)

// Wire tags for each kind.
const (
	tagInteger = "int"
	tagFloat   = "float"
	tagString  = "string"
	tagOneShot = "one_shot"
)

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return tagInteger
	case KindFloat:
		return tagFloat
	case KindString:
		return tagString
	case KindOneShot:
		return tagOneShot
	default:
		return "none"
	}
}

// ParseKind converts a wire tag back to a Kind.
// It returns KindNone and false for unknown tags.
func ParseKind(tag string) (Kind, bool) {
	switch tag {
	case tagInteger:
		return KindInteger, true
	case tagFloat:
		return KindFloat, true
	case tagString:
		return KindString, true
	case tagOneShot:
		return KindOneShot, true
	default:
		return KindNone, false
	}
}

// Value is an immutable setting value: an integer, a float, a string or a
// one-shot marker. Only the field matching kind is meaningful.
//
// Typed accessors never fail. Asking for the wrong type returns that
// accessor's zero value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// IntegerValue returns a Value holding v.
func IntegerValue(v int64) Value { return Value{kind: KindInteger, i: v} }

// FloatValue returns a Value holding v.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue returns a Value holding v.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// OneShotValue returns the payload-free marker for a momentary action.
func OneShotValue() Value { return Value{kind: KindOneShot} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Integer returns the integer payload, or 0 if v is not an integer.
func (v Value) Integer() int64 {
	if v.kind != KindInteger {
		return 0
	}
	return v.i
}

// Float returns the float payload, or 0.0 if v is not a float.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		return 0
	}
	return v.f
}

// Text returns the string payload, or "" if v is not a string.
func (v Value) Text() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Equal reports whether v and o hold the same variant and payload.
// Floats compare by bit pattern so NaN equals itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindString:
		return v.s == o.s
	default:
		return true
	}
}

// String formats v for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindOneShot:
		return "<one-shot>"
	default:
		return "<none>"
	}
}

// EncodeMsgpack writes v as the two-element array [tag, payload].
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if v.kind == KindNone || v.kind > KindOneShot {
		return fmt.Errorf("%w: %d", ErrInvalidValue, v.kind)
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString(v.kind.String()); err != nil {
		return err
	}
	switch v.kind {
	case KindInteger:
		return enc.EncodeInt(v.i)
	case KindFloat:
		return enc.EncodeFloat64(v.f)
	case KindString:
		return enc.EncodeString(v.s)
	default:
		return enc.EncodeNil()
	}
}

// DecodeMsgpack reads a value written by EncodeMsgpack.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("%w: value has %d elements, want 2", ErrMalformedSnapshot, n)
	}
	tag, err := dec.DecodeString()
	if err != nil {
		return err
	}
	kind, ok := ParseKind(tag)
	if !ok {
		return fmt.Errorf("%w: unknown value tag %q", ErrMalformedSnapshot, tag)
	}

	switch kind {
	case KindInteger:
		i, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		*v = IntegerValue(i)
	case KindFloat:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = FloatValue(f)
	case KindString:
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*v = StringValue(s)
	default:
		if err := dec.DecodeNil(); err != nil {
			return err
		}
		*v = OneShotValue()
	}
	return nil
}

// valueJSON is the JSON shape of a Value used by the HTTP API.
type valueJSON struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
}

// MarshalJSON renders v as {"kind": tag, "value": payload}. Non-finite
// floats are rendered as the strings "NaN", "+Inf" and "-Inf".
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.kind.String()}
	switch v.kind {
	case KindInteger:
		out.Value = v.i
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			out.Value = strconv.FormatFloat(v.f, 'g', -1, 64)
		} else {
			out.Value = v.f
		}
	case KindString:
		out.Value = v.s
	}
	return json.Marshal(out)
}
