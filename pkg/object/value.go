package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the value variants a record attribute may hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
)

var kindNames = [...]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindBytes:  "bytes",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is an opaque attribute value. The engine only needs equality and a
// canonical encoding; semantic types such as geometries travel as Bytes or
// String payloads.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: bytes.Clone(b)} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) AsBool() bool { return v.b }
func (v Value) AsInt() int64 { return v.i }
func (v Value) AsFloat() float64 { return v.f }
func (v Value) AsString() string { return v.s }
func (v Value) AsBytes() []byte { return bytes.Clone(v.raw) }

// Equal reports whether two values have the same kind and payload. Floats
// compare by bit pattern so that equality agrees with the encoding.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return false
	}
}

// String renders the canonical single-line encoding, e.g. `int 42` or
// `string "a b"`.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return "bool " + strconv.FormatBool(v.b)
	case KindInt:
		return "int " + strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "float " + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return "string " + strconv.Quote(v.s)
	case KindBytes:
		return "bytes " + hex.EncodeToString(v.raw)
	default:
		return "null"
	}
}

// MarshalText implements encoding.TextMarshaler with the canonical encoding.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Value) UnmarshalText(text []byte) error {
	parsed, err := ParseValue(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes the canonical encoding produced by Value.String.
func ParseValue(s string) (Value, error) {
	kind, payload, _ := strings.Cut(s, " ")
	switch kind {
	case "null":
		return Null(), nil
	case "bool":
		b, err := strconv.ParseBool(payload)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bool value %q", ErrMalformed, payload)
		}
		return Bool(b), nil
	case "int":
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: int value %q", ErrMalformed, payload)
		}
		return Int(i), nil
	case "float":
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: float value %q", ErrMalformed, payload)
		}
		return Float(f), nil
	case "string":
		str, err := strconv.Unquote(payload)
		if err != nil {
			return Value{}, fmt.Errorf("%w: string value %s", ErrMalformed, payload)
		}
		return String(str), nil
	case "bytes":
		raw, err := hex.DecodeString(payload)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bytes value %q", ErrMalformed, payload)
		}
		return Value{kind: KindBytes, raw: raw}, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown value kind %q", ErrMalformed, kind)
	}
}
