package courier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which scalar a Value holds.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindFloat
	KindString
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return "invalid"
	}
}

// Value is a preference value: exactly one of bool, float, string or int.
// The zero Value is invalid.
//
// Values encode to JSON as bare scalars so that preference maps travel over
// the wire as {"autoAnswerEnabled": true, "wakeWordSensitivity": 0.7}.
type Value struct {
	kind Kind
	b    bool
	f    float64
	s    string
	i    int64
}

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// FloatValue returns a Value holding f.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue returns a Value holding s.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue returns a Value holding i.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a scalar.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// Equal reports whether two values have the same kind and scalar.
func (v Value) Equal(o Value) bool { return v == o }

// String renders the scalar the way it appears on the command line.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	default:
		return "<invalid>"
	}
}

// Interface returns the scalar as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindInt:
		return v.i
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, fmt.Errorf("marshal invalid preference value")
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a bare JSON scalar. Numbers without a fraction or
// exponent decode as KindInt, all other numbers as KindFloat. A JSON null
// decodes as the invalid Value, which Normalize rejects.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded scalar into a Value. It accepts the types
// produced by encoding/json and the Go numeric types.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case Value:
		return x, nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case float64:
		return FloatValue(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("preference value %q: %w", x.String(), err)
		}
		return FloatValue(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported preference value type %T", raw)
	}
}

// ParseValue interprets text as a value of the given kind.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return BoolValue(b), nil
	case KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse float %q: %w", text, err)
		}
		return FloatValue(f), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", text, err)
		}
		return IntValue(i), nil
	case KindString:
		return StringValue(text), nil
	default:
		return Value{}, fmt.Errorf("parse value: unsupported kind %s", kind)
	}
}

// coerce converts numeric values between int and float when the target
// kind requires it. Ints widen to floats; floats narrow to ints only when
// they carry no fraction.
func coerce(v Value, target Kind) (Value, bool) {
	if v.kind == target {
		return v, true
	}
	switch {
	case target == KindFloat && v.kind == KindInt:
		return FloatValue(float64(v.i)), true
	case target == KindInt && v.kind == KindFloat:
		if v.f != math.Trunc(v.f) || math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return Value{}, false
		}
		return IntValue(int64(v.f)), true
	}
	return Value{}, false
}

// text renders the scalar without quoting, for storage alongside its kind.
func (v Value) text() string {
	if v.kind == KindString {
		return v.s
	}
	return v.String()
}

// parseKind is the inverse of Kind.String.
func parseKind(name string) (Kind, error) {
	switch name {
	case "bool":
		return KindBool, nil
	case "float":
		return KindFloat, nil
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	default:
		return KindInvalid, fmt.Errorf("unknown value kind %q", name)
	}
}
