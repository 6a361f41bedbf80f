package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"cell-annotator/internal/errs"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is an attribute value: a string, a number or a boolean.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
	// raw keeps the literal of a number read from a document so it is
	// written back unchanged.
	raw string
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, n: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts a Go value into an attribute Value. Strings, booleans,
// json.Number and the built-in numeric types are accepted; anything else
// fails with ErrFormat.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Value{}, fmt.Errorf("%w: non-finite attribute value", errs.ErrFormat)
		}
		return Number(v), nil
	case float32:
		return ValueOf(float64(v))
	case int:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Value{kind: KindNumber, n: float64(v), raw: strconv.FormatInt(v, 10)}, nil
	case uint32:
		return Number(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: attribute number %q: %v", errs.ErrFormat, v, err)
		}
		return Value{kind: KindNumber, n: f, raw: v.String()}, nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported attribute type %T", errs.ErrFormat, x)
	}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Num returns the number held by v.
func (v Value) Num() (float64, bool) { return v.n, v.kind == KindNumber }

// Boolean returns the boolean held by v.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns v as a plain Go value, or nil for the zero Value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	}
	return nil
}

// Equal compares kind and payload; number literals are ignored.
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && v.s == other.s && v.n == other.n && v.b == other.b
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		if v.raw != "" {
			return v.raw
		}
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindNumber:
		if v.raw != "" {
			return []byte(v.raw), nil
		}
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	}
	return nil, fmt.Errorf("%w: cannot encode invalid attribute value", errs.ErrFormat)
}

// UnmarshalJSON implements json.Unmarshaler. Null, arrays and objects fail
// with ErrFormat.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return fmt.Errorf("%w: attribute value: %v", errs.ErrFormat, err)
	}
	val, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Attributes is the free-form tag bag of an entity.
type Attributes map[string]Value

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
