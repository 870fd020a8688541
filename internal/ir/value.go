package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the value kinds a program may commit
// or a variant may carry. Floats are not representable.
type IRValue interface {
	irValue()
}

// IRNull represents JSON null. It is accepted when decoding but rejected by
// MarshalCanonical.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values. Use SortedKeys for deterministic
// iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// Ints builds an IRArray of IRInt from native integers. Programs use it to
// turn their commit stream into values.
func Ints(vals ...int64) IRArray {
	arr := make(IRArray, len(vals))
	for i, v := range vals {
		arr[i] = IRInt(v)
	}
	return arr
}

// TypeClass names the kind of v. Two commits are only equal when their
// type classes match.
func TypeClass(v IRValue) string {
	switch v.(type) {
	case IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt:
		return "int"
	case IRBool:
		return "bool"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	default:
		return "unknown"
	}
}

// FormatValue renders v for human-readable divergence reasons.
func FormatValue(v IRValue) string {
	switch val := v.(type) {
	case IRString:
		return fmt.Sprintf("%q", string(val))
	case IRInt:
		return fmt.Sprintf("%d", int64(val))
	case IRBool:
		return fmt.Sprintf("%t", bool(val))
	case IRNull, nil:
		return "null"
	default:
		b, err := MarshalCanonical(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units, not UTF-8
// bytes).
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// UnmarshalJSON decodes a JSON object into IR values. Numbers must be
// integers.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IRObject, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = val
	}
	*obj = out
	return nil
}

// UnmarshalJSON decodes a JSON array into IR values.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IRArray, len(raw))
	for i, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = val
	}
	*arr = out
	return nil
}

// UnmarshalValue decodes a single JSON value. Floats and integers outside
// int64 are rejected.
func UnmarshalValue(data []byte) (IRValue, error) {
	trimmed := skipSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case 'n':
		return IRNull{}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, err
		}
		return IRBool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return IRString(s), nil
	case '[':
		var arr IRArray
		if err := arr.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		var obj IRObject
		if err := obj.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		return obj, nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("not an integer: %s", n)
		}
		return IRInt(i), nil
	}
}

func skipSpace(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\n' || b[0] == '\r') {
		b = b[1:]
	}
	return b
}
