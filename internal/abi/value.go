package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is the sealed set of types allowed inside hashed records
// (commit bodies, state snapshots). Only Str, Int, Bool, Arr, and Obj
// implement it. There is deliberately no float and no null: both have
// multiple serialized spellings and would break the rule that equal
// state produces equal bytes.
type Value interface {
	abiValue()
}

// Str is a string value.
type Str string

func (Str) abiValue() {}

// Int is an integer value, always int64 on the wire.
type Int int64

func (Int) abiValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) abiValue() {}

// Arr is an ordered sequence of values.
type Arr []Value

func (Arr) abiValue() {}

// Obj is a string-keyed map of values. Iterate with SortedKeys for
// deterministic order.
type Obj map[string]Value

func (Obj) abiValue() {}

// U64 wraps a uint64 id for use in an Obj. Identifiers in this kernel
// stay far below 2^63, so the int64 carrier is lossless in practice;
// the check is kept anyway because a silent wrap would corrupt hashes.
func U64(v uint64) Int {
	if v > 1<<62 {
		panic(fmt.Sprintf("abi: id %d out of canonical integer range", v))
	}
	return Int(int64(v))
}

// SortedKeys returns the object's keys ordered by UTF-16 code units as
// RFC 8785 requires. Plain sort.Strings compares UTF-8 bytes, which
// orders supplementary-plane characters differently.
func (o Obj) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := len(a16)
	if len(b16) < n {
		n = len(b16)
	}
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// ValueFromJSON parses JSON into a Value, rejecting floats and null at
// any depth. This is the entry point for data arriving from scenario
// files and stored commit bodies.
func ValueFromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ValueFromGo(raw)
}

// ValueFromGo converts a decoded Go value (string, bool, integral
// json.Number, int variants, []any, map[string]any, or an existing
// Value) into a Value. Floats and nil are rejected.
func ValueFromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical values")
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return U64(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in canonical values: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		arr := make(Arr, len(val))
		for i, elem := range val {
			conv, err := ValueFromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Obj, len(val))
		for k, elem := range val {
			conv, err := ValueFromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical value: %T", v)
	}
}
