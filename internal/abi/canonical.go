package abi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical serializes a Value to RFC 8785 canonical JSON. This
// is the only serialization used for hashing: object keys sorted by
// UTF-16 code units, strings NFC-normalized, no HTML escaping, U+2028
// and U+2029 left literal, no floats, no null. Two Values that compare
// equal always produce identical bytes.
func MarshalCanonical(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case Str:
		return canonicalString(string(val))
	case Int:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Arr:
		return canonicalArray(val)
	case Obj:
		return canonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported canonical type: %T", v)
	}
}

// MustMarshalCanonical is MarshalCanonical for values built from typed
// constructors, where an encoding error is a programming bug.
func MustMarshalCanonical(v Value) []byte {
	data, err := MarshalCanonical(v)
	if err != nil {
		panic(fmt.Sprintf("abi: canonical marshal: %v", err))
	}
	return data
}

// canonicalString encodes one JSON string with NFC normalization at the
// serialization boundary. Only control characters, backslash, and quote
// are escaped; '<', '>', '&', U+2028, and U+2029 stay literal.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}

	// encoding/json escapes U+2028/U+2029 for JavaScript embedding;
	// canonical JSON requires them literal.
	return unescapeLineSeps(out), nil
}

// unescapeLineSeps rewrites \u2028 and \u2029 escapes back to literal
// characters. A sequence preceded by an odd run of backslashes is a
// literal backslash followed by the text "u2028" and must stay escaped.
func unescapeLineSeps(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	run := 0 // consecutive backslashes already copied
	for i := 0; i < len(data); {
		c := data[i]
		if c == '\\' && run%2 == 0 && i+6 <= len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' &&
			data[i+4] == '2' && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 6
			run = 0
			continue
		}
		if c == '\\' {
			run++
		} else {
			run = 0
		}
		out = append(out, c)
		i++
	}
	return out
}

func canonicalArray(arr Arr) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func canonicalObject(obj Obj) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := canonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
