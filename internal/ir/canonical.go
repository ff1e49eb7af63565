package ir

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MarshalCanonical produces the structural identity of a value.
// Two values compare equal as mapping keys iff their canonical forms are
// byte-identical.
//
// The form is compact and self-delimiting:
//  1. Every scalar carries a one-letter variant prefix, so Int(1),
//     Float(1) and String("1") never collide
//  2. Strings are JSON quoted without HTML escaping
//  3. Map pairs keep wire order (payload maps are ordered)
//  4. Floats compare by bit pattern, with -0 folded into +0
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("nil value has no canonical form")
	case Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case BigInt:
		if val.V == nil {
			return fmt.Errorf("bigint without magnitude")
		}
		buf.WriteByte('i')
		buf.WriteString(val.V.String())
	case Float:
		f := float64(val)
		if f == 0 {
			f = 0
		}
		buf.WriteByte('f')
		buf.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
	case String:
		buf.WriteByte('s')
		buf.WriteString(QuoteString(string(val)))
	case Opaque:
		buf.WriteByte('o')
		buf.WriteString(hex.EncodeToString(val.Raw))
	case Timestamp:
		fmt.Fprintf(buf, "t%d,%d", val.Sec, val.Nsec)
	case Ref:
		buf.WriteByte('r')
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Definition:
		buf.WriteByte('d')
		buf.WriteString(strconv.FormatInt(int64(val.ID), 10))
		buf.WriteByte('=')
		if err := writeCanonical(buf, val.Value); err != nil {
			return fmt.Errorf("definition %d: %w", val.ID, err)
		}
	case Shareable:
		fmt.Fprintf(buf, "h%d=", val.Index)
		if err := writeCanonical(buf, val.Value); err != nil {
			return fmt.Errorf("shareable %d: %w", val.Index, err)
		}
	case SharedRef:
		buf.WriteByte('x')
		buf.WriteString(strconv.Itoa(int(val)))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, p := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, p.Key); err != nil {
				return fmt.Errorf("map key %d: %w", i, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, p.Value); err != nil {
				return fmt.Errorf("map value %d: %w", i, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical form: %T", v)
	}
	return nil
}

// QuoteString renders s as a JSON string literal.
//
// Only control characters (U+0000-U+001F), backslash and quote are escaped.
// <, >, & and U+2028/U+2029 are written literally; non-ASCII text is never
// turned into \u escapes.
func QuoteString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)

	// json.Encoder adds trailing newline, remove it
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return string(unescapeLineSeparators(out))
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes that
// encoding/json always emits back into literal characters. A sequence
// preceded by an odd run of backslashes is literal text and is kept.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	backslashes := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\\' && backslashes%2 == 0 && i+5 < len(data) &&
			data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			backslashes = 0
			continue
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		out = append(out, c)
	}
	return out
}
