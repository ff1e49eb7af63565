package ir

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	huge, _ := new(big.Int).SetString("18446744073709551616", 10)

	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"int", Int(42), "i42"},
		{"negative int", Int(-100), "i-100"},
		{"bigint", BigInt{V: huge}, "i18446744073709551616"},
		{"string", String("hello"), `s"hello"`},
		{"empty string", String(""), `s""`},
		{"timestamp", Timestamp{Sec: 1, Nsec: 2}, "t1,2"},
		{"ref", Ref(7), "r7"},
		{"opaque", Opaque{Raw: []byte{0x41, 0x61}}, "o4161"},
		{"empty array", Array{}, "[]"},
		{"empty map", Map{}, "{}"},
		{"array of ints", Array{Int(1), Int(2), Int(3)}, "[i1,i2,i3]"},
		{"map keeps order", Map{P(String("b"), Int(1)), P(String("a"), Int(2))}, `{s"b":i1,s"a":i2}`},
		{"definition", Definition{ID: 3, Value: Array{}}, "d3=[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalDistinguishesVariants(t *testing.T) {
	values := []Value{
		Int(1),
		Float(1),
		String("1"),
		Bool(true),
		Ref(1),
		Array{Int(1)},
	}

	seen := make(map[string]Value)
	for _, v := range values {
		key, err := MarshalCanonical(v)
		require.NoError(t, err)
		prev, dup := seen[string(key)]
		assert.False(t, dup, "%#v collides with %#v", v, prev)
		seen[string(key)] = v
	}
}

func TestMarshalCanonicalFloatZero(t *testing.T) {
	pos, err := MarshalCanonical(Float(0))
	require.NoError(t, err)
	neg, err := MarshalCanonical(Float(math.Copysign(0, -1)))
	require.NoError(t, err)

	assert.Equal(t, string(pos), string(neg))
}

func TestMarshalCanonicalStructuralEquality(t *testing.T) {
	a := Array{String("x"), Map{P(Int(1), Null{})}}
	b := Array{String("x"), Map{P(Int(1), Null{})}}

	ka, err := MarshalCanonical(a)
	require.NoError(t, err)
	kb, err := MarshalCanonical(b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(Array{nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[0]")
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "hello", `"hello"`},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"unicode literal", "héllo ☃", `"héllo ☃"`},
		{"newline escaped", "a\nb", `"a\nb"`},
		{"quote escaped", `say "hi"`, `"say \"hi\""`},
		{"backslash escaped", `a\b`, `"a\\b"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator literal", "a\u2029b", "\"a\u2029b\""},
		{"escaped text kept", `\u2028`, `"\\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteString(tt.input))
		})
	}
}
