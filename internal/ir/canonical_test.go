package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"bool true", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"array of ints", IRArray{IRInt(1), IRInt(2), IRInt(3)}, "[1,2,3]"},
		{"nested object", IRObject{"z": IRObject{"b": IRInt(1), "a": IRInt(2)}, "a": IRInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000 - UTF-16 order differs from UTF-8
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2), // UTF-16: 0xD800, 0xDC00
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRObject{"html": IRString("<b>a & b</b>")})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>a & b</b>"}`, string(result))
}

func TestMarshalCanonicalRejectsFloats(t *testing.T) {
	for _, input := range []any{float64(3.14), float32(3.14)} {
		_, err := MarshalCanonical(input)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "float")
	}
}

func TestMarshalCanonicalRejectsUntypedNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	a, err := MarshalCanonical(IRObject{composed: IRString(composed)})
	require.NoError(t, err)
	b, err := MarshalCanonical(IRObject{decomposed: IRString(decomposed)})
	require.NoError(t, err)

	assert.Equal(t, a, b, "NFC normalization should make keys and values equal")
}

func TestMarshalCanonicalMergeables(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"grow set sorted and deduplicated", NewGrowSet(IRInt(3), IRInt(1), IRInt(3)), `{"$grow_set":[1,3]}`},
		{"grow array keeps duplicates", NewGrowArray(IRString("b"), IRString("a"), IRString("b")), `{"$grow_array":["a","b","b"]}`},
		{"grow map", GrowMap{"k": IRInt(1)}, `{"$grow_map":{"k":1}}`},
		{"shrink set", NewShrinkSet(IRInt(2), IRInt(1)), `{"$shrink_set":[1,2]}`},
		{"shrink array", NewShrinkArray(IRInt(1)), `{"$shrink_array":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalIdempotency(t *testing.T) {
	testCases := []IRValue{
		IRString("hello"),
		IRArray{IRInt(1), IRString("two"), IRBool(false), IRNull{}},
		IRObject{"nested": IRObject{"array": IRArray{IRInt(1), IRInt(2)}}, "simple": IRString("value")},
		NewGrowSet(IRString("x"), IRString("y")),
		IRObject{"candidates": NewShrinkSet(IRInt(1), IRInt(2))},
	}

	for _, original := range testCases {
		canonical1, err := MarshalCanonical(original)
		require.NoError(t, err)

		val, err := UnmarshalIRValue(canonical1)
		require.NoError(t, err)

		canonical2, err := MarshalCanonical(val)
		require.NoError(t, err)

		assert.Equal(t, canonical1, canonical2, "canonical marshaling must be idempotent")
	}
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"U+2028 not escaped", "a\u2028b", "\"a\u2028b\""},
		{"literal backslash-u2028 text", `seq \u2028`, `"seq \\u2028"`},
		{"mixed literal and actual", "lit \\u2029 and \u2029", "\"lit \\\\u2029 and \u2029\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}
