package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/roc-host/roc"
	"github.com/wippyai/roc-host/runtime"
)

func testSig(t *testing.T, types ...string) *runtime.Signature {
	t.Helper()
	sig := &runtime.Signature{Name: "f"}
	for i, name := range types {
		d, err := roc.Lookup(name)
		require.NoError(t, err)
		sig.Params = append(sig.Params, runtime.Param{Type: d, Name: string(rune('a' + i))})
	}
	return sig
}

func TestParseArgs(t *testing.T) {
	sig := testSig(t, "Str", "List I64", "U8")

	args, err := parseArgs(sig, `["hi", [1, -2], 7]`, nil)
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, "hi", args[0])
	assert.Equal(t, uint64(7), args[2])

	_, err = parseArgs(sig, `["hi"]`, nil)
	assert.ErrorContains(t, err, "takes 3 arguments")

	_, err = parseArgs(sig, `{"a": 1}`, nil)
	assert.ErrorContains(t, err, "JSON array")

	_, err = parseArgs(sig, `["hi", [1, "x"], 3]`, nil)
	assert.ErrorContains(t, err, "argument b")

	none, err := parseArgs(testSig(t), "", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseField(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		text string
		want any
	}{
		{"raw text", "Str", "hello world", "hello world"},
		{"quoted text", "Str", `"a\nb"`, "a\nb"},
		{"number", "I32", " -5 ", int64(-5)},
		{"bool", "Bool", "true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseField(roc.MustLookup(tt.typ), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseField(roc.MustLookup("List U8"), "[1, 2")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestSplitTypeAndJSON(t *testing.T) {
	typ, raw, err := splitTypeAndJSON(`List (List U8) [[1], []]`)
	require.NoError(t, err)
	assert.Equal(t, "List (List U8)", typ)
	assert.Equal(t, "[[1], []]", raw)

	typ, raw, err = splitTypeAndJSON(`Str "hi there"`)
	require.NoError(t, err)
	assert.Equal(t, "Str", typ)
	assert.Equal(t, `"hi there"`, raw)

	_, _, err = splitTypeAndJSON("Str")
	assert.Error(t, err)
}
