package valueobject

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_PreservesOrderAndLiterals(t *testing.T) {
	// Arrange
	raw := `{"zeta":1.50,"alpha":[true,null,"x"],"mid":{"b":2,"a":1}}`

	// Act
	v, err := ParseJSON(raw)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())
	assert.Equal(t, 3, v.Len())

	keys := make([]string, 0, v.Len())
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, raw, string(out))
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "unquoted key", raw: "{a:1}"},
		{name: "truncated", raw: `{"a":`},
		{name: "trailing value", raw: `{"a":1} {}`},
		{name: "plain text", raw: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestParseJSON_DuplicateKeyLastWins(t *testing.T) {
	v, err := ParseJSON(`{"a":1,"b":2,"a":3}`)
	require.NoError(t, err)

	got, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, "3", string(mustMarshal(t, got)))
	assert.Equal(t, "a", v.Members()[0].Key)
}

func TestJSON_Indent(t *testing.T) {
	// Arrange
	v := Object(
		Member{Key: "company", Value: String("Acme <Tools> & Co")},
		Member{Key: "tags", Value: Array(String("a"), Int(2))},
		Member{Key: "empty", Value: Object()},
		Member{Key: "none", Value: Array()},
	)

	// Act
	got := v.Indent("  ")

	// Assert
	want := "{\n" +
		"  \"company\": \"Acme <Tools> & Co\",\n" +
		"  \"tags\": [\n" +
		"    \"a\",\n" +
		"    2\n" +
		"  ],\n" +
		"  \"empty\": {},\n" +
		"  \"none\": []\n" +
		"}"
	assert.Equal(t, want, got)
}

func TestJSON_UnmarshalInStruct(t *testing.T) {
	var payload struct {
		Data    JSON `json:"data"`
		Missing JSON `json:"missing"`
		Nulled  JSON `json:"nulled"`
	}

	err := json.Unmarshal([]byte(`{"data":{"k":"v"},"nulled":null}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, KindObject, payload.Data.Kind())
	assert.True(t, payload.Missing.IsUndefined())
	assert.Equal(t, KindNull, payload.Nulled.Kind())
}

func TestJSON_Any(t *testing.T) {
	v, err := ParseJSON(`{"n":10,"s":"x","list":[false]}`)
	require.NoError(t, err)

	got, ok := v.Any().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("10"), got["n"])
	assert.Equal(t, "x", got["s"])
	assert.Equal(t, []any{false}, got["list"])
}

func TestJSON_AsString(t *testing.T) {
	tests := []struct {
		name   string
		in     JSON
		want   string
		wantOK bool
	}{
		{name: "string", in: String("Jane"), want: "Jane", wantOK: true},
		{name: "undefined", in: JSON{}, want: "", wantOK: true},
		{name: "null", in: Null(), wantOK: false},
		{name: "number", in: Int(123), wantOK: false},
		{name: "object", in: Object(), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.AsString()

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func mustMarshal(t *testing.T, v JSON) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestParseJSON_DepthLimit(t *testing.T) {
	nested := func(depth int) string {
		return `{"a":` + strings.Repeat("[", depth-1) + strings.Repeat("]", depth-1) + `}`
	}

	t.Run("at limit", func(t *testing.T) {
		v, err := ParseJSON(nested(MaxDepth))

		require.NoError(t, err)
		assert.Equal(t, KindObject, v.Kind())
	})

	t.Run("one past limit", func(t *testing.T) {
		_, err := ParseJSON(nested(MaxDepth + 1))

		assert.ErrorIs(t, err, ErrTooDeep)
	})

	t.Run("far past limit fails fast", func(t *testing.T) {
		_, err := ParseJSON(nested(200000))

		assert.ErrorIs(t, err, ErrTooDeep)
	})

	t.Run("unmarshal into field", func(t *testing.T) {
		var dst struct {
			Data JSON `json:"data"`
		}

		err := json.Unmarshal([]byte(`{"data":`+nested(MaxDepth+1)+`}`), &dst)

		assert.ErrorIs(t, err, ErrTooDeep)
	})
}
