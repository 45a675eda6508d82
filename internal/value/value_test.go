package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Value
	}{
		{"integer", "42", Number(42)},
		{"negative", "-7", Number(-7)},
		{"decimal", "3.25", Number(3.25)},
		{"trailing letter stays text", "42a", String("42a")},
		{"leading space stays text", " 42", String(" 42")},
		{"plain text", "oak veneer", String("oak veneer")},
		{"empty is null", "", Null()},
		{"lone minus stays text", "-", String("-")},
		{"double dot stays text", "1.2.3", String("1.2.3")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.text))
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numeric vs numeric text", Number(44), String("44"), true},
		{"numeric mismatch", Number(44), String("45"), false},
		{"case-insensitive strings", String("FD30"), String("fd30"), true},
		{"null equals null", Null(), Null(), true},
		{"null equals empty string", Null(), String(""), true},
		{"null not equal to zero text", Null(), String("x"), false},
		{"bool reads numerically", Bool(true), Number(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "44", Number(44).String())
	assert.Equal(t, "3.5", Number(3.5).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "ash", String("ash").String())
}

func TestJSONRoundTrip(t *testing.T) {
	for _, v := range []Value{Null(), Number(12.5), String("FD30"), Bool(false)} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		var back Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, v.ToAny(), back.ToAny())
	}

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v), "objects are not cell values")
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &v), "arrays are not cell values")
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, String("").IsEmpty())
	assert.True(t, String("   ").IsEmpty())
	assert.False(t, Number(0).IsEmpty())
	assert.False(t, String("0").IsEmpty())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Null().Truthy())
	assert.False(t, Number(0).Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, Number(-1).Truthy())
	assert.True(t, String("no").Truthy())
	assert.True(t, Bool(true).Truthy())
}
