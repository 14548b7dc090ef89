package cas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowMs(t *testing.T) {
	// 2024-01-01 in milliseconds.
	assert.Greater(t, NowMs(), int64(1704067200000))
}

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"z": 1, "a": 2, "m": 3}, `{"a":2,"m":3,"z":1}`},
		{"nested", map[string]any{"z": map[string]any{"b": 1, "a": 2}, "a": 3}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"array order kept", []any{map[string]any{"z": 1, "a": 2}, "x"}, `[{"a":2,"z":1},"x"]`},
		{"struct tags", struct {
			Name string   `json:"name"`
			Deps []string `json:"deps"`
		}{"App", []string{"Lib"}}, `{"deps":["Lib"],"name":"App"}`},
		{"large integer", map[string]any{"n": int64(1 << 60)}, `{"n":1152921504606846976}`},
		{"escaping", map[string]any{"k": "a\"b<"}, `{"k":"a\"b\u003c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestID(t *testing.T) {
	a, err := ID("run", map[string]any{"x": 1, "y": []string{"a"}})
	require.NoError(t, err)
	b, err := ID("run", map[string]any{"y": []string{"a"}, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not change the id")
	assert.Len(t, a, 64)

	c, err := ID("other", map[string]any{"x": 1, "y": []string{"a"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "kind is part of the id")

	_, err = ID("run", func() {})
	assert.Error(t, err)
}

func TestSum_Known(t *testing.T) {
	// BLAKE3 of the empty input.
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", Sum(nil))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "0123456789ab", Short("0123456789abcdef"))
}
