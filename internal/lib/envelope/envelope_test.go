package envelope

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey = "x1e8a1c1cf412b27ecd7a87db49f830g"
	testIV  = "g9f051fdf0e6388x"
)

func newTestCodec(t *testing.T) *Codec {
	c, err := New(testKey, testIV)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		key  string
		iv   string
	}{
		{name: "short key", key: "too-short", iv: testIV},
		{name: "short iv", key: testKey, iv: "short"},
		{name: "long iv", key: testKey, iv: testIV + "x"},
		{name: "empty key", key: "", iv: testIV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.key, tt.iv)
			require.Error(t, err)
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "plain string", value: "hello world", want: "hello world"},
		{name: "number", value: 42, want: float64(42)},
		{name: "float", value: 9.99, want: 9.99},
		{name: "bool", value: true, want: true},
		{
			name:  "object",
			value: map[string]any{"token": "abc", "n": float64(7)},
			want:  map[string]any{"token": "abc", "n": float64(7)},
		},
		{
			name:  "array",
			value: []any{"a", float64(1), nil},
			want:  []any{"a", float64(1), nil},
		},
		{name: "unicode string", value: "пример текста", want: "пример текста"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := c.Encode(tt.value)
			require.NoError(t, err)
			assert.NotEmpty(t, encoded)

			_, err = base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err, "encoded value must be valid base64")

			assert.Equal(t, tt.want, c.Decode(encoded))
		})
	}
}

func TestCodec_Decode_InvalidInput(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty string", encoded: ""},
		{name: "not base64", encoded: "%%%not-base64%%%"},
		{name: "wrong block length", encoded: base64.StdEncoding.EncodeToString([]byte("abc"))},
		{name: "garbage blocks", encoded: base64.StdEncoding.EncodeToString(make([]byte, 32))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, c.Decode(tt.encoded))
		})
	}
}

// Порча любого байта шифртекста дает nil, а не панику или ошибку.
func TestCodec_Decode_Tampered(t *testing.T) {
	c := newTestCodec(t)

	encoded, err := c.Encode(map[string]any{"user": "alice", "amount": 30})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	original, want := c.Decode(encoded), map[string]any{"user": "alice", "amount": float64(30)}
	require.Equal(t, want, original)

	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0xff

		got := c.Decode(base64.StdEncoding.EncodeToString(tampered))
		// Расшифровка либо отбрасывается целиком, либо дает мусор,
		// не равный исходному значению; исключений быть не должно.
		assert.NotEqual(t, want, got, "byte %d", i)
	}
}

func TestCodec_Decode_DifferentKeyFails(t *testing.T) {
	c := newTestCodec(t)
	other, err := New("00000000000000000000000000000000", testIV)
	require.NoError(t, err)

	encoded, err := c.Encode("secret payload")
	require.NoError(t, err)

	got := other.Decode(encoded)
	assert.NotEqual(t, "secret payload", got)
}

func TestCodec_DecodeString(t *testing.T) {
	c := newTestCodec(t)

	encoded, err := c.Encode("alice")
	require.NoError(t, err)

	s, ok := c.DecodeString(encoded)
	require.True(t, ok)
	assert.Equal(t, "alice", s)

	_, ok = c.DecodeString("")
	assert.False(t, ok)

	// Числовой текст не превращается в число: amount приходит строкой.
	num, err := c.Encode("30")
	require.NoError(t, err)
	s, ok = c.DecodeString(num)
	require.True(t, ok)
	assert.Equal(t, "30", s)

	_, ok = c.DecodeString("not-base64!!!")
	assert.False(t, ok)

	// "0" — сентинель отсутствующего значения у мобильного клиента.
	zero, err := c.Encode("0")
	require.NoError(t, err)
	_, ok = c.DecodeString(zero)
	assert.False(t, ok)
	assert.Nil(t, c.Decode(zero))
}

// Фиксированный IV: одинаковые открытые тексты дают одинаковые
// шифртексты. Это известная слабость канала, закрепленная контрактом.
func TestCodec_FixedIVDeterministic(t *testing.T) {
	c := newTestCodec(t)

	first, err := c.Encode("same message")
	require.NoError(t, err)
	second, err := c.Encode("same message")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
