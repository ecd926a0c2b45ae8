package addrcodec

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bech32Addr(t *testing.T, prefix string, payload []byte) string {
	t.Helper()
	words, err := bech32.ConvertBits(payload, 8, 5, true)
	require.NoError(t, err)
	addr, err := bech32.Encode(prefix, words)
	require.NoError(t, err)
	return addr
}

func TestEncodeRecipient(t *testing.T) {
	t.Run("hex address is left padded", func(t *testing.T) {
		out, err := EncodeRecipient("0x1111111111111111111111111111111111111111")
		require.NoError(t, err)

		for i := 0; i < 12; i++ {
			assert.Equal(t, byte(0), out[i])
		}
		for i := 12; i < 32; i++ {
			assert.Equal(t, byte(0x11), out[i])
		}
	})

	t.Run("0X prefix accepted", func(t *testing.T) {
		lower, err := EncodeRecipient("0xabcdef")
		require.NoError(t, err)
		upper, err := EncodeRecipient("0XABCDEF")
		require.NoError(t, err)
		assert.Equal(t, lower, upper)
	})

	t.Run("bech32 payload is right aligned", func(t *testing.T) {
		payload := make([]byte, 20)
		for i := range payload {
			payload[i] = byte(i + 1)
		}
		addr := bech32Addr(t, "noble", payload)

		out, err := EncodeRecipient(addr)
		require.NoError(t, err)

		for i := 0; i < 12; i++ {
			assert.Equal(t, byte(0), out[i])
		}
		assert.Equal(t, payload, out[12:])
	})

	t.Run("same key encodes identically under any prefix", func(t *testing.T) {
		payload := make([]byte, 20)
		for i := range payload {
			payload[i] = byte(0xA0 + i)
		}
		noble := bech32Addr(t, "noble", payload)
		jolt := bech32Addr(t, "jolt", payload)

		a, err := EncodeRecipient(noble)
		require.NoError(t, err)
		b, err := EncodeRecipient(jolt)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("rejects invalid hex", func(t *testing.T) {
		_, err := EncodeRecipient("0xzz")
		assert.Error(t, err)
	})

	t.Run("rejects oversized hex", func(t *testing.T) {
		_, err := EncodeRecipient("0x" + strings.Repeat("ff", 33))
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := EncodeRecipient("not-an-address")
		assert.Error(t, err)
	})
}

func TestBech32Prefix(t *testing.T) {
	addr := bech32Addr(t, "jolt", []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	hrp, err := Bech32Prefix(addr)
	require.NoError(t, err)
	assert.Equal(t, "jolt", hrp)
}

func TestConvertBech32Prefix(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	jolt := bech32Addr(t, "jolt", payload)

	t.Run("converts to hub prefix", func(t *testing.T) {
		noble, err := ConvertBech32Prefix(jolt, "noble")
		require.NoError(t, err)

		hrp, err := Bech32Prefix(noble)
		require.NoError(t, err)
		assert.Equal(t, "noble", hrp)

		// Round trip restores the original address.
		back, err := ConvertBech32Prefix(noble, "jolt")
		require.NoError(t, err)
		assert.Equal(t, jolt, back)
	})

	t.Run("same prefix is identity", func(t *testing.T) {
		same, err := ConvertBech32Prefix(jolt, "jolt")
		require.NoError(t, err)
		assert.Equal(t, jolt, same)
	})

	t.Run("rejects non bech32 input", func(t *testing.T) {
		_, err := ConvertBech32Prefix("0x1234", "noble")
		assert.Error(t, err)
	})
}
