package bitstring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FromBytes(nil))
	assert.Equal(t, "00000000", FromBytes([]byte{0}))
	assert.Equal(t, "11111111", FromBytes([]byte{0xFF}))
	assert.Equal(t, "0100100001101001", FromBytes([]byte("Hi")))
}

func TestToBytes(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()

		data := []byte{0, 1, 2, 0x7F, 0x80, 0xFF, 'a', 'z'}
		out, err := ToBytes(FromBytes(data))
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("DropsTrailingPartialByte", func(t *testing.T) {
		t.Parallel()

		out, err := ToBytes("01000001" + "0110")
		require.NoError(t, err)
		assert.Equal(t, []byte{'A'}, out)
	})

	t.Run("RejectsNonBinaryRune", func(t *testing.T) {
		t.Parallel()

		_, err := ToBytes("0101x101")
		require.Error(t, err)
		var bitErr *InvalidBitError
		require.ErrorAs(t, err, &bitErr)
		assert.Equal(t, 4, bitErr.Pos)
		assert.Equal(t, 'x', bitErr.Rune)
	})
}

func TestPad(t *testing.T) {
	t.Parallel()

	padded, n := Pad("110", 5)
	assert.Equal(t, "11000", padded)
	assert.Equal(t, 2, n)

	padded, n = Pad("11000", 5)
	assert.Equal(t, "11000", padded)
	assert.Zero(t, n)

	padded, n = Pad("", 10)
	assert.Equal(t, "", padded)
	assert.Zero(t, n)

	padded, n = Pad("1", 10)
	assert.Equal(t, "1000000000", padded)
	assert.Equal(t, 9, n)
}
