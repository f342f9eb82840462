package crc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeEmptyReturnsInit(t *testing.T) {
	require.Equal(t, byte(0x00), ComputeCRC8(nil))
	require.Equal(t, crc16InitValue, ComputeCRC16(nil))
	require.Equal(t, uint32(0), ComputeCRC32(nil))
}

func TestComputeExtendedChaining(t *testing.T) {
	a := []byte("the quick brown fox")
	b := []byte(" jumps over the lazy dog")
	whole := append(append([]byte{}, a...), b...)

	t.Run("crc8", func(t *testing.T) {
		chained := ComputeCRC8Extended(b, ComputeCRC8Extended(a, 0x00))
		require.Equal(t, ComputeCRC8(whole), chained)
	})

	t.Run("crc16", func(t *testing.T) {
		chained := ComputeCRC16Extended(b, ComputeCRC16Extended(a, crc16InitValue))
		require.Equal(t, ComputeCRC16(whole), chained)
	})

	t.Run("crc32", func(t *testing.T) {
		chained := ComputeCRC32Extended(b, ComputeCRC32Extended(a, 0))
		require.Equal(t, ComputeCRC32(whole), chained)
	})
}

func TestSingleBitFlipChangesChecksum(t *testing.T) {
	base := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

	for bit := range 8 * len(base) {
		flipped := append([]byte{}, base...)
		flipped[bit/8] ^= 1 << (bit % 8)

		require.NotEqual(t, ComputeCRC8(base), ComputeCRC8(flipped), "crc8 bit %d", bit)
		require.NotEqual(t, ComputeCRC16(base), ComputeCRC16(flipped), "crc16 bit %d", bit)
		require.NotEqual(t, ComputeCRC32(base), ComputeCRC32(flipped), "crc32 bit %d", bit)
	}
}

func TestKindSize(t *testing.T) {
	require.Equal(t, 0, None.Size())
	require.Equal(t, 1, Crc8.Size())
	require.Equal(t, 2, Crc16.Size())
	require.Equal(t, 4, Crc32.Size())
}

func TestComputeDispatchesByKind(t *testing.T) {
	b := []byte("block payload")

	require.Equal(t, uint32(ComputeCRC8(b)), Compute(Crc8, b))
	require.Equal(t, uint32(ComputeCRC16(b)), Compute(Crc16, b))
	require.Equal(t, ComputeCRC32(b), Compute(Crc32, b))
	require.Equal(t, uint32(0), Compute(None, b))
}
