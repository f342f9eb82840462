package nvm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/nvm/block"
	"github.com/calvinalkan/nvm/internal/clock"
	"github.com/calvinalkan/nvm/medium"
)

// TestDatasetRollbackOnActiveSlotCorruption mirrors the dataset-rollback
// scenario: three sequential writes rotate the active slot 0 -> 1 -> 2,
// the active slot is then corrupted directly on the medium, and a
// subsequent read must fall back to the previous version and retarget
// active_dataset_index to it.
func TestDatasetRollbackOnActiveSlotCorruption(t *testing.T) {
	c, _ := newTestController(t)

	cfg := BlockConfig{
		Config: block.Config{BlockID: 102, BlockSize: 256, Kind: block.Dataset, CRCKind: 2, PrimaryOffset: 0, DatasetCount: 3},
		Mirror: make([]byte, 256),
	}
	require.NoError(t, c.RegisterBlock(cfg))

	p0, p1, p2 := fill(256, 0xA0), fill(256, 0xA1), fill(256, 0xA2)
	for _, p := range [][]byte{p0, p1, p2} {
		require.NoError(t, c.WriteBlock(102, p))
		c.MainFunction()
		r, err := c.GetJobResult(102)
		require.NoError(t, err)
		require.Equal(t, Ok, r)
	}

	b := c.blocks[102]
	require.Equal(t, 2, b.ActiveDatasetIndex)

	// Corrupt the active slot (index 2) directly, simulating medium
	// corruption: flip every byte of its payload so the CRC trailer no
	// longer matches.
	activeOffset := 2 * 1024
	corrupt, err := c.medium.Read(activeOffset, 256)
	require.NoError(t, err)
	for i := range corrupt {
		corrupt[i] ^= 0xFF
	}
	eraseBase := activeOffset - (activeOffset % c.medium.Params().EraseBlockSize)
	require.NoError(t, c.medium.Erase(eraseBase))
	padded := make([]byte, c.medium.Params().PageSize)
	copy(padded, corrupt)
	for i := len(corrupt); i < len(padded); i++ {
		padded[i] = 0xFF
	}
	require.NoError(t, c.medium.Write(activeOffset, padded))

	out := make([]byte, 256)
	require.NoError(t, c.ReadBlock(102, out))
	c.MainFunction()

	r, err := c.GetJobResult(102)
	require.NoError(t, err)
	require.Equal(t, Ok, r)
	require.Equal(t, p1, out)

	state, err := c.GetErrorStatus(102)
	require.NoError(t, err)
	require.Equal(t, block.Recovered, state)
	require.Equal(t, 1, b.ActiveDatasetIndex)
}

// TestRedundantWriteBackupFailureStillCountsAsOk exercises
// recordOutcome's documented carve-out: a Redundant write whose primary
// copy succeeds but whose backup copy fails (here, via a BeforeWrite
// hook blocking only the backup address) returns a non-nil warning
// error while leaving the block Valid, and must still be reported Ok.
func TestRedundantWriteBackupFailureStillCountsAsOk(t *testing.T) {
	const backupOffset = 1024

	blockedErr := errors.New("simulated backup write fault")
	m := medium.New(medium.DefaultParams(), medium.Hooks{
		BeforeWrite: func(address int, _ []byte) error {
			if address == backupOffset {
				return blockedErr
			}
			return nil
		},
	})
	c := New(m, clock.NewVirtual(0))

	cfg := BlockConfig{
		Config: block.Config{
			BlockID: 10, BlockSize: 256, Kind: block.Redundant, CRCKind: 2,
			PrimaryOffset: 0, BackupOffset: 1024, VersionCtrlOffset: block.NoVersionCtrlOffset,
		},
		Mirror: make([]byte, 256),
	}
	require.NoError(t, c.RegisterBlock(cfg))

	require.NoError(t, c.WriteBlock(10, fill(256, 0x55)))
	c.MainFunction()

	r, err := c.GetJobResult(10)
	require.NoError(t, err)
	require.Equal(t, Ok, r)

	state, err := c.GetErrorStatus(10)
	require.NoError(t, err)
	require.Equal(t, block.Valid, state)
}
