package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/nvm/block"
	"github.com/calvinalkan/nvm/crc"
)

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadHuJSONParsesMediumAndBlocks(t *testing.T) {
	path := writeTempFile(t, "registry.hujson", `{
		// capacity matches the reference 4 KiB part
		"medium": {
			"capacity_bytes": 4096,
			"page_size": 256,
		},
		"blocks": [
			{
				"block_id": 1,
				"block_size": 256,
				"kind": "native",
				"crc_kind": "crc16",
				"primary_offset": 0,
			},
		],
	}`)

	reg, err := LoadHuJSON(path)
	require.NoError(t, err)
	require.Equal(t, 4096, reg.Medium.CapacityBytes)
	require.Equal(t, 256, reg.Medium.PageSize)
	require.Len(t, reg.Blocks, 1)
	require.Equal(t, uint8(1), reg.Blocks[0].BlockID)
}

func TestLoadYAMLParsesBlockList(t *testing.T) {
	path := writeTempFile(t, "registry.yaml", `
medium:
  capacity_bytes: 8192
blocks:
  - block_id: 1
    block_size: 64
    kind: dataset
    crc_kind: crc8
    primary_offset: 0
    dataset_count: 3
  - block_id: 2
    block_size: 256
    kind: redundant
    crc_kind: crc32
    primary_offset: 1024
    backup_offset: 2048
`)

	reg, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, 8192, reg.Medium.CapacityBytes)
	require.Len(t, reg.Blocks, 2)
	require.Equal(t, "dataset", reg.Blocks[0].Kind)
	require.Equal(t, 3, reg.Blocks[0].DatasetCount)
}

func TestLoadHuJSONMissingFile(t *testing.T) {
	_, err := LoadHuJSON(filepath.Join(t.TempDir(), "missing.hujson"))
	require.Error(t, err)
}

func TestMediumSpecFallsBackToDefaultsForZeroFields(t *testing.T) {
	spec := MediumSpec{CapacityBytes: 8192}
	params := spec.MediumParams()

	require.Equal(t, 8192, params.CapacityBytes)
	require.Equal(t, 256, params.PageSize) // falls back to DefaultParams()
}

func TestBlockSpecBlockConfigDecodesROMDefaultHex(t *testing.T) {
	spec := BlockSpec{
		BlockID: 30, BlockSize: 256, Kind: "native", CRCKind: "crc16",
		PrimaryOffset: 0, ROMDefaultHex: "52ff",
	}

	cfg, err := spec.BlockConfig()
	require.NoError(t, err)
	require.Equal(t, block.Native, cfg.Kind)
	require.Equal(t, crc.Crc16, cfg.CRCKind)
	require.Equal(t, []byte{0x52, 0xFF}, cfg.ROMDefault)
}

func TestBlockSpecBlockConfigRejectsUnknownKind(t *testing.T) {
	spec := BlockSpec{BlockID: 1, BlockSize: 64, Kind: "bogus", CRCKind: "none", PrimaryOffset: 0}

	_, err := spec.BlockConfig()
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestBlockSpecBlockConfigRejectsUnknownCRCKind(t *testing.T) {
	spec := BlockSpec{BlockID: 1, BlockSize: 64, Kind: "native", CRCKind: "bogus", PrimaryOffset: 0}

	_, err := spec.BlockConfig()
	require.ErrorIs(t, err, ErrUnknownCRCKind)
}

func TestBlockSpecBlockConfigRejectsBadROMHex(t *testing.T) {
	spec := BlockSpec{
		BlockID: 1, BlockSize: 64, Kind: "native", CRCKind: "none",
		PrimaryOffset: 0, ROMDefaultHex: "not-hex",
	}

	_, err := spec.BlockConfig()
	require.ErrorIs(t, err, ErrBadROMHex)
}

func TestBlockSpecBlockConfigDefaultsVersionCtrlOffsetToUnset(t *testing.T) {
	spec := BlockSpec{BlockID: 1, BlockSize: 64, Kind: "redundant", CRCKind: "none", PrimaryOffset: 0, BackupOffset: 1024}

	cfg, err := spec.BlockConfig()
	require.NoError(t, err)
	require.Equal(t, block.NoVersionCtrlOffset, cfg.VersionCtrlOffset)
}
