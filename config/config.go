// Package config loads block registries and medium geometry from an
// external file, so a demonstration program does not need its fixture
// data compiled in. Two formats are supported: HuJSON (human JSON,
// matching the teacher's own `.tk.json` convention) for a single
// authoritative config file, and YAML for a block-registry fixture
// table in the style of a driver database.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/nvm/block"
	"github.com/calvinalkan/nvm/crc"
	"github.com/calvinalkan/nvm/medium"
)

// Sentinel errors, all satisfying errors.Is against ErrInvalid.
var (
	ErrInvalid        = fmt.Errorf("config: invalid")
	ErrUnknownKind    = fmt.Errorf("%w: unknown block kind", ErrInvalid)
	ErrUnknownCRCKind = fmt.Errorf("%w: unknown crc kind", ErrInvalid)
	ErrBadROMHex      = fmt.Errorf("%w: rom_default_hex is not valid hex", ErrInvalid)
)

// MediumSpec mirrors medium.Params in the file format. Zero fields
// fall back to medium.DefaultParams()'s corresponding value.
type MediumSpec struct {
	CapacityBytes   int    `json:"capacity_bytes,omitempty" yaml:"capacity_bytes,omitempty"` //nolint:tagliatelle
	PageSize        int    `json:"page_size,omitempty" yaml:"page_size,omitempty"`           //nolint:tagliatelle
	EraseBlockSize  int    `json:"erase_block_size,omitempty" yaml:"erase_block_size,omitempty"` //nolint:tagliatelle
	EnduranceCycles uint32 `json:"endurance_cycles,omitempty" yaml:"endurance_cycles,omitempty"` //nolint:tagliatelle
}

// BlockSpec is one block's registration, as written in a config file.
// block_size worth of RAM mirror is not part of the file: the caller
// allocates and owns that buffer at registration time.
type BlockSpec struct {
	BlockID           uint8  `json:"block_id" yaml:"block_id"`                                         //nolint:tagliatelle
	BlockSize         int    `json:"block_size" yaml:"block_size"`                                     //nolint:tagliatelle
	Kind              string `json:"kind" yaml:"kind"`
	CRCKind           string `json:"crc_kind" yaml:"crc_kind"`                                         //nolint:tagliatelle
	Priority          uint8  `json:"priority,omitempty" yaml:"priority,omitempty"`
	Immediate         bool   `json:"immediate,omitempty" yaml:"immediate,omitempty"`
	WriteProtected    bool   `json:"write_protected,omitempty" yaml:"write_protected,omitempty"`       //nolint:tagliatelle
	PrimaryOffset     int    `json:"primary_offset" yaml:"primary_offset"`                             //nolint:tagliatelle
	BackupOffset      int    `json:"backup_offset,omitempty" yaml:"backup_offset,omitempty"`           //nolint:tagliatelle
	VersionCtrlOffset int    `json:"version_ctrl_offset,omitempty" yaml:"version_ctrl_offset,omitempty"` //nolint:tagliatelle
	DatasetCount      int    `json:"dataset_count,omitempty" yaml:"dataset_count,omitempty"`           //nolint:tagliatelle
	ROMDefaultHex     string `json:"rom_default_hex,omitempty" yaml:"rom_default_hex,omitempty"`       //nolint:tagliatelle
}

// Registry is the full contents of a config file: the medium's
// geometry plus the set of blocks to register against it.
type Registry struct {
	Medium MediumSpec  `json:"medium" yaml:"medium"`
	Blocks []BlockSpec `json:"blocks" yaml:"blocks"`
}

// LoadHuJSON reads and parses a HuJSON (JSON-with-comments) registry
// file, the same format and library the teacher's root config.go uses
// for `.tk.json`.
func LoadHuJSON(path string) (Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, same as the teacher's loadConfigFile
	if err != nil {
		return Registry{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Registry{}, fmt.Errorf("config: %s: invalid hujson: %w", path, err)
	}

	var reg Registry
	if err := json.Unmarshal(standardized, &reg); err != nil {
		return Registry{}, fmt.Errorf("config: %s: invalid json: %w", path, err)
	}

	return reg, nil
}

// LoadYAML reads and parses a YAML block-registry fixture, an
// alternate format to HuJSON for expressing a flat list of block
// descriptors as a sequence of maps.
func LoadYAML(path string) (Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return Registry{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("config: %s: invalid yaml: %w", path, err)
	}

	return reg, nil
}

// MediumParams resolves s against medium.DefaultParams(), with any
// zero field in s falling back to the default's value.
func (s MediumSpec) MediumParams() medium.Params {
	p := medium.DefaultParams()

	if s.CapacityBytes != 0 {
		p.CapacityBytes = s.CapacityBytes
	}

	if s.PageSize != 0 {
		p.PageSize = s.PageSize
	}

	if s.EraseBlockSize != 0 {
		p.EraseBlockSize = s.EraseBlockSize
	}

	if s.EnduranceCycles != 0 {
		p.EnduranceCycles = s.EnduranceCycles
	}

	return p
}

// BlockConfig resolves one BlockSpec into a block.Config. It performs
// no medium-geometry validation (layout.Native/Redundant/Dataset, run
// by Controller.RegisterBlock, is the single source of truth for
// that); it only decodes the file's string/hex encodings into typed
// fields.
func (s BlockSpec) BlockConfig() (block.Config, error) {
	kind, err := parseKind(s.Kind)
	if err != nil {
		return block.Config{}, fmt.Errorf("block#%d: %w", s.BlockID, err)
	}

	crcKind, err := parseCRCKind(s.CRCKind)
	if err != nil {
		return block.Config{}, fmt.Errorf("block#%d: %w", s.BlockID, err)
	}

	var romDefault []byte
	if s.ROMDefaultHex != "" {
		romDefault, err = hex.DecodeString(s.ROMDefaultHex)
		if err != nil {
			return block.Config{}, fmt.Errorf("block#%d: %w: %w", s.BlockID, ErrBadROMHex, err)
		}
	}

	versionCtrlOffset := block.NoVersionCtrlOffset
	if s.VersionCtrlOffset != 0 {
		versionCtrlOffset = s.VersionCtrlOffset
	}

	return block.Config{
		BlockID:           s.BlockID,
		BlockSize:         s.BlockSize,
		Kind:              kind,
		CRCKind:           crcKind,
		Priority:          s.Priority,
		Immediate:         s.Immediate,
		WriteProtected:    s.WriteProtected,
		ROMDefault:        romDefault,
		PrimaryOffset:     s.PrimaryOffset,
		BackupOffset:      s.BackupOffset,
		VersionCtrlOffset: versionCtrlOffset,
		DatasetCount:      s.DatasetCount,
	}, nil
}

func parseKind(s string) (block.Kind, error) {
	switch s {
	case "native":
		return block.Native, nil
	case "redundant":
		return block.Redundant, nil
	case "dataset":
		return block.Dataset, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownKind)
	}
}

func parseCRCKind(s string) (crc.Kind, error) {
	switch s {
	case "", "none":
		return crc.None, nil
	case "crc8":
		return crc.Crc8, nil
	case "crc16":
		return crc.Crc16, nil
	case "crc32":
		return crc.Crc32, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownCRCKind)
	}
}
