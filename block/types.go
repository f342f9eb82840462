// Package block implements the three block redundancy algorithms —
// Native, Redundant, Dataset — that sit between the NvM job dispatcher
// and the raw medium: computing CRCs, erasing before writing, and
// running the read-recovery cascade (backup copy, older dataset
// version, ROM default) spec.md §4.4 describes.
package block

import (
	"fmt"

	"github.com/calvinalkan/nvm/crc"
)

// Kind selects which redundancy algorithm governs a block.
type Kind uint8

const (
	// Native is a single-copy block: one primary slot, no recovery
	// path beyond an optional ROM default.
	Native Kind = iota
	// Redundant is a two-copy block: primary plus backup slot, with
	// an optional version-stamp byte.
	Redundant
	// Dataset is an N-version round-robin block (2-4 slots).
	Dataset
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Redundant:
		return "redundant"
	case Dataset:
		return "dataset"
	default:
		return "unknown"
	}
}

// State is a block's observable persistence state.
type State uint8

const (
	// Uninitialized is the state immediately after registration,
	// before any read or write has completed.
	Uninitialized State = iota
	// Valid means the most recent read or write succeeded against
	// the authoritative copy (primary / current dataset version).
	Valid
	// Invalid means no valid persisted copy was found; if a ROM
	// default exists, the RAM mirror holds it.
	Invalid
	// Recovering names a read walking the recovery cascade. No read
	// path in this package and no dispatcher step sets it; the read
	// paths go straight to Valid, Recovered or Invalid.
	Recovering
	// Recovered means a read succeeded, but not against the primary
	// copy / current dataset version — a backup copy or an older
	// dataset version was used instead.
	Recovered
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Recovering:
		return "recovering"
	case Recovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// NoVersionCtrlOffset marks a Redundant block as not using the
// version-stamp byte.
const NoVersionCtrlOffset = -1

// Config is a block's immutable registration-time configuration. The
// RAM mirror itself is not stored here: the core borrows the mirror
// slice for the duration of each job rather than retaining it, per
// spec.md §3's ownership rule. Callers pass the mirror explicitly to
// each Manager method.
type Config struct {
	BlockID           uint8
	BlockSize         int
	Kind              Kind
	CRCKind           crc.Kind
	Priority          uint8
	Immediate         bool
	WriteProtected    bool
	ROMDefault        []byte // optional, immutable for the block's lifetime
	PrimaryOffset     int
	BackupOffset      int // Redundant only
	VersionCtrlOffset int // Redundant only; NoVersionCtrlOffset if unset
	DatasetCount      int // Dataset only, 2..4
}

// Block is a registered block's full mutable runtime state, owned by
// the NvM controller for the process lifetime.
type Block struct {
	Config Config

	State              State
	ErasedCount        uint64
	ActiveDatasetIndex int // Dataset only
}

// NewBlock constructs a freshly registered block in state
// Uninitialized, with ActiveDatasetIndex set to
// initialActiveDatasetIndex (the caller may pass a nonzero starting
// index to resume after a restart).
func NewBlock(cfg Config, initialActiveDatasetIndex int) *Block {
	return &Block{
		Config:             cfg,
		State:              Uninitialized,
		ActiveDatasetIndex: initialActiveDatasetIndex,
	}
}

// String renders a short identifying label, used in diagnostics and
// notification events.
func (b *Block) String() string {
	return fmt.Sprintf("block#%d(%s)", b.Config.BlockID, b.Config.Kind)
}
