package nvmtest

import (
	"github.com/calvinalkan/nvm"
	"github.com/calvinalkan/nvm/block"
)

// ScenarioResult is the comparable outcome of one golden scenario, fit
// for a google/go-cmp diff against a hand-written expectation.
type ScenarioResult struct {
	Result      nvm.Result
	State       block.State
	Mirror      []byte
	Active      int  // ActiveDatasetIndex, only meaningful for S4
	Overflowed  bool // only meaningful for S5
	Completions []uint8 // S3 only: block IDs in completion order
}

// RunS1NativeRoundTrip reproduces spec.md §8's S1: register a Native
// block, write a fixed pattern, clear the mirror, read it back.
func RunS1NativeRoundTrip() ScenarioResult {
	h := New()

	mirror := make([]byte, 256)
	_ = h.Controller.RegisterBlock(nvm.BlockConfig{
		Config: block.Config{BlockID: 1, BlockSize: 256, Kind: block.Native, CRCKind: 2, PrimaryOffset: 0},
		Mirror: mirror,
	})

	copy(mirror, Fill(256, 0xAA))
	_ = h.Controller.WriteBlock(1, mirror)
	h.Drain(4)

	clear(mirror)
	_ = h.Controller.ReadBlock(1, mirror)
	h.Drain(4)

	result, _ := h.Controller.GetJobResult(1)
	state, _ := h.Controller.GetErrorStatus(1)

	return ScenarioResult{Result: result, State: state, Mirror: mirror}
}

// RunS2ROMFallback reproduces S2: a Native block with a ROM default
// and no prior write must recover into the ROM value and report Ok.
func RunS2ROMFallback() ScenarioResult {
	h := New()

	mirror := make([]byte, 256)
	rom := []byte{'R'}
	_ = h.Controller.RegisterBlock(nvm.BlockConfig{
		Config: block.Config{BlockID: 30, BlockSize: 256, Kind: block.Native, CRCKind: 2, PrimaryOffset: 0, ROMDefault: rom},
		Mirror: mirror,
	})

	_ = h.Controller.ReadBlock(30, mirror)
	h.Drain(4)

	result, _ := h.Controller.GetJobResult(30)
	state, _ := h.Controller.GetErrorStatus(30)

	return ScenarioResult{Result: result, State: state, Mirror: mirror}
}

// RunS3PriorityOrdering reproduces S3: three blocks of priority 5, 10,
// 20 are submitted in reverse order; completion must still follow
// ascending priority.
func RunS3PriorityOrdering() ScenarioResult {
	h := New()

	register := func(id, priority uint8, offset int) []byte {
		mirror := make([]byte, 256)
		_ = h.Controller.RegisterBlock(nvm.BlockConfig{
			Config: block.Config{BlockID: id, BlockSize: 256, Kind: block.Native, CRCKind: 2, Priority: priority, PrimaryOffset: offset},
			Mirror: mirror,
		})

		return mirror
	}

	register(100, 5, 0)
	register(101, 10, 1024)
	register(102, 20, 2048)

	var completions []uint8
	h.Controller.SetNotifyFunc(func(e nvm.Event) {
		if e.Kind == nvm.JobEnd {
			completions = append(completions, e.BlockID)
		}
	})

	_ = h.Controller.WriteBlock(102, Fill(256, 0xC0))
	_ = h.Controller.WriteBlock(101, Fill(256, 0xB0))
	_ = h.Controller.WriteBlock(100, Fill(256, 0xA0))

	h.Drain(4)

	return ScenarioResult{Completions: completions}
}

// RunS4DatasetRollback reproduces S4: three sequential writes advance
// a 3-slot Dataset block's active index 0->1->2; the active slot is
// then corrupted, and a read must fall back to the previous version.
func RunS4DatasetRollback() ScenarioResult {
	h := New()

	mirror := make([]byte, 256)
	_ = h.Controller.RegisterBlock(nvm.BlockConfig{
		Config: block.Config{BlockID: 102, BlockSize: 256, Kind: block.Dataset, CRCKind: 2, PrimaryOffset: 0, DatasetCount: 3},
		Mirror: mirror,
	})

	for _, v := range []byte{0xA0, 0xA1, 0xA2} {
		copy(mirror, Fill(256, v))
		_ = h.Controller.WriteBlock(102, mirror)
		h.Drain(4)
	}

	_ = h.CorruptSlot(2*1024, 256)

	_ = h.Controller.ReadBlock(102, mirror)
	h.Drain(4)

	result, _ := h.Controller.GetJobResult(102)
	state, _ := h.Controller.GetErrorStatus(102)
	active, _ := h.Controller.DatasetActiveIndex(102)

	return ScenarioResult{Result: result, State: state, Mirror: mirror, Active: active}
}

// RunS5QueueOverflow reproduces S5: 33 write submissions against one
// registered block exceed the queue's 32-job capacity; the 33rd fails
// and the overflow counter increments by exactly one.
func RunS5QueueOverflow() ScenarioResult {
	h := New()

	mirror := make([]byte, 256)
	_ = h.Controller.RegisterBlock(nvm.BlockConfig{
		Config: block.Config{BlockID: 1, BlockSize: 256, Kind: block.Native, CRCKind: 2, PrimaryOffset: 0},
		Mirror: mirror,
	})

	overflowed := false
	for range 33 {
		if err := h.Controller.WriteBlock(1, Fill(256, 0xAA)); err != nil {
			overflowed = true
		}
	}

	h.Drain(64)

	return ScenarioResult{Overflowed: overflowed}
}
