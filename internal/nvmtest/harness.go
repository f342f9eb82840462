// Package nvmtest is a shared golden-scenario harness: each exported
// Run* function reproduces one of spec.md §8's worked scenarios
// end-to-end against a real Controller, returning a comparable result
// struct so a test can assert it with google/go-cmp instead of
// re-deriving the scenario's plumbing inline.
package nvmtest

import (
	"github.com/calvinalkan/nvm"
	"github.com/calvinalkan/nvm/internal/clock"
	"github.com/calvinalkan/nvm/medium"
)

// Harness bundles a Controller with its medium and clock for scenario
// construction, mirroring the teacher's internal/testutil harness
// pattern of a single struct gluing together the pieces a scenario
// needs instead of threading them through every helper call.
type Harness struct {
	Controller *nvm.Controller
	Medium     *medium.Medium
	Clock      *clock.Virtual
}

// New builds a Harness over a freshly constructed default-geometry
// medium and a virtual clock started at 0.
func New() *Harness {
	clk := clock.NewVirtual(0)
	m := medium.New(medium.DefaultParams(), medium.Hooks{})

	return &Harness{
		Controller: nvm.New(m, clk),
		Medium:     m,
		Clock:      clk,
	}
}

// Drain repeatedly calls MainFunction until the queue reports empty,
// bounded by maxTicks to avoid hanging a test if a job is stuck.
func (h *Harness) Drain(maxTicks int) {
	for range maxTicks {
		h.Controller.MainFunction()
		if h.Controller.GetDiagnostics().CurrentQueueDepth == 0 {
			return
		}
	}
}

// Fill returns a buffer of n bytes, every byte set to v.
func Fill(n int, v byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = v
	}

	return out
}

// CorruptSlot flips every byte of the size-byte payload at offset,
// simulating medium corruption independent of any write path, then
// erases and rewrites only the data page (leaving the CRC trailer
// erased), so a subsequent read is guaranteed to fail its CRC check.
func (h *Harness) CorruptSlot(offset, size int) error {
	data, err := h.Medium.Read(offset, size)
	if err != nil {
		return err
	}

	for i := range data {
		data[i] ^= 0xFF
	}

	params := h.Medium.Params()
	eraseBase := offset - (offset % params.EraseBlockSize)

	if err := h.Medium.Erase(eraseBase); err != nil {
		return err
	}

	page := make([]byte, params.PageSize)
	for i := range page {
		page[i] = 0xFF
	}

	copy(page, data)

	return h.Medium.Write(offset, page)
}

