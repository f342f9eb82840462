package nvm

import (
	"sync"

	"github.com/calvinalkan/nvm/internal/clock"
	"github.com/calvinalkan/nvm/medium"
)

// Per spec.md §9's "Global mutable state -> explicit controller
// handle" design note: the reference implementation exposes
// module-level singletons for its registry, queue, and diagnostics.
// Here that becomes Controller, an explicit handle multiple
// independent instances can coexist under (useful in tests); Default
// is kept only as the convenience entry point a single-instance
// embedded deployment would actually use.

var (
	defaultOnce sync.Once
	defaultCtrl *Controller
)

// Default returns the process-wide default Controller, lazily
// constructed over a DefaultParams() medium and a manually advanced
// virtual clock started at 0. Most callers should prefer New with an
// explicit medium and clock; Default exists for simple embedded
// deployments that only ever need one NvM instance.
func Default() *Controller {
	defaultOnce.Do(func() {
		m := medium.New(medium.DefaultParams(), medium.Hooks{})
		defaultCtrl = New(m, clock.NewVirtual(0))
	})

	return defaultCtrl
}
