package nvm

import "errors"

// Error taxonomy returned by the controller's public API (spec.md §7).
// Each is a distinct sentinel rather than an overloaded generic code,
// so callers can errors.Is against the specific failure instead of
// inspecting a shared "not ok" value.
var (
	// ErrLayoutInvalid is returned by RegisterBlock when the block's
	// configuration fails layout validation.
	ErrLayoutInvalid = errors.New("nvm: layout invalid")

	// ErrNotRegistered is returned by any submission or observation API
	// against an unknown block_id.
	ErrNotRegistered = errors.New("nvm: block not registered")

	// ErrAlreadyRegistered is returned by RegisterBlock against a
	// block_id that already has a registration.
	ErrAlreadyRegistered = errors.New("nvm: block already registered")

	// ErrQueueFull is returned by a submission API when the job queue
	// is already at capacity.
	ErrQueueFull = errors.New("nvm: job queue full")

	// ErrWriteProtected is returned by WriteBlock against a block
	// registered with WriteProtected set.
	ErrWriteProtected = errors.New("nvm: block write-protected")

	// ErrMediumAlignmentViolation surfaces a medium alignment failure
	// that should never escape the controller, since every write path
	// erases its target before writing; it is declared for the error
	// taxonomy's completeness and for tests that want to assert it
	// cannot occur.
	ErrMediumAlignmentViolation = errors.New("nvm: medium alignment violation")

	// ErrEnduranceExhausted names the failure of a block whose erase
	// count would exceed the medium's configured endurance rating. No
	// controller API returns it: a failed erase surfaces as the
	// medium's own medium.ErrEnduranceExhausted inside a dispatched
	// job, which ends with a NotOk result.
	ErrEnduranceExhausted = errors.New("nvm: endurance exhausted")

	// ErrIntegrityFailed is reserved for the IntegrityFailed job result
	// per spec.md §9's open question: the dispatcher never synthesizes
	// it today (it only ever resolves a job to Ok or NotOk after the
	// full recovery cascade), but the taxonomy keeps the name so a
	// future policy change has somewhere to plug in without widening
	// the Result enum.
	ErrIntegrityFailed = errors.New("nvm: integrity failed")

	// ErrTimeout names a job that the timeout sweep dropped after
	// exhausting its retries. No API returns it: MainFunction counts
	// such drops in Diagnostics.JobsFailed, and the block's result slot
	// is left as it was.
	ErrTimeout = errors.New("nvm: job timed out")

	// ErrInvalidDatasetIndex is returned by SetDataIndex.
	ErrInvalidDatasetIndex = errors.New("nvm: invalid dataset index")

	// ErrBufferSize is returned by ReadBlock/WriteBlock when the
	// caller's buffer length does not match the registered block size.
	ErrBufferSize = errors.New("nvm: buffer size mismatch")
)
