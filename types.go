package nvm

import "github.com/calvinalkan/nvm/block"

// Result is a per-block job outcome, observable via GetJobResult.
type Result uint8

const (
	// Pending is set on enqueue and remains until the dispatcher
	// processes the job.
	Pending Result = iota
	// Ok means the job completed and the block's state is Valid or
	// Recovered, or a read left the block Invalid but loaded its ROM
	// default into the caller's buffer.
	Ok
	// NotOk means the job completed, the block's state is Invalid, and
	// no ROM default was loaded: any write leaving the block Invalid,
	// or a read of a block with no ROM default.
	NotOk
	// IntegrityFailed is reserved (spec.md §9's open question): the
	// dispatcher never emits it today.
	IntegrityFailed
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "pending"
	case Ok:
		return "ok"
	case NotOk:
		return "not_ok"
	case IntegrityFailed:
		return "integrity_failed"
	default:
		return "unknown"
	}
}

// EventKind distinguishes the two notifications the controller emits
// per completed job.
type EventKind uint8

const (
	JobEnd EventKind = iota
	JobError
)

func (k EventKind) String() string {
	if k == JobEnd {
		return "job_end"
	}
	return "job_error"
}

// Event is delivered to a registered NotifyFunc after every dispatched
// single-block operation (including each per-block step of a ReadAll /
// WriteAll aggregate job).
type Event struct {
	Kind    EventKind
	BlockID uint8
	State   block.State
	Err     error // non-nil detail; set for both JobEnd (e.g. a Redundant backup warning) and JobError
}

// NotifyFunc observes controller events. Called synchronously from
// within MainFunction; it must not block or re-enter the controller.
type NotifyFunc func(Event)

// Diagnostics is a snapshot of the controller's cumulative counters.
type Diagnostics struct {
	JobsProcessed     uint64
	JobsFailed        uint64
	JobsRetried       uint64
	CurrentQueueDepth int
	MaxQueueDepth     int
}
