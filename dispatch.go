package nvm

import (
	"github.com/calvinalkan/nvm/block"
	"github.com/calvinalkan/nvm/queue"
)

// MainFunction is the periodic dispatcher entry point (spec.md §4.6):
// it sweeps the queue for timeouts, drains it completely, and updates
// the queue-depth gauge. It must be invoked at a regular cadence
// (nominally every 1 virtual millisecond) for submitted jobs to make
// progress.
func (c *Controller) MainFunction() {
	c.mu.Lock()
	defer c.mu.Unlock()

	retried, dropped := c.queue.TimeoutSweep(c.clock.NowMS())
	c.diag.JobsRetried += uint64(retried)
	c.diag.JobsFailed += uint64(dropped)

	for {
		job, ok := c.queue.Dequeue()
		if !ok {
			break
		}

		c.dispatchJob(job)
	}
}

func (c *Controller) dispatchJob(job queue.Job) {
	switch job.Kind {
	case queue.Read, queue.Write:
		c.dispatchSingle(job)
	case queue.ReadAll:
		for _, id := range c.order {
			c.dispatchAggregateStep(id, queue.Read)
		}
	case queue.WriteAll:
		for _, id := range c.order {
			b := c.blocks[id]
			if b.Config.WriteProtected {
				continue
			}
			c.dispatchAggregateStep(id, queue.Write)
		}
	}
}

func (c *Controller) dispatchSingle(job queue.Job) {
	b, ok := c.blocks[job.BlockID]
	if !ok {
		return // block was never registered; nothing to dispatch against
	}

	err := c.runAlgorithm(b, job.Kind, job.Buffer)
	c.recordOutcome(job.BlockID, b, job.Kind, err)
}

// dispatchAggregateStep runs one block's step of a ReadAll/WriteAll
// job, using the block's own registered mirror rather than a per-call
// buffer (spec.md §4.6: aggregate jobs execute synchronously within
// the "All" job's dispatch slice, not via the queue).
func (c *Controller) dispatchAggregateStep(id uint8, kind queue.Kind) {
	b := c.blocks[id]
	mirror := c.mirrors[id]

	err := c.runAlgorithm(b, kind, mirror)
	c.recordOutcome(id, b, kind, err)
}

func (c *Controller) runAlgorithm(b *block.Block, kind queue.Kind, mirror []byte) error {
	switch b.Config.Kind {
	case block.Native:
		if kind == queue.Read {
			return c.manager.ReadNative(b, mirror)
		}
		return c.manager.WriteNative(b, mirror)
	case block.Redundant:
		if kind == queue.Read {
			return c.manager.ReadRedundant(b, mirror)
		}
		return c.manager.WriteRedundant(b, mirror)
	case block.Dataset:
		if kind == queue.Read {
			return c.manager.ReadDataset(b, mirror)
		}
		return c.manager.WriteDataset(b, mirror)
	default:
		return nil
	}
}

// recordOutcome classifies a dispatched operation by the block's
// resulting state rather than by err == nil: a Redundant write that
// succeeds on the primary but fails to update its backup copy still
// returns a non-nil error (carrying that warning) while leaving the
// block Valid, and must still count as Ok.
//
// A read that falls all the way back to a ROM default also counts as
// Ok even though it leaves state == Invalid: the caller's buffer holds
// a deterministic, safe value and the job ran to completion, it is
// only the persisted copy that is gone. Only a read with state ==
// Invalid and no ROM default to fall back to — or a write that leaves
// state == Invalid — is a true job failure.
func (c *Controller) recordOutcome(id uint8, b *block.Block, kind queue.Kind, err error) {
	ok := b.State != block.Invalid
	if !ok && kind == queue.Read && b.Config.ROMDefault != nil {
		ok = true
	}

	if ok {
		c.results[id] = Ok
		c.diag.JobsProcessed++
	} else {
		c.results[id] = NotOk
		c.diag.JobsFailed++
	}

	if c.notify == nil {
		return
	}

	if ok {
		c.notify(Event{Kind: JobEnd, BlockID: id, State: b.State, Err: err})
	} else {
		c.notify(Event{Kind: JobError, BlockID: id, State: b.State, Err: err})
	}
}
