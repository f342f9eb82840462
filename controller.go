// Package nvm is a non-volatile memory manager: it layers a priority
// job queue and three block redundancy strategies (Native, Redundant,
// Dataset) over a simulated erase-before-write medium, exposing a
// small submission/observation API plus a periodic dispatcher that
// drains the queue.
package nvm

import (
	"fmt"
	"sync"

	"github.com/calvinalkan/nvm/block"
	"github.com/calvinalkan/nvm/internal/clock"
	"github.com/calvinalkan/nvm/layout"
	"github.com/calvinalkan/nvm/medium"
	"github.com/calvinalkan/nvm/queue"
)

// MaxBlocks bounds the number of blocks a single controller may
// register, per spec.md §3.
const MaxBlocks = 16

const (
	defaultReadTimeoutMS  = 2000
	defaultWriteTimeoutMS = 3000
	defaultMaxRetries     = 3
)

// BlockConfig is the caller-facing registration request: the block's
// layout and policy configuration plus its owning RAM mirror buffer.
// The mirror is borrowed by the controller for the duration of each
// dispatched job against this block_id and must not be mutated by the
// caller outside of that window.
type BlockConfig struct {
	block.Config
	Mirror []byte
}

// Controller owns the block registry, job queue, result slots, and
// diagnostics for one NvM instance. Submission and dispatch are
// assumed single-threaded cooperative (spec.md §5); Controller's mutex
// exists to make concurrent misuse safe, not to support genuinely
// parallel submission and dispatch.
type Controller struct {
	mu sync.Mutex

	clock   clock.Clock
	manager *block.Manager
	medium  *medium.Medium

	blocks  map[uint8]*block.Block
	mirrors map[uint8][]byte
	order   []uint8 // registration order, for ReadAll/WriteAll

	queue   *queue.Queue
	results map[uint8]Result
	diag    Diagnostics

	notify NotifyFunc
}

// New constructs a Controller over the given medium, using clk as the
// source of virtual time for job submission and timeout sweeps.
func New(m *medium.Medium, clk clock.Clock) *Controller {
	return &Controller{
		clock:   clk,
		manager: block.NewManager(m),
		medium:  m,
		blocks:  make(map[uint8]*block.Block),
		mirrors: make(map[uint8][]byte),
		queue:   queue.New(),
		results: make(map[uint8]Result),
	}
}

// SetNotifyFunc installs fn to receive JobEnd/JobError events. Passing
// nil disables notification.
func (c *Controller) SetNotifyFunc(fn NotifyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = fn
}

// RegisterBlock validates cfg's layout against the medium's geometry
// and records it. Re-registration of an existing block_id fails with
// ErrAlreadyRegistered; the registration itself otherwise persists for
// the controller's lifetime (idempotent re-registration is not
// supported, per spec.md §3).
func (c *Controller) RegisterBlock(cfg BlockConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.blocks[cfg.BlockID]; exists {
		return fmt.Errorf("block#%d: %w", cfg.BlockID, ErrAlreadyRegistered)
	}

	if len(c.blocks) >= MaxBlocks {
		return fmt.Errorf("block#%d: max %d blocks: %w", cfg.BlockID, MaxBlocks, ErrLayoutInvalid)
	}

	if len(cfg.Mirror) != cfg.BlockSize {
		return fmt.Errorf("block#%d: mirror len=%d block_size=%d: %w", cfg.BlockID, len(cfg.Mirror), cfg.BlockSize, ErrLayoutInvalid)
	}

	if err := c.validateLayout(cfg.Config); err != nil {
		return fmt.Errorf("block#%d: %w: %w", cfg.BlockID, ErrLayoutInvalid, err)
	}

	initialIndex := 0
	if cfg.Kind == block.Dataset {
		initialIndex = cfg.DatasetCount - 1
	}

	c.blocks[cfg.BlockID] = block.NewBlock(cfg.Config, initialIndex)
	c.mirrors[cfg.BlockID] = cfg.Mirror
	c.order = append(c.order, cfg.BlockID)
	c.results[cfg.BlockID] = Pending

	return nil
}

func (c *Controller) validateLayout(cfg block.Config) error {
	p := c.medium.Params()

	switch cfg.Kind {
	case block.Native:
		_, err := layout.Native(cfg.PrimaryOffset, cfg.BlockSize, cfg.CRCKind, p.PageSize, p.CapacityBytes)
		return err
	case block.Redundant:
		_, _, err := layout.Redundant(cfg.PrimaryOffset, cfg.BackupOffset, cfg.BlockSize, cfg.CRCKind, p.PageSize, p.CapacityBytes)
		return err
	case block.Dataset:
		_, err := layout.Dataset(cfg.PrimaryOffset, cfg.BlockSize, cfg.DatasetCount, cfg.CRCKind, p.PageSize, p.CapacityBytes)
		return err
	default:
		return fmt.Errorf("unknown block kind %d", cfg.Kind)
	}
}

// ReadBlock submits a single-block read job for a registered block.
// buf must be exactly the registered block size; its contents are
// overwritten once the dispatcher processes the job.
func (c *Controller) ReadBlock(id uint8, buf []byte) error {
	return c.submitSingle(id, queue.Read, buf, defaultReadTimeoutMS)
}

// WriteBlock submits a single-block write job. Fails immediately (no
// enqueue) if the block is registered write-protected.
func (c *Controller) WriteBlock(id uint8, buf []byte) error {
	c.mu.Lock()
	b, ok := c.blocks[id]
	if ok && b.Config.WriteProtected {
		c.mu.Unlock()
		return fmt.Errorf("block#%d: %w", id, ErrWriteProtected)
	}
	c.mu.Unlock()

	return c.submitSingle(id, queue.Write, buf, defaultWriteTimeoutMS)
}

func (c *Controller) submitSingle(id uint8, kind queue.Kind, buf []byte, timeoutMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[id]
	if !ok {
		return fmt.Errorf("block#%d: %w", id, ErrNotRegistered)
	}

	if len(buf) != b.Config.BlockSize {
		return fmt.Errorf("block#%d: buf len=%d block_size=%d: %w", id, len(buf), b.Config.BlockSize, ErrBufferSize)
	}

	job := queue.Job{
		Kind:        kind,
		BlockID:     id,
		Priority:    b.Config.Priority,
		Immediate:   b.Config.Immediate,
		Buffer:      buf,
		SubmittedAt: c.clock.NowMS(),
		TimeoutMS:   timeoutMS,
		MaxRetries:  defaultMaxRetries,
	}

	if err := c.queue.Enqueue(job); err != nil {
		return fmt.Errorf("block#%d: %w", id, ErrQueueFull)
	}

	c.results[id] = Pending

	return nil
}

// ReadAll submits a single aggregate job that, when dispatched, reads
// every registered block in registration order.
func (c *Controller) ReadAll() error {
	return c.submitAll(queue.ReadAll, defaultReadTimeoutMS)
}

// WriteAll submits a single aggregate job that, when dispatched,
// writes every registered non-write-protected block in registration
// order.
func (c *Controller) WriteAll() error {
	return c.submitAll(queue.WriteAll, defaultWriteTimeoutMS)
}

func (c *Controller) submitAll(kind queue.Kind, timeoutMS int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job := queue.Job{
		Kind:        kind,
		BlockID:     queue.AllBlocksID,
		SubmittedAt: c.clock.NowMS(),
		TimeoutMS:   timeoutMS,
		MaxRetries:  defaultMaxRetries,
	}

	if err := c.queue.Enqueue(job); err != nil {
		return fmt.Errorf("%w", ErrQueueFull)
	}

	return nil
}

// SetDataIndex manually retargets a Dataset block's active version. It
// performs no I/O and bypasses the queue, since it is a pure metadata
// mutation (spec.md §4.4.3).
func (c *Controller) SetDataIndex(id uint8, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[id]
	if !ok {
		return fmt.Errorf("block#%d: %w", id, ErrNotRegistered)
	}

	if err := block.SetDataIndex(b, index); err != nil {
		return fmt.Errorf("block#%d: %w: %w", id, ErrInvalidDatasetIndex, err)
	}

	return nil
}

// GetJobResult returns the current result slot for id.
func (c *Controller) GetJobResult(id uint8) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.results[id]
	if !ok {
		return 0, fmt.Errorf("block#%d: %w", id, ErrNotRegistered)
	}

	return r, nil
}

// DatasetActiveIndex returns the current active dataset version slot
// for a registered Dataset block, for diagnostics and golden-scenario
// assertions. Fails with ErrNotRegistered if id is unknown.
func (c *Controller) DatasetActiveIndex(id uint8) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[id]
	if !ok {
		return 0, fmt.Errorf("block#%d: %w", id, ErrNotRegistered)
	}

	return b.ActiveDatasetIndex, nil
}

// GetErrorStatus returns the current observable state for id.
func (c *Controller) GetErrorStatus(id uint8) (block.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[id]
	if !ok {
		return 0, fmt.Errorf("block#%d: %w", id, ErrNotRegistered)
	}

	return b.State, nil
}

// GetDiagnostics returns a snapshot of the controller's job and queue
// counters.
func (c *Controller) GetDiagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.diag
	qd := c.queue.Diagnostics()
	d.CurrentQueueDepth = qd.Depth
	d.MaxQueueDepth = qd.HighWaterMark

	return d
}
