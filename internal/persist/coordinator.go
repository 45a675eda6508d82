// Package persist converts in-memory row mutations into backend writes. It
// runs two tiers: a per-row debounced patch for keystroke-level edits, and
// explicit multi-row batches for paste and fill-down. Failures surface
// through an ErrorSink; optimistic local state is never rolled back here.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/gridx/internal/backend"
	"github.com/oakwood-commons/gridx/internal/value"
	"github.com/oakwood-commons/gridx/pkg/logger"
)

// ErrorSink receives persistence failures for user-visible surfacing (the
// grid's error banner). Called outside the coordinator's lock.
type ErrorSink func(operation string, err error)

// Coordinator coalesces rapid edits per row into one patch per debounce
// window and issues batch writes for multi-cell operations.
type Coordinator struct {
	client  backend.Client
	window  time.Duration
	timeout time.Duration
	sink    ErrorSink
	log     *logr.Logger

	mu      sync.Mutex
	pending map[string]map[string]value.Value
	timers  map[string]*time.Timer
	closed  bool

	// inflight lets Close and tests wait for running flushes.
	inflight sync.WaitGroup
}

// NewCoordinator builds a coordinator. window is the debounce delay between
// the last edit to a row and its flush; timeout bounds each backend call.
func NewCoordinator(client backend.Client, window, timeout time.Duration, sink ErrorSink, log *logr.Logger) *Coordinator {
	if sink == nil {
		sink = func(string, error) {}
	}
	if log == nil {
		log = logger.GetNoopLogger()
	}
	return &Coordinator{
		client:  client,
		window:  window,
		timeout: timeout,
		sink:    sink,
		log:     log,
		pending: make(map[string]map[string]value.Value),
		timers:  make(map[string]*time.Timer),
	}
}

// QueueRowChanges merges changes into the row's pending patch and restarts
// its debounce timer. Later values for the same column replace earlier ones,
// so one patch with the latest value per column goes out when the timer
// fires.
func (c *Coordinator) QueueRowChanges(rowID string, changes map[string]value.Value) {
	if len(changes) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	patch, ok := c.pending[rowID]
	if !ok {
		patch = make(map[string]value.Value, len(changes))
		c.pending[rowID] = patch
	}
	for k, v := range changes {
		patch[k] = v
	}
	if t, ok := c.timers[rowID]; ok {
		t.Stop()
	}
	c.timers[rowID] = time.AfterFunc(c.window, func() {
		c.flushRow(rowID)
	})
}

// FlushRow flushes the row's pending patch immediately, if any.
func (c *Coordinator) FlushRow(rowID string) {
	c.mu.Lock()
	if t, ok := c.timers[rowID]; ok {
		t.Stop()
		delete(c.timers, rowID)
	}
	c.mu.Unlock()
	c.flushRow(rowID)
}

// Flush synchronously flushes every pending patch. Used on teardown and by
// tests; routine operation relies on the timers.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.flushRow(id)
	}
	c.inflight.Wait()
}

// flushRow takes the row's pending patch and sends it as one PATCH call.
func (c *Coordinator) flushRow(rowID string) {
	c.mu.Lock()
	patch, ok := c.pending[rowID]
	if ok {
		delete(c.pending, rowID)
		delete(c.timers, rowID)
	}
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	// Registered under the lock so Close either sees closed checked here or
	// waits for this flush; it can never return between the two.
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.client.PatchRow(ctx, rowID, patch); err != nil {
		c.log.Error(err, "row save failed", "row", rowID, "columns", len(patch))
		c.sink("save", err)
		return
	}
	c.log.V(1).Info("row saved", "row", rowID, "columns", len(patch))
}

// SaveBatch writes a multi-row patch in one call, bypassing the debounce
// tier. Paste and fill-down can touch hundreds of cells; one round trip
// instead of one per row is the point.
func (c *Coordinator) SaveBatch(ctx context.Context, updates []backend.RowUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if err := c.client.PatchBulk(ctx, updates); err != nil {
		c.log.Error(err, "batch save failed", "rows", len(updates))
		c.sink("batch save", err)
		return err
	}
	c.log.V(1).Info("batch saved", "rows", len(updates))
	return nil
}

// Close stops every pending timer and drops un-flushed patches. In-flight
// requests finish but their results are no longer interesting; component
// teardown must not write through a dead session.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.pending = make(map[string]map[string]value.Value)
	c.mu.Unlock()
	c.inflight.Wait()
}
