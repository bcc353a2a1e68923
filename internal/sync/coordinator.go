package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"offline-sync-engine/internal/cache"
	"offline-sync-engine/internal/connectivity"
	"offline-sync-engine/internal/logger"
	"offline-sync-engine/internal/store"
)

// Coordinator owns the sync status state machine and the drain loop. All
// drains run on a single event-loop goroutine; enqueues, manual sync
// requests, the pending-retry timer and offline-to-online edges only post
// a signal to that loop, so at most one drain is ever in flight.
type Coordinator struct {
	queue   store.QueueStore
	exec    *Executor
	monitor *connectivity.Monitor
	cache   *cache.Cache

	retryInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	status     Status
	syncing    bool
	started    bool
	retryTimer *time.Timer

	drainCh chan struct{}
	wg      sync.WaitGroup

	bcast broadcaster
}

// NewCoordinator wires the coordinator. cache may be nil when no read
// cache is in use; successful writes then skip invalidation.
func NewCoordinator(queue store.QueueStore, exec *Executor, monitor *connectivity.Monitor, c *cache.Cache, retryInterval time.Duration) *Coordinator {
	if retryInterval <= 0 {
		retryInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		queue:         queue,
		exec:          exec,
		monitor:       monitor,
		cache:         c,
		retryInterval: retryInterval,
		ctx:           ctx,
		cancel:        cancel,
		status:        StatusIdle,
		drainCh:       make(chan struct{}, 1),
	}
}

// Start launches the event loop and registers the one connectivity
// subscription used for the process lifetime.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	if !c.monitor.Current() {
		c.setStatus(StatusOffline)
	} else if n, err := c.queue.Count(); err == nil && n > 0 {
		c.signalDrain()
	}

	c.wg.Add(1)
	go c.loop()

	logger.Log.Info("Sync coordinator started",
		zap.Duration("retryInterval", c.retryInterval))
}

// Stop shuts the loop down, cancelling any in-flight drain.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.bcast.closeAll()

	logger.Log.Info("Sync coordinator stopped")
}

func (c *Coordinator) loop() {
	defer c.wg.Done()

	changes := c.monitor.Changes()

	for {
		select {
		case <-c.ctx.Done():
			return
		case online := <-changes:
			if online {
				c.signalDrain()
			} else {
				c.cancelRetryTimer()
				c.setStatus(StatusOffline)
			}
		case <-c.drainCh:
			c.drain()
		}
	}
}

// EnqueueOperation persists a new write intent and, when online, triggers
// an immediate drain. Offline, the operation waits and the status moves
// to offline.
func (c *Coordinator) EnqueueOperation(t store.OperationType, collection, documentID string, payload store.Payload) (string, error) {
	op := &store.Operation{
		ID:         uuid.New().String(),
		Type:       t,
		Collection: collection,
		DocumentID: documentID,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	if err := op.Validate(); err != nil {
		return "", err
	}

	if err := c.queue.Put(op); err != nil {
		return "", fmt.Errorf("failed to enqueue operation: %w", err)
	}

	logger.Log.Info("Operation enqueued",
		zap.String("id", op.ID),
		zap.String("type", string(op.Type)),
		zap.String("collection", op.Collection))

	if c.monitor.Current() {
		c.signalDrain()
	} else {
		c.setStatus(StatusOffline)
	}

	return op.ID, nil
}

// SyncNow requests an immediate drain. It reports false when offline or
// when a drain is already running; a concurrent second request is a
// no-op either way because the drain signal channel coalesces.
func (c *Coordinator) SyncNow() bool {
	if !c.monitor.Current() {
		c.setStatus(StatusOffline)
		return false
	}

	c.mu.Lock()
	syncing := c.syncing
	c.mu.Unlock()
	if syncing {
		return false
	}

	c.signalDrain()
	return true
}

// CancelOperation removes a queued operation. If an attempt on it is
// already in flight the remote call may still complete; removal here only
// guarantees the operation is not attempted again.
func (c *Coordinator) CancelOperation(id string) error {
	if _, err := c.queue.Get(id); err != nil {
		return err
	}
	if err := c.queue.Delete(id); err != nil {
		return fmt.Errorf("failed to cancel operation %s: %w", id, err)
	}

	logger.Log.Info("Operation cancelled", zap.String("id", id))
	return nil
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Pending returns the queued operations in insertion order.
func (c *Coordinator) Pending() ([]*store.Operation, error) {
	return c.queue.ListAll()
}

// Subscribe attaches a status stream consumer. Consumers may come and go
// without affecting queue processing.
func (c *Coordinator) Subscribe() (int, <-chan Status) {
	return c.bcast.subscribe()
}

func (c *Coordinator) Unsubscribe(id int) {
	c.bcast.unsubscribe(id)
}

func (c *Coordinator) signalDrain() {
	select {
	case c.drainCh <- struct{}{}:
	default:
	}
}

// drain works a point-in-time snapshot of the queue, one operation at a
// time. A failed operation is skipped, not retried in line: the pass
// continues to the next entry and the leftovers wait for the scheduled
// whole-queue retry. This trades cross-operation ordering for throughput.
func (c *Coordinator) drain() {
	if !c.monitor.Current() {
		c.setStatus(StatusOffline)
		return
	}

	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return
	}
	c.syncing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
	}()

	c.setStatus(StatusSyncing)

	snapshot, err := c.queue.ListAll()
	if err != nil {
		logger.Log.Error("Failed to read queue, drain aborted", zap.Error(err))
		c.setStatus(StatusError)
		return
	}

	for _, op := range snapshot {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if err := c.exec.Execute(c.ctx, op); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Log.Info("Operation cancelled during attempt",
					zap.String("id", op.ID))
				continue
			}
			logger.Log.Warn("Operation left queued for next pass",
				zap.String("id", op.ID), zap.Error(err))
			continue
		}

		if err := c.queue.Delete(op.ID); err != nil {
			logger.Log.Error("Failed to remove completed operation",
				zap.String("id", op.ID), zap.Error(err))
			continue
		}

		c.invalidateFor(op)

		logger.Log.Info("Operation synced",
			zap.String("id", op.ID), zap.String("type", string(op.Type)))
	}

	remaining, err := c.queue.Count()
	if err != nil {
		logger.Log.Error("Failed to count queue after drain", zap.Error(err))
		c.setStatus(StatusError)
		return
	}

	if remaining == 0 {
		c.setStatus(StatusComplete)
		return
	}

	c.setStatus(StatusPendingRetry)
	c.scheduleRetry(remaining)
}

func (c *Coordinator) scheduleRetry(remaining int) {
	logger.Log.Info("Scheduling whole-queue retry",
		zap.Int("remaining", remaining),
		zap.Duration("in", c.retryInterval))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = time.AfterFunc(c.retryInterval, func() {
		if !c.monitor.Current() {
			return
		}
		if n, err := c.queue.Count(); err != nil || n == 0 {
			return
		}
		c.signalDrain()
	})
}

func (c *Coordinator) cancelRetryTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// invalidateFor busts cached reads made stale by a confirmed write.
func (c *Coordinator) invalidateFor(op *store.Operation) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateMatching(op.Collection + ":"); err != nil {
		logger.Log.Warn("Cache invalidation failed",
			zap.String("collection", op.Collection), zap.Error(err))
	}
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.mu.Unlock()

	logger.Log.Info("Sync status changed", zap.String("status", string(s)))
	c.bcast.publish(s)
}
