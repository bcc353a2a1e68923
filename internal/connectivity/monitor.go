package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"offline-sync-engine/internal/logger"
)

// Source supplies the raw online/offline signal, typically a network probe.
type Source interface {
	Online(ctx context.Context) (bool, error)
}

// Monitor wraps a Source and exposes the current state plus an
// edge-triggered change stream: a value is emitted only when the state
// flips, never on every poll.
type Monitor struct {
	source       Source
	pollInterval time.Duration
	optimistic   bool

	mu      sync.RWMutex
	online  bool
	started bool

	changes chan bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type Config struct {
	PollInterval time.Duration

	// Optimistic controls the state assumed when the source errors:
	// true means "online", so the queue is not starved by a broken probe.
	Optimistic bool
}

func NewMonitor(source Source, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}

	return &Monitor{
		source:       source,
		pollInterval: cfg.PollInterval,
		optimistic:   cfg.Optimistic,
		online:       cfg.Optimistic,
		changes:      make(chan bool, 16),
		stopCh:       make(chan struct{}),
	}
}

// Start begins polling the source. It probes once synchronously so the
// initial state reflects reality rather than the optimistic default.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	initial := m.probe()
	m.mu.Lock()
	m.online = initial
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop()

	logger.Log.Info("Connectivity monitor started",
		zap.Bool("online", m.Current()),
		zap.Duration("pollInterval", m.pollInterval))
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

// Current reports the last observed state, true meaning online.
func (m *Monitor) Current() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Changes returns the edge-triggered state stream.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// Set injects a state observation directly, bypassing the poll loop. It
// serves push-style signal sources and manual overrides.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	logger.Log.Info("Connectivity changed", zap.Bool("online", online))

	select {
	case m.changes <- online:
	default:
		logger.Log.Warn("Connectivity change dropped, subscriber not keeping up")
	}
}

func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Set(m.probe())
		}
	}
}

func (m *Monitor) probe() bool {
	if m.source == nil {
		return m.optimistic
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.pollInterval)
	defer cancel()

	online, err := m.source.Online(ctx)
	if err != nil {
		logger.Log.Debug("Connectivity probe failed", zap.Error(err))
		return m.optimistic
	}
	return online
}
