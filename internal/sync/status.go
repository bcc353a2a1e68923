package sync

import (
	"sync"

	"offline-sync-engine/internal/logger"
)

// Status is the process-wide sync state. Transitions are published on the
// coordinator's status stream.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusSyncing      Status = "syncing"
	StatusComplete     Status = "complete"
	StatusPendingRetry Status = "pending_retry"
	StatusOffline      Status = "offline"
	StatusError        Status = "error"
)

// broadcaster fans status transitions out to subscribers. Sends never
// block: a subscriber that stops draining loses transitions, not the
// coordinator.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Status
	next int
}

func (b *broadcaster) subscribe() (int, <-chan Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan Status)
	}

	id := b.next
	b.next++

	ch := make(chan Status, 16)
	b.subs[id] = ch
	return id, ch
}

func (b *broadcaster) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) publish(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			logger.Log.Debug("Status subscriber not keeping up, transition dropped")
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
