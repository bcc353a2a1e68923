package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu     sync.Mutex
	online bool
	err    error
}

func (s *stubSource) Online(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online, s.err
}

func (s *stubSource) set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

func recvChange(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for connectivity change")
		return false
	}
}

func assertNoChange(t *testing.T, ch <-chan bool) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected connectivity change: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetIsEdgeTriggered(t *testing.T) {
	m := NewMonitor(nil, Config{Optimistic: true})

	assert.True(t, m.Current())

	m.Set(false)
	assert.False(t, m.Current())
	assert.False(t, recvChange(t, m.Changes()))

	// Same state again: no emission.
	m.Set(false)
	assertNoChange(t, m.Changes())

	m.Set(true)
	assert.True(t, recvChange(t, m.Changes()))
	assert.True(t, m.Current())
}

func TestStartProbesInitialState(t *testing.T) {
	m := NewMonitor(&stubSource{online: false}, Config{
		PollInterval: time.Hour,
		Optimistic:   true,
	})
	m.Start()
	defer m.Stop()

	assert.False(t, m.Current())
}

func TestSourceErrorFallsBackToPolicy(t *testing.T) {
	broken := &stubSource{err: errors.New("probe unavailable")}

	optimistic := NewMonitor(broken, Config{PollInterval: time.Hour, Optimistic: true})
	optimistic.Start()
	defer optimistic.Stop()
	assert.True(t, optimistic.Current(), "broken probe must not starve the queue")

	pessimistic := NewMonitor(broken, Config{PollInterval: time.Hour, Optimistic: false})
	pessimistic.Start()
	defer pessimistic.Stop()
	assert.False(t, pessimistic.Current())
}

func TestPollLoopEmitsOnFlip(t *testing.T) {
	src := &stubSource{online: true}
	m := NewMonitor(src, Config{PollInterval: 10 * time.Millisecond, Optimistic: true})
	m.Start()
	defer m.Stop()

	require.True(t, m.Current())

	src.set(false)
	assert.False(t, recvChange(t, m.Changes()))

	src.set(true)
	assert.True(t, recvChange(t, m.Changes()))
}

func TestStopIsIdempotent(t *testing.T) {
	m := NewMonitor(nil, Config{Optimistic: true})
	m.Start()
	m.Stop()
	m.Stop()
}
