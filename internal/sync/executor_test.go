package sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-sync-engine/internal/remote"
	"offline-sync-engine/internal/store"
)

// fakeBackend records calls and fails on demand. failRemaining fails that
// many calls before succeeding; alwaysFail never succeeds; failBookings
// rejects only the booking RPC. entered/release, when set, gate the first
// call so tests can observe an in-flight drain.
type fakeBackend struct {
	mu            sync.Mutex
	alwaysFail    bool
	failRemaining int
	failBookings  bool

	calls       int
	bookings    map[string]int
	lastBooking remote.BookingRequest
	creates     int
	updates     int
	deletes     int

	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{bookings: make(map[string]int)}
}

func (f *fakeBackend) gate() {
	if f.entered != nil {
		f.once.Do(func() {
			close(f.entered)
			<-f.release
		})
	}
}

func (f *fakeBackend) step(isBooking bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.alwaysFail {
		return errors.New("connection refused")
	}
	if f.failBookings && isBooking {
		return errors.New("booking conflict")
	}
	if f.failRemaining > 0 {
		f.failRemaining--
		return errors.New("timeout")
	}
	return nil
}

func (f *fakeBackend) CreateBooking(ctx context.Context, req remote.BookingRequest) (*remote.BookingResponse, error) {
	f.gate()
	if err := f.step(true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastBooking = req
	f.bookings[req.ClientRequestID]++
	return &remote.BookingResponse{Success: true, BookingID: "bk-" + req.ClientRequestID}, nil
}

func (f *fakeBackend) CreateDocument(ctx context.Context, collection string, doc map[string]interface{}) (string, error) {
	f.gate()
	if err := f.step(false); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return "doc-1", nil
}

func (f *fakeBackend) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	f.gate()
	if err := f.step(false); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func (f *fakeBackend) DeleteDocument(ctx context.Context, collection, id string) error {
	f.gate()
	if err := f.step(false); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

func (f *fakeBackend) GetDocument(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	if err := f.step(false); err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": id}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxAttempts:       5,
	}
}

func newTestQueue(t *testing.T) *store.BoltQueue {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return store.NewQueueStore(s)
}

func messageOp(id string) *store.Operation {
	return &store.Operation{
		ID:         id,
		Type:       store.OpSendMessage,
		Collection: "messages",
		Payload:    &store.MessagePayload{ThreadID: "t1", SenderID: "u1", Body: "hello"},
		CreatedAt:  time.Now().UTC(),
	}
}

func TestExecutorRetriesUntilExhausted(t *testing.T) {
	fb := newFakeBackend()
	fb.alwaysFail = true

	queue := newTestQueue(t)
	op := messageOp("op-1")
	require.NoError(t, queue.Put(op))

	exec := NewExecutor(fb, queue, fastPolicy())
	err := exec.Execute(context.Background(), op)

	require.Error(t, err)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "op-1", execErr.OpID)
	assert.Equal(t, 5, execErr.Attempts)
	assert.Equal(t, 5, fb.callCount())

	// Retry count bumped once per attempt and persisted.
	persisted, err := queue.Get("op-1")
	require.NoError(t, err)
	assert.Equal(t, 5, persisted.RetryCount)
}

func TestExecutorSucceedsAfterTransientFailures(t *testing.T) {
	fb := newFakeBackend()
	fb.failRemaining = 2

	queue := newTestQueue(t)
	op := messageOp("op-1")
	require.NoError(t, queue.Put(op))

	exec := NewExecutor(fb, queue, fastPolicy())
	require.NoError(t, exec.Execute(context.Background(), op))

	assert.Equal(t, 3, fb.callCount())
	assert.Equal(t, 2, op.RetryCount)
}

func TestExecutorDispatchesByType(t *testing.T) {
	fb := newFakeBackend()
	queue := newTestQueue(t)
	exec := NewExecutor(fb, queue, fastPolicy())
	ctx := context.Background()

	booking := &store.Operation{
		ID: "bk-op", Type: store.OpCreateBooking, Collection: "bookings",
		Payload: &store.BookingPayload{SupplierID: "sup-1", PackageID: "pkg-1", GuestCount: 12},
	}
	require.NoError(t, exec.Execute(ctx, booking))
	assert.Equal(t, "bk-op", fb.lastBooking.ClientRequestID,
		"booking idempotency key must equal the operation id")
	assert.Equal(t, 12, fb.lastBooking.GuestCount)

	require.NoError(t, exec.Execute(ctx, messageOp("msg-op")))
	assert.Equal(t, 1, fb.creates)

	update := &store.Operation{
		ID: "up-op", Type: store.OpUpdateProfile, Collection: "profiles", DocumentID: "u1",
		Payload: &store.ProfilePayload{Fields: map[string]interface{}{"name": "Ada"}},
	}
	require.NoError(t, exec.Execute(ctx, update))
	assert.Equal(t, 1, fb.updates)

	cancel := &store.Operation{
		ID: "cn-op", Type: store.OpCancelBooking, Collection: "bookings", DocumentID: "b1",
		Payload: &store.CancelPayload{Status: "cancelled"},
	}
	require.NoError(t, exec.Execute(ctx, cancel))
	assert.Equal(t, 2, fb.updates)

	del := &store.Operation{
		ID: "dl-op", Type: store.OpDeleteDocument, Collection: "drafts", DocumentID: "d1",
	}
	require.NoError(t, exec.Execute(ctx, del))
	assert.Equal(t, 1, fb.deletes)
}

func TestExecutorStopsWhenOperationRemovedMidFlight(t *testing.T) {
	fb := newFakeBackend()
	fb.alwaysFail = true
	fb.entered = make(chan struct{})
	fb.release = make(chan struct{})

	queue := newTestQueue(t)
	op := messageOp("op-1")
	require.NoError(t, queue.Put(op))

	exec := NewExecutor(fb, queue, fastPolicy())

	errCh := make(chan error, 1)
	go func() { errCh <- exec.Execute(context.Background(), op) }()

	<-fb.entered
	require.NoError(t, queue.Delete("op-1"))
	close(fb.release)

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Removal wins: the entry stays gone and no further attempts run.
	_, err = queue.Get("op-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, fb.callCount())
}

func TestExecutorRejectsMismatchedPayload(t *testing.T) {
	fb := newFakeBackend()
	queue := newTestQueue(t)
	exec := NewExecutor(fb, queue, RetryPolicy{
		InitialDelay:      time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxAttempts:       2,
	})

	op := &store.Operation{
		ID: "bad", Type: store.OpCreateBooking, Collection: "bookings",
		Payload: &store.MessagePayload{Body: "not a booking"},
	}

	err := exec.Execute(context.Background(), op)
	require.Error(t, err)

	// Dispatch failure happens before the backend is reached.
	assert.Equal(t, 0, fb.callCount())
}
