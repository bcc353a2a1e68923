package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"offline-sync-engine/internal/logger"
	"offline-sync-engine/internal/remote"
	"offline-sync-engine/internal/store"
)

// RetryPolicy governs the attempts made on a single operation within one
// Execute call. The delay grows by BackoffMultiplier between attempts of
// the same operation; other queued operations are not held up beyond the
// current drain iteration.
type RetryPolicy struct {
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxAttempts       int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
		MaxAttempts:       5,
	}
}

// ExecError reports an operation whose attempts are exhausted. The
// operation stays queued; the coordinator schedules the next whole-queue
// pass.
type ExecError struct {
	OpID     string
	Attempts int
	Last     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("operation %s failed after %d attempts: %v", e.OpID, e.Attempts, e.Last)
}

func (e *ExecError) Unwrap() error {
	return e.Last
}

// Executor dispatches one operation by type to the remote backend,
// retrying with exponential backoff. Every failure is treated as
// retryable: the queue has no dead-letter mechanism, so a permanently
// rejected operation exhausts its attempts and stays queued for the next
// pass.
type Executor struct {
	backend remote.Backend
	queue   store.QueueStore
	policy  RetryPolicy
}

func NewExecutor(backend remote.Backend, queue store.QueueStore, policy RetryPolicy) *Executor {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Executor{
		backend: backend,
		queue:   queue,
		policy:  policy,
	}
}

func (e *Executor) Execute(ctx context.Context, op *store.Operation) error {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     e.policy.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          e.policy.BackoffMultiplier,
		MaxInterval:         24 * time.Hour,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(e.policy.MaxAttempts-1)), ctx)

	attempts := 0
	var lastErr error

	err := backoff.Retry(func() error {
		attempts++

		err := e.dispatch(ctx, op)
		if err == nil {
			return nil
		}
		lastErr = err

		op.RetryCount++
		perr := e.queue.Update(op.ID, func(stored *store.Operation) {
			stored.RetryCount = op.RetryCount
		})
		if errors.Is(perr, store.ErrNotFound) {
			// Cancelled while this attempt ran. Stop retrying so the
			// entry is not resurrected.
			lastErr = fmt.Errorf("operation %s no longer queued: %w", op.ID, store.ErrNotFound)
			return backoff.Permanent(lastErr)
		}
		if perr != nil {
			logger.Log.Error("Failed to persist retry count",
				zap.String("id", op.ID), zap.Error(perr))
		}

		logger.Log.Warn("Operation attempt failed",
			zap.String("id", op.ID),
			zap.String("type", string(op.Type)),
			zap.Int("attempt", attempts),
			zap.Int("maxAttempts", e.policy.MaxAttempts),
			zap.Error(err),
		)
		return err
	}, bo)

	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return &ExecError{OpID: op.ID, Attempts: attempts, Last: lastErr}
	}
	return nil
}

func (e *Executor) dispatch(ctx context.Context, op *store.Operation) error {
	switch op.Type {
	case store.OpCreateBooking:
		p, ok := op.Payload.(*store.BookingPayload)
		if !ok {
			return fmt.Errorf("operation %s: expected booking payload, got %T", op.ID, op.Payload)
		}
		_, err := e.backend.CreateBooking(ctx, remote.BookingRequest{
			SupplierID:      p.SupplierID,
			PackageID:       p.PackageID,
			EventDate:       p.EventDate,
			StartTime:       p.StartTime,
			Notes:           p.Notes,
			EventName:       p.EventName,
			EventLocation:   p.EventLocation,
			GuestCount:      p.GuestCount,
			ClientRequestID: op.ID,
		})
		return err

	case store.OpSendMessage:
		p, ok := op.Payload.(*store.MessagePayload)
		if !ok {
			return fmt.Errorf("operation %s: expected message payload, got %T", op.ID, op.Payload)
		}
		_, err := e.backend.CreateDocument(ctx, op.Collection, map[string]interface{}{
			"threadId":        p.ThreadID,
			"senderId":        p.SenderID,
			"body":            p.Body,
			"createdAt":       op.CreatedAt.UTC().Format(time.RFC3339Nano),
			"clientRequestId": op.ID,
		})
		return err

	case store.OpSubmitReview:
		p, ok := op.Payload.(*store.ReviewPayload)
		if !ok {
			return fmt.Errorf("operation %s: expected review payload, got %T", op.ID, op.Payload)
		}
		_, err := e.backend.CreateDocument(ctx, op.Collection, map[string]interface{}{
			"bookingId":       p.BookingID,
			"authorId":        p.AuthorID,
			"rating":          p.Rating,
			"comment":         p.Comment,
			"createdAt":       op.CreatedAt.UTC().Format(time.RFC3339Nano),
			"clientRequestId": op.ID,
		})
		return err

	case store.OpUpdateProfile:
		p, ok := op.Payload.(*store.ProfilePayload)
		if !ok {
			return fmt.Errorf("operation %s: expected profile payload, got %T", op.ID, op.Payload)
		}
		return e.backend.UpdateDocument(ctx, op.Collection, op.DocumentID, p.Fields)

	case store.OpUpdateDocument:
		p, ok := op.Payload.(*store.DocumentPayload)
		if !ok {
			return fmt.Errorf("operation %s: expected document payload, got %T", op.ID, op.Payload)
		}
		return e.backend.UpdateDocument(ctx, op.Collection, op.DocumentID, p.Fields)

	case store.OpCancelBooking:
		p, ok := op.Payload.(*store.CancelPayload)
		if !ok {
			return fmt.Errorf("operation %s: expected cancel payload, got %T", op.ID, op.Payload)
		}
		fields := map[string]interface{}{"status": p.Status}
		if p.Reason != "" {
			fields["cancelReason"] = p.Reason
		}
		return e.backend.UpdateDocument(ctx, op.Collection, op.DocumentID, fields)

	case store.OpDeleteDocument:
		return e.backend.DeleteDocument(ctx, op.Collection, op.DocumentID)

	default:
		return fmt.Errorf("operation %s: unknown type %q", op.ID, op.Type)
	}
}
