package store

import (
	"encoding/json"
	"fmt"
	"time"
)

type OperationType string

const (
	OpCreateBooking  OperationType = "create_booking"
	OpSendMessage    OperationType = "send_message"
	OpUpdateProfile  OperationType = "update_profile"
	OpSubmitReview   OperationType = "submit_review"
	OpCancelBooking  OperationType = "cancel_booking"
	OpDeleteDocument OperationType = "delete_document"
	OpUpdateDocument OperationType = "update_document"
)

// Payload is the per-type body of an operation. Exactly one concrete
// payload type corresponds to each OperationType; DeleteDocument carries none.
type Payload interface {
	isPayload()
}

type BookingPayload struct {
	SupplierID    string `json:"supplierId"`
	PackageID     string `json:"packageId"`
	EventDate     string `json:"eventDate"`
	StartTime     string `json:"startTime"`
	Notes         string `json:"notes,omitempty"`
	EventName     string `json:"eventName"`
	EventLocation string `json:"eventLocation"`
	GuestCount    int    `json:"guestCount"`
}

type MessagePayload struct {
	ThreadID string `json:"threadId"`
	SenderID string `json:"senderId"`
	Body     string `json:"body"`
}

type ReviewPayload struct {
	BookingID string `json:"bookingId"`
	AuthorID  string `json:"authorId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// ProfilePayload holds the partial field set applied to a profile document.
type ProfilePayload struct {
	Fields map[string]interface{} `json:"fields"`
}

// DocumentPayload holds the partial field set applied to an arbitrary document.
type DocumentPayload struct {
	Fields map[string]interface{} `json:"fields"`
}

// CancelPayload is the status transition applied to a booking.
type CancelPayload struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (BookingPayload) isPayload()  {}
func (MessagePayload) isPayload()  {}
func (ReviewPayload) isPayload()   {}
func (ProfilePayload) isPayload()  {}
func (DocumentPayload) isPayload() {}
func (CancelPayload) isPayload()   {}

// Operation is a pending write intent awaiting remote execution.
type Operation struct {
	ID         string
	Type       OperationType
	Collection string
	DocumentID string
	Payload    Payload
	CreatedAt  time.Time
	RetryCount int

	// Seq is the insertion sequence number, assigned by the queue store
	// on first Put and preserved on overwrite.
	Seq uint64
}

// Validate checks that the payload kind and addressing match the
// operation type before the operation is accepted into the queue.
func (op *Operation) Validate() error {
	needsDocID := func() error {
		if op.DocumentID == "" {
			return fmt.Errorf("operation type %s requires a documentId", op.Type)
		}
		return nil
	}

	switch op.Type {
	case OpCreateBooking:
		if _, ok := op.Payload.(*BookingPayload); !ok {
			return fmt.Errorf("operation type %s requires a booking payload", op.Type)
		}
	case OpSendMessage:
		if _, ok := op.Payload.(*MessagePayload); !ok {
			return fmt.Errorf("operation type %s requires a message payload", op.Type)
		}
	case OpSubmitReview:
		if _, ok := op.Payload.(*ReviewPayload); !ok {
			return fmt.Errorf("operation type %s requires a review payload", op.Type)
		}
	case OpUpdateProfile:
		if _, ok := op.Payload.(*ProfilePayload); !ok {
			return fmt.Errorf("operation type %s requires a profile payload", op.Type)
		}
		return needsDocID()
	case OpUpdateDocument:
		if _, ok := op.Payload.(*DocumentPayload); !ok {
			return fmt.Errorf("operation type %s requires a document payload", op.Type)
		}
		return needsDocID()
	case OpCancelBooking:
		if _, ok := op.Payload.(*CancelPayload); !ok {
			return fmt.Errorf("operation type %s requires a cancel payload", op.Type)
		}
		return needsDocID()
	case OpDeleteDocument:
		if op.Payload != nil {
			return fmt.Errorf("operation type %s carries no payload", op.Type)
		}
		return needsDocID()
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// operationRecord is the persisted form of an Operation.
type operationRecord struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	CreatedAt  string          `json:"createdAt"`
	RetryCount int             `json:"retryCount"`
	Seq        uint64          `json:"seq"`
}

func encodeOperation(op *Operation) ([]byte, error) {
	rec := operationRecord{
		ID:         op.ID,
		Type:       string(op.Type),
		Collection: op.Collection,
		DocumentID: op.DocumentID,
		CreatedAt:  op.CreatedAt.UTC().Format(time.RFC3339Nano),
		RetryCount: op.RetryCount,
		Seq:        op.Seq,
	}

	if op.Payload != nil {
		data, err := json.Marshal(op.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload for %s: %w", op.ID, err)
		}
		rec.Data = data
	}

	return json.Marshal(rec)
}

func decodeOperation(raw []byte) (*Operation, error) {
	var rec operationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation record: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt for %s: %w", rec.ID, err)
	}

	payload, err := DecodePayload(OperationType(rec.Type), rec.Data)
	if err != nil {
		return nil, err
	}

	return &Operation{
		ID:         rec.ID,
		Type:       OperationType(rec.Type),
		Collection: rec.Collection,
		DocumentID: rec.DocumentID,
		Payload:    payload,
		CreatedAt:  createdAt,
		RetryCount: rec.RetryCount,
		Seq:        rec.Seq,
	}, nil
}

// DecodePayload unmarshals the raw payload body for an operation type.
func DecodePayload(t OperationType, data json.RawMessage) (Payload, error) {
	if len(data) == 0 {
		if t == OpDeleteDocument {
			return nil, nil
		}
		return nil, fmt.Errorf("missing payload for operation type %s", t)
	}

	unmarshal := func(v Payload) (Payload, error) {
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", t, err)
		}
		return v, nil
	}

	switch t {
	case OpCreateBooking:
		p := &BookingPayload{}
		return unmarshal(p)
	case OpSendMessage:
		p := &MessagePayload{}
		return unmarshal(p)
	case OpSubmitReview:
		p := &ReviewPayload{}
		return unmarshal(p)
	case OpUpdateProfile:
		p := &ProfilePayload{}
		return unmarshal(p)
	case OpUpdateDocument:
		p := &DocumentPayload{}
		return unmarshal(p)
	case OpCancelBooking:
		p := &CancelPayload{}
		return unmarshal(p)
	case OpDeleteDocument:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown operation type %q", t)
	}
}

// CacheEntry is a cached value with its write time and time-to-live.
// TTL enforcement lives in the cache facade, not in the store.
type CacheEntry struct {
	Data      map[string]interface{}
	Timestamp time.Time
	TTL       time.Duration
}

type cacheRecord struct {
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
	TTLMs     int64                  `json:"ttlMs"`
}

func encodeCacheEntry(e CacheEntry) ([]byte, error) {
	return json.Marshal(cacheRecord{
		Data:      e.Data,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		TTLMs:     e.TTL.Milliseconds(),
	})
}

func decodeCacheEntry(raw []byte) (CacheEntry, error) {
	var rec cacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CacheEntry{}, fmt.Errorf("failed to unmarshal cache record: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("invalid cache timestamp: %w", err)
	}

	return CacheEntry{
		Data:      rec.Data,
		Timestamp: ts,
		TTL:       time.Duration(rec.TTLMs) * time.Millisecond,
	}, nil
}
