package remote

import (
	"context"
	"fmt"
)

// BookingRequest is the server-validated booking RPC. ClientRequestID is
// the caller-supplied idempotency key; the server deduplicates by it, so
// a retried request after a timeout creates at most one booking.
type BookingRequest struct {
	SupplierID      string `json:"supplierId"`
	PackageID       string `json:"packageId"`
	EventDate       string `json:"eventDate"`
	StartTime       string `json:"startTime"`
	Notes           string `json:"notes,omitempty"`
	EventName       string `json:"eventName"`
	EventLocation   string `json:"eventLocation"`
	GuestCount      int    `json:"guestCount"`
	ClientRequestID string `json:"clientRequestId"`
}

type BookingResponse struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Backend is the remote write/read service the queue replays against.
type Backend interface {
	// CreateBooking goes through a server-validated RPC rather than a
	// direct document write, so conflict checks happen atomically
	// server-side.
	CreateBooking(ctx context.Context, req BookingRequest) (*BookingResponse, error)

	// CreateDocument appends a new document and returns its id.
	CreateDocument(ctx context.Context, collection string, doc map[string]interface{}) (string, error)

	// UpdateDocument applies a partial field update to an existing document.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error

	DeleteDocument(ctx context.Context, collection, id string) error

	// GetDocument reads a document, used by cache fetchers.
	GetDocument(ctx context.Context, collection, id string) (map[string]interface{}, error)
}

// Error is a rejection the server itself produced, as opposed to a
// transport failure. Both are treated as retryable by the executor; the
// distinction exists so callers can log and inspect them separately.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote rejected request (status %d): %s", e.Status, e.Message)
}
