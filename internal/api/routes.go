// Package api is the local control surface the UI layer talks to:
// enqueue and cancel operations, trigger syncs, observe status.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"offline-sync-engine/internal/store"
	"offline-sync-engine/internal/sync"
)

type Handler struct {
	coord       *sync.Coordinator
	corsOrigins []string
}

func NewHandler(coord *sync.Coordinator, corsOrigins []string) *Handler {
	return &Handler{
		coord:       coord,
		corsOrigins: corsOrigins,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware(h.corsOrigins))

	r.Get("/health", h.HealthCheck)
	r.Get("/ws/status", h.StatusStream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/operations", h.EnqueueOperation)
		r.Get("/operations", h.ListOperations)
		r.Delete("/operations/{id}", h.CancelOperation)

		r.Post("/sync/trigger", h.TriggerSync)
		r.Get("/sync/status", h.GetSyncStatus)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type enqueueRequest struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func (h *Handler) EnqueueOperation(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	payload, err := store.DecodePayload(store.OperationType(req.Type), req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.coord.EnqueueOperation(store.OperationType(req.Type), req.Collection, req.DocumentID, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

type operationView struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Collection string `json:"collection"`
	DocumentID string `json:"documentId,omitempty"`
	CreatedAt  string `json:"createdAt"`
	RetryCount int    `json:"retryCount"`
}

func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.coord.Pending()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, operationView{
			ID:         op.ID,
			Type:       string(op.Type),
			Collection: op.Collection,
			DocumentID: op.DocumentID,
			CreatedAt:  op.CreatedAt.UTC().Format(time.RFC3339Nano),
			RetryCount: op.RetryCount,
		})
	}

	json.NewEncoder(w).Encode(views)
}

func (h *Handler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.coord.CancelOperation(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "operation not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	started := h.coord.SyncNow()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"started": started,
		"status":  string(h.coord.Status()),
	})
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.coord.Pending()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  string(h.coord.Status()),
		"pending": len(pending),
	})
}

// CorsMiddleware allows the configured origins. An empty list or a "*"
// entry allows any origin; otherwise the request Origin is echoed back
// only when it matches the list.
func CorsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAny := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAny {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

			if r.Method == "OPTIONS" {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
