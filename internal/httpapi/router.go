// Package httpapi serves health, metrics and read-only durable-store
// queries over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/evansbry000/SmartPlugApp/internal/metrics"
	"github.com/evansbry000/SmartPlugApp/internal/store"
)

// DefaultListLimit bounds list endpoints when no limit is given.
const DefaultListLimit = 100

// Reader is the durable store surface the API reads.
type Reader interface {
	Ping(ctx context.Context) error
	ListDeviceIDs(ctx context.Context) ([]string, error)
	GetDevice(ctx context.Context, deviceID string) (store.Snapshot, error)
	ListEvents(ctx context.Context, deviceID string, limit int) ([]store.Snapshot, error)
	ListHistory(ctx context.Context, deviceID string, limit int) ([]store.Snapshot, error)
}

type handler struct {
	store  Reader
	logger *slog.Logger
}

// NewRouter builds the API router. m may be nil, in which case /metrics is
// not mounted.
func NewRouter(r Reader, m *metrics.Collector, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{store: r, logger: logger.With("component", "http")}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(h.logRequests)

	mux.Get("/healthz", m.WrapHandler("/healthz", http.HandlerFunc(h.health)).ServeHTTP)
	if m != nil {
		mux.Handle("/metrics", m.WrapHandler("/metrics", m.Handler()))
	}

	mux.Route("/devices", func(r chi.Router) {
		r.Get("/", m.WrapHandler("/devices", http.HandlerFunc(h.listDevices)).ServeHTTP)
		r.Get("/{deviceID}", m.WrapHandler("/devices/{deviceID}", http.HandlerFunc(h.getDevice)).ServeHTTP)
		r.Get("/{deviceID}/events", m.WrapHandler("/devices/{deviceID}/events", http.HandlerFunc(h.listEvents)).ServeHTTP)
		r.Get("/{deviceID}/history", m.WrapHandler("/devices/{deviceID}/history", http.HandlerFunc(h.listHistory)).ServeHTTP)
	})
	return mux
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listDevices(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListDeviceIDs(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"devices": ids})
}

func (h *handler) getDevice(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.GetDevice(r.Context(), chi.URLParam(r, "deviceID"))
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, h.store.ListEvents)
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	h.listChildren(w, r, h.store.ListHistory)
}

func (h *handler) listChildren(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, deviceID string, limit int) ([]store.Snapshot, error),
) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	docs, err := list(r.Context(), chi.URLParam(r, "deviceID"), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": docs})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
