// Package httpapi публикует desk-сервис по HTTP/JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/desk"
)

const maxBodyBytes = 1 << 16

// Handler маршрутизирует запросы к desk.Service.
type Handler struct {
	svc    *desk.Service
	logger *log.Entry
	mux    *http.ServeMux
}

// NewHandler регистрирует маршруты API.
func NewHandler(svc *desk.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	h := &Handler{svc: svc, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/desks", h.openDesk)
	h.mux.HandleFunc("GET /v1/desks/{id}", h.getDesk)
	h.mux.HandleFunc("POST /v1/desks/{id}/lines", h.addProduct)
	h.mux.HandleFunc("POST /v1/desks/{id}/undo", h.undo)
	h.mux.HandleFunc("POST /v1/desks/{id}/redo", h.redo)
	h.mux.HandleFunc("POST /v1/desks/{id}/macros", h.saveMacro)
	h.mux.HandleFunc("POST /v1/desks/{id}/snapshots", h.snapshot)
	h.mux.HandleFunc("POST /v1/desks/{id}/snapshots/{index}/restore", h.restore)
	h.mux.HandleFunc("POST /v1/desks/{id}/process", h.process)
	h.mux.HandleFunc("GET /v1/desks/{id}/timeline", h.timeline)
	h.mux.HandleFunc("GET /v1/macros", h.listMacros)
	h.mux.HandleFunc("GET /v1/macros/{id}", h.getMacro)
	h.mux.HandleFunc("POST /v1/macros/{id}/replay", h.replayMacro)
	h.mux.HandleFunc("GET /v1/products", h.products)

	return h
}

// ServeHTTP реализует http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)

	h.logger.WithFields(log.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      rec.status,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Debug("http request")
}

type addProductRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int32 `json:"quantity"`
}

type snapshotResponse struct {
	Index int `json:"index"`
}

type timelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) openDesk(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, h.svc.Open())
}

func (h *Handler) getDesk(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.PathValue("id"))
	h.respond(w, http.StatusOK, view, err)
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	view, err := h.svc.AddProduct(r.PathValue("id"), req.ProductID, req.Quantity)
	h.respond(w, http.StatusOK, view, err)
}

func (h *Handler) undo(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Undo(r.PathValue("id"))
	h.respond(w, http.StatusOK, view, err)
}

func (h *Handler) redo(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Redo(r.PathValue("id"))
	h.respond(w, http.StatusOK, view, err)
}

func (h *Handler) saveMacro(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.SaveMacro(r.PathValue("id"))
	h.respond(w, http.StatusCreated, m, err)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	index, err := h.svc.Snapshot(r.PathValue("id"))
	h.respond(w, http.StatusCreated, snapshotResponse{Index: index}, err)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	view, err := h.svc.Restore(r.PathValue("id"), index)
	h.respond(w, http.StatusOK, view, err)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Process(r.PathValue("id"))
	h.respond(w, http.StatusOK, summary, err)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Timeline(r.PathValue("id"))
	if err != nil {
		h.respond(w, http.StatusOK, nil, err)
		return
	}
	result := make([]timelineEvent, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEvent{Type: event.Type, Reason: event.Reason, Occurred: event.Occurred})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listMacros(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListMacros())
}

func (h *Handler) getMacro(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	m, err := h.svc.GetMacro(id)
	h.respond(w, http.StatusOK, m, err)
}

func (h *Handler) replayMacro(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	view, err := h.svc.ReplayMacro(id)
	h.respond(w, http.StatusCreated, view, err)
}

func (h *Handler) products(w http.ResponseWriter, _ *http.Request) {
	products, err := h.svc.Products()
	h.respond(w, http.StatusOK, products, err)
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		code := statusFromError(err)
		if code == http.StatusInternalServerError {
			h.logger.WithError(err).Error("desk operation failed")
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, status, body)
}

// statusFromError сопоставляет доменные ошибки HTTP-кодам.
func statusFromError(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyHistory), errors.Is(err, domain.ErrMacroEmpty):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	case domain.IsInvalidCommand(err), errors.Is(err, domain.ErrNullMemento):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	value, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid %s: %q", name, r.PathValue(name))})
		return 0, false
	}
	return value, true
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
