package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sparshcare/wellness-platform/internal/appointments"
	"github.com/sparshcare/wellness-platform/pkg/logging"
)

// SlotStore is the appointment persistence surface the handler needs.
type SlotStore interface {
	Create(ctx context.Context, date, slotTime, counselorName string) (appointments.Slot, error)
	ListOpen(ctx context.Context) ([]appointments.Slot, error)
	Request(ctx context.Context, id uuid.UUID, studentID, studentName string) error
	Confirm(ctx context.Context, id uuid.UUID) error
	Reject(ctx context.Context, id uuid.UUID) error
}

// SlotsHandler exposes appointment slot endpoints for students and
// counselor tooling.
type SlotsHandler struct {
	store  SlotStore
	logger *logging.Logger
}

// NewSlotsHandler wires the slot endpoints.
func NewSlotsHandler(store SlotStore, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{store: store, logger: logger}
}

// ListOpen handles GET /api/slots.
func (h *SlotsHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	slots, err := h.store.ListOpen(r.Context())
	if err != nil {
		h.logger.Error("slot listing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not list slots")
		return
	}
	if slots == nil {
		slots = []appointments.Slot{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// Create handles POST /api/slots; counselor tooling only.
func (h *SlotsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date          string `json:"date"`
		Time          string `json:"time"`
		CounselorName string `json:"counselor_name"`
	}
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if body.Date == "" || body.Time == "" || body.CounselorName == "" {
		respondError(w, http.StatusBadRequest, "date, time and counselor_name are required")
		return
	}

	slot, err := h.store.Create(r.Context(), body.Date, body.Time, body.CounselorName)
	if err != nil {
		h.logger.Error("slot creation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not create slot")
		return
	}
	respondJSON(w, http.StatusCreated, slot)
}

// Request handles POST /api/slots/{slotID}/request. A lost race maps to
// 409 so the client can re-fetch open slots.
func (h *SlotsHandler) Request(w http.ResponseWriter, r *http.Request) {
	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	var body struct {
		StudentID   string `json:"student_id"`
		StudentName string `json:"student_name"`
	}
	if !decodeBody(w, r, h.logger, &body) {
		return
	}
	if body.StudentID == "" {
		respondError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	err = h.store.Request(r.Context(), slotID, body.StudentID, body.StudentName)
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		respondError(w, http.StatusConflict, "slot is no longer open")
	case err != nil:
		h.logger.Error("slot request failed", "error", err, "slot_id", slotID)
		respondError(w, http.StatusInternalServerError, "could not request slot")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": string(appointments.StatusRequested)})
	}
}

// Confirm handles POST /api/slots/{slotID}/confirm; counselor tooling.
func (h *SlotsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.Confirm, appointments.StatusConfirmed)
}

// Reject handles POST /api/slots/{slotID}/reject; counselor tooling.
func (h *SlotsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.Reject, appointments.StatusOpen)
}

func (h *SlotsHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error, resulting appointments.SlotStatus) {
	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	err = fn(r.Context(), slotID)
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		respondError(w, http.StatusNotFound, "no requested slot with that id")
	case err != nil:
		h.logger.Error("slot transition failed", "error", err, "slot_id", slotID)
		respondError(w, http.StatusInternalServerError, "could not update slot")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": string(resulting)})
	}
}
