package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wltan/clinicdesk/services/clinic-service/internal/booking"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
)

type AppointmentHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type createAppointmentRequest struct {
	PatientName     string   `json:"patient_name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Weight          *float64 `json:"weight,omitempty"`
	Height          *float64 `json:"height,omitempty"`
	TreatmentID     string   `json:"treatment_id"`
	AppointmentTime string   `json:"appointment_time"`
	Notes           string   `json:"notes,omitempty"`
}

type appointmentItem struct {
	AppointmentID   string     `json:"appointment_id"`
	PatientName     string     `json:"patient_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Weight          *float64   `json:"weight,omitempty"`
	Height          *float64   `json:"height,omitempty"`
	TreatmentID     string     `json:"treatment_id"`
	AppointmentTime string     `json:"appointment_time"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	History         []noteItem `json:"history,omitempty"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

type noteItem struct {
	NoteID    string `json:"note_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	AddedBy   string `json:"added_by"`
	AddedByID string `json:"added_by_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type changeStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
}

type rescheduleRequest struct {
	AppointmentID   string `json:"appointment_id"`
	AppointmentTime string `json:"appointment_time"`
	Reason          string `json:"reason,omitempty"`
}

func appointmentToItem(appt model.Appointment, notes []model.Note) appointmentItem {
	item := appointmentItem{
		AppointmentID:   appt.ID,
		PatientName:     appt.PatientName,
		Email:           appt.Email,
		Phone:           appt.Phone,
		Weight:          appt.Weight,
		Height:          appt.Height,
		TreatmentID:     appt.TreatmentID,
		AppointmentTime: appt.AppointmentTime.UTC().Format(time.RFC3339),
		Status:          appt.Status,
		Notes:           appt.Notes,
		CreatedAt:       appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, n := range notes {
		item.History = append(item.History, noteToItem(n))
	}
	return item
}

func noteToItem(n model.Note) noteItem {
	return noteItem{
		NoteID:    n.ID,
		Type:      n.Type,
		Content:   n.Content,
		AddedBy:   n.AddedBy,
		AddedByID: n.AddedByID,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Create books a new appointment. This endpoint is public; the patient is
// linked to an account (created on the fly if needed) by email.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	var apptTime time.Time
	if strings.TrimSpace(req.AppointmentTime) != "" {
		t, err := time.Parse(time.RFC3339, req.AppointmentTime)
		if err != nil {
			http.Error(w, "invalid appointment_time", http.StatusBadRequest)
			return
		}
		apptTime = t
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateInput{
		PatientName:     req.PatientName,
		Email:           req.Email,
		Phone:           req.Phone,
		Weight:          req.Weight,
		Height:          req.Height,
		TreatmentID:     req.TreatmentID,
		AppointmentTime: apptTime,
		Notes:           req.Notes,
	})
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentToItem(appt, nil))
}

// BookedSlots returns the taken time-of-day slots for one calendar day, for
// the public booking form.
func (h *AppointmentHandler) BookedSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.BookedSlots(r.Context(), date)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booked_slots": slots})
}

// List returns appointments for staff views. With ?status= it filters by
// lifecycle state; without it, it returns everything with full note history.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		appts, err := h.svc.ListByStatus(r.Context(), status)
		if err != nil {
			writeBookingError(w, h.logger, err)
			return
		}
		items := make([]appointmentItem, 0, len(appts))
		for _, appt := range appts {
			items = append(items, appointmentToItem(appt, nil))
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	limit := 200
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	appts, history, err := h.svc.ListAll(r.Context(), limit)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, appointmentToItem(appt, history[appt.ID]))
	}
	writeJSON(w, http.StatusOK, items)
}

// Get returns one appointment with its full note history.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	appt, notes, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt, notes))
}

// PatientList returns the calling patient's own appointments, resolved from
// the token's email claim.
func (h *AppointmentHandler) PatientList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.Email == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	appts, history, err := h.svc.ListByPatient(r.Context(), claims.Email)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, appointmentToItem(appt, history[appt.ID]))
	}
	writeJSON(w, http.StatusOK, items)
}

// ChangeStatus transitions an appointment and records the audit note.
func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Status = strings.TrimSpace(req.Status)
	if req.AppointmentID == "" || req.Status == "" {
		http.Error(w, "appointment_id and status required", http.StatusBadRequest)
		return
	}

	appt, note, err := h.svc.ChangeStatus(r.Context(), req.AppointmentID, req.Status, req.Notes, actorFromContext(r))
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt, []model.Note{note}))
}

// Reschedule moves an appointment to a new time.
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	newTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.AppointmentTime))
	if err != nil {
		http.Error(w, "invalid appointment_time", http.StatusBadRequest)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Not specified"
	}

	appt, note, err := h.svc.Reschedule(r.Context(), req.AppointmentID, newTime, reason, actorFromContext(r))
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentToItem(appt, []model.Note{note}))
}

func actorFromContext(r *http.Request) booking.Actor {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return booking.Actor{Role: claims.Role, ID: claims.Sub}
	}
	return booking.Actor{Role: model.ActorSystem}
}
