package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"techsched/internal/intent"
	"techsched/internal/model"
	"techsched/internal/slots"
)

// TechnicianSummary is the technician block of an availability response.
type TechnicianSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	WorkingHours string `json:"working_hours"`
}

// AvailabilityResponse is the response for GET /technicians/{id}/availability.
type AvailabilityResponse struct {
	Technician     TechnicianSummary `json:"technician"`
	Date           string            `json:"date"`
	AvailableSlots []string          `json:"available_slots"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrBookingNotFound), errors.Is(err, model.ErrTechnicianNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNoTechnicianAvailable), errors.Is(err, model.ErrSlotTaken):
		return http.StatusConflict
	case errors.Is(err, model.ErrPastBookingTime), errors.Is(err, model.ErrOutsideWorkingHours),
		errors.Is(err, model.ErrUnknownTechnicianType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrMalformedIntent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// GET /technicians?technician_type=
func (s *HTTPServer) handleListTechnicians(w http.ResponseWriter, r *http.Request) {
	var (
		techs []model.Technician
		err   error
	)
	if t := r.URL.Query().Get("technician_type"); t != "" {
		techs, err = s.directory.ListByType(r.Context(), t, true)
	} else {
		techs, err = s.directory.List(r.Context(), true)
	}
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, techs)
}

// GET /technicians/{id}/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleTechnicianAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required; expected YYYY-MM-DD")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, s.opts.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	tech, err := s.directory.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrTechnicianNotFound) {
			writeError(w, http.StatusNotFound, "Technician not found")
			return
		}
		s.writeEngineError(w, r, err)
		return
	}

	open, err := s.slots.AvailableSlots(r.Context(), id, date, s.opts.Now())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Technician: TechnicianSummary{
			ID:           tech.ID,
			Name:         tech.Name,
			Type:         tech.Type,
			WorkingHours: tech.WorkingHours(),
		},
		Date:           date.Format("2006-01-02"),
		AvailableSlots: slots.ToSlotInfo(open),
	})
}

// POST /process-request
func (s *HTTPServer) handleProcessRequest(w http.ResponseWriter, r *http.Request) {
	var in intent.Intent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.processor.Process(r.Context(), in, s.opts.Now())
	if err != nil {
		s.logger.Error().Err(err).Str("action", in.Action).Msg("process request failed")
		writeJSON(w, http.StatusInternalServerError, intent.Result{
			Error: "I'm sorry, but I couldn't complete your request due to a system error. Please try again later.",
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /bookings
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.manager.ListActive(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if list == nil {
		list = []model.BookingWithTechnician{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.manager.Query(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		s.writeEngineError(w, r, err)
		return
	}
	tech := a.Technician
	writeJSON(w, http.StatusOK, model.BookingWithTechnician{Booking: a.Booking, Technician: &tech})
}

// DELETE /bookings/{id}
func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.DeleteBooking(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Booking %d deleted", id)})
}

// DELETE /bookings/all
func (s *HTTPServer) handleDeleteAllBookings(w http.ResponseWriter, r *http.Request) {
	n, err := s.manager.PurgeActive(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Successfully deleted %d bookings", n)})
}
