package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"garagebook/internal/auth"
	"garagebook/internal/export"
	"garagebook/internal/models"
	"garagebook/internal/service"
)

const maxBodyBytes = 64 << 10

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Health check: store unreachable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := s.deps.Auth.Login(r.Context(), strings.TrimSpace(req.Email), req.Password, s.clients.clientIP(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrTooManyAttempts):
		writeMessage(w, http.StatusTooManyRequests, "Too many login attempts, please try again later")
	default:
		s.serverError(w, r, err)
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var input models.BookingInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := s.deps.Bookings.CreateBooking(r.Context(), input)
	var vErr *service.ValidationError
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, "Booking successful")
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "All fields are required",
			"missing": vErr.Fields,
		})
	default:
		s.serverError(w, r, err)
	}
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.deps.Bookings.ListActive(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.deps.Bookings.ListActive(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.writeWorkbook(&buf, bookings); err != nil {
		s.serverError(w, r, fmt.Errorf("export bookings: %w", err))
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.deps.Bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	// unknown ids answer 200 null
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleSearchBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.deps.Bookings.Search(r.Context(), r.PathValue("term"))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

func (s *HTTPServer) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bookings.MarkCompleted(r.Context(), r.PathValue("id")); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.logAdminAction(r, "complete")
	writeMessage(w, http.StatusOK, "Marked as completed")
}

func (s *HTTPServer) handleArchiveBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bookings.Archive(r.Context(), r.PathValue("id")); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.logAdminAction(r, "archive")
	writeMessage(w, http.StatusOK, "Archived successfully")
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bookings.DeleteBooking(r.Context(), r.PathValue("id")); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.logAdminAction(r, "delete")
	writeMessage(w, http.StatusOK, "Deleted successfully")
}

func (s *HTTPServer) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Bookings.DashboardStats(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// logAdminAction records which admin mutated a booking.
func (s *HTTPServer) logAdminAction(r *http.Request, action string) {
	admin := "unknown"
	if claims, ok := auth.ClaimsFrom(r.Context()); ok {
		admin = claims.Email
	}
	s.logger.Info().
		Str("request_id", requestIDFrom(r.Context())).
		Str("admin", admin).
		Str("action", action).
		Str("booking_id", r.PathValue("id")).
		Msg("Admin booking action")
}

func (s *HTTPServer) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).
		Str("request_id", requestIDFrom(r.Context())).
		Str("path", r.URL.Path).
		Msg("Request failed")
	writeMessage(w, http.StatusInternalServerError, "Server error")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func nonNil(bookings []models.Booking) []models.Booking {
	if bookings == nil {
		return []models.Booking{}
	}
	return bookings
}
