package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cargolink/auth"
	"cargolink/booking"
)

type createBookingRequest struct {
	FromAirport  string `json:"from_airport"`
	ToAirport    string `json:"to_airport"`
	TravelDate   string `json:"travel_date"`
	ReturnDate   string `json:"return_date,omitempty"`
	Passengers   int    `json:"passengers"`
	Cabin        string `json:"cabin"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	travelDate, err := time.Parse("2006-01-02", req.TravelDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "travel_date must be YYYY-MM-DD")
		return
	}
	var returnDate *time.Time
	if req.ReturnDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReturnDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "return_date must be YYYY-MM-DD")
			return
		}
		returnDate = &parsed
	}

	created, err := s.bookings.Create(r.Context(), booking.CreateParams{
		CustomerID:   identity.UserID,
		FromAirport:  req.FromAirport,
		ToAirport:    req.ToAirport,
		TravelDate:   travelDate,
		ReturnDate:   returnDate,
		Passengers:   req.Passengers,
		Cabin:        booking.CabinClass(req.Cabin),
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	filters := booking.Filters{
		Status: booking.Status(r.URL.Query().Get("status")),
	}
	switch identity.Role {
	case auth.RoleAdmin:
		// Admins see everything.
	case auth.RoleAgent:
		filters.AgentID = identity.UserID
	default:
		filters.CustomerID = identity.UserID
	}

	items, total, err := s.bookings.List(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"bookings": items, "total": total})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	req, err := s.bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}

	if !canViewBooking(identity, req) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}

	writeJSON(w, http.StatusOK, req)
}

type quoteRequest struct {
	QuoteCents int64 `json:"quote_cents"`
}

func (s *Server) handleQuoteBooking(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	quoted, err := s.bookings.Quote(r.Context(), chi.URLParam(r, "id"), identity.UserID, req.QuoteCents)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, quoted)
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	s.mutateOwnBooking(w, r, s.bookings.Confirm)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s.mutateOwnBooking(w, r, s.bookings.Cancel)
}

func (s *Server) handleTicketBooking(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	id := chi.URLParam(r, "id")

	current, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}
	// Only the assigned agent (or an admin) may ticket.
	if !canViewBooking(identity, current) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}

	updated, err := s.bookings.Ticket(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// mutateOwnBooking applies a customer-initiated transition after checking
// the booking belongs to the caller.
func (s *Server) mutateOwnBooking(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (booking.Request, error)) {
	identity, _ := identityFrom(r.Context())
	id := chi.URLParam(r, "id")

	current, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}
	if !canViewBooking(identity, current) {
		writeError(w, http.StatusForbidden, "not your booking")
		return
	}

	updated, err := fn(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func canViewBooking(identity Identity, req booking.Request) bool {
	if identity.Role == auth.RoleAdmin {
		return true
	}
	if identity.Role == auth.RoleAgent && req.AgentID != nil && *req.AgentID == identity.UserID {
		return true
	}
	return req.CustomerID == identity.UserID
}
