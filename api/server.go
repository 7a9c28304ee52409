package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cargolink/auth"
	"cargolink/booking"
	"cargolink/shipment"
)

// AuthService is the credential-store surface the handlers use.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.RegisterResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Logout(ctx context.Context)
	CurrentSession(ctx context.Context, token string) (*auth.Session, error)
	VerifyToken(token string) (string, string, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

// RoleResolver derives the effective role for an authenticated request.
type RoleResolver interface {
	Resolve(ctx context.Context, userID, email string) (auth.Role, error)
}

// ShipmentService covers shipment booking and tracking.
type ShipmentService interface {
	Create(ctx context.Context, params shipment.CreateParams) (shipment.Shipment, error)
	Track(ctx context.Context, reference string) (shipment.Shipment, []shipment.TimelineEvent, error)
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]shipment.Shipment, error)
	ListForAgent(ctx context.Context, agentID string, limit, offset int) ([]shipment.Shipment, error)
}

// ShipmentStatusService covers transactional status updates.
type ShipmentStatusService interface {
	Transition(ctx context.Context, params shipment.TransitionParams) error
	Handoff(ctx context.Context, params shipment.HandoffParams) error
}

// CarrierWebhookService applies carrier-pushed status events.
type CarrierWebhookService interface {
	ApplyCarrierEvent(ctx context.Context, ev shipment.CarrierEvent) error
}

// BookingService covers air-ticket booking requests.
type BookingService interface {
	Create(ctx context.Context, params booking.CreateParams) (booking.Request, error)
	Quote(ctx context.Context, bookingID, agentID string, quoteCents int64) (booking.Request, error)
	Confirm(ctx context.Context, bookingID string) (booking.Request, error)
	Ticket(ctx context.Context, bookingID string) (booking.Request, error)
	Cancel(ctx context.Context, bookingID string) (booking.Request, error)
	Get(ctx context.Context, bookingID string) (booking.Request, error)
	List(ctx context.Context, filters booking.Filters) ([]booking.Request, int, error)
}

// Server wires the HTTP API.
type Server struct {
	authSvc      AuthService
	resolver     RoleResolver
	shipments    ShipmentService
	statusSvc    ShipmentStatusService
	bookings     BookingService
	webhooks     CarrierWebhookService
	webhookToken string
	logger       *zap.Logger
}

// Option adjusts server construction.
type Option func(*Server)

// WithCarrierWebhook enables the carrier webhook endpoint, authenticated by
// a shared token carried in the X-Webhook-Token header.
func WithCarrierWebhook(svc CarrierWebhookService, token string) Option {
	return func(s *Server) {
		s.webhooks = svc
		s.webhookToken = token
	}
}

func NewServer(authSvc AuthService, resolver RoleResolver, shipments ShipmentService, statusSvc ShipmentStatusService, bookings BookingService, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		authSvc:   authSvc,
		resolver:  resolver,
		shipments: shipments,
		statusSvc: statusSvc,
		bookings:  bookings,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/track/{reference}", s.handleTrack)

		if s.webhooks != nil && s.webhookToken != "" {
			r.Post("/webhooks/carrier", s.handleCarrierWebhook)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/session", s.handleSession)

			r.Post("/shipments", s.handleCreateShipment)
			r.Get("/shipments", s.handleListShipments)
			r.With(s.requireRole(auth.RoleAgent, auth.RoleAdmin)).
				Post("/shipments/{id}/status", s.handleShipmentStatus)
			r.With(s.requireRole(auth.RoleAgent, auth.RoleAdmin)).
				Post("/shipments/{id}/handoff", s.handleShipmentHandoff)

			r.Post("/bookings", s.handleCreateBooking)
			r.Get("/bookings", s.handleListBookings)
			r.Get("/bookings/{id}", s.handleGetBooking)
			r.With(s.requireRole(auth.RoleAgent, auth.RoleAdmin)).
				Post("/bookings/{id}/quote", s.handleQuoteBooking)
			r.Post("/bookings/{id}/confirm", s.handleConfirmBooking)
			r.With(s.requireRole(auth.RoleAgent, auth.RoleAdmin)).
				Post("/bookings/{id}/ticket", s.handleTicketBooking)
			r.Post("/bookings/{id}/cancel", s.handleCancelBooking)
		})
	})

	return r
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
