package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cargolink/auth"
	"cargolink/shipment"
)

type createShipmentRequest struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	WeightKg    float64 `json:"weight_kg"`
	ServiceType string  `json:"service_type"`
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())

	var req createShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	sh, err := s.shipments.Create(r.Context(), shipment.CreateParams{
		CustomerID:  identity.UserID,
		Origin:      req.Origin,
		Destination: req.Destination,
		WeightKg:    req.WeightKg,
		ServiceType: req.ServiceType,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sh)
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var (
		items []shipment.Shipment
		err   error
	)
	switch identity.Role {
	case auth.RoleAgent:
		items, err = s.shipments.ListForAgent(r.Context(), identity.UserID, limit, offset)
	default:
		items, err = s.shipments.ListForCustomer(r.Context(), identity.UserID, limit, offset)
	}
	if err != nil {
		s.logger.Error("list shipments failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list shipments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"shipments": items, "count": len(items)})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	sh, events, err := s.shipments.Track(r.Context(), reference)
	if err != nil {
		if errors.Is(err, shipment.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shipment not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Public tracking exposes status history only, never party identifiers.
	type publicEvent struct {
		Type      string `json:"type"`
		CreatedAt string `json:"created_at"`
	}
	timeline := make([]publicEvent, 0, len(events))
	for _, ev := range events {
		timeline = append(timeline, publicEvent{
			Type:      ev.Type,
			CreatedAt: ev.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reference":   sh.Reference,
		"origin":      sh.Origin,
		"destination": sh.Destination,
		"status":      sh.Status,
		"timeline":    timeline,
	})
}

type carrierWebhookRequest struct {
	EventID   string `json:"event_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
}

func (s *Server) handleCarrierWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Webhook-Token") != s.webhookToken {
		writeError(w, http.StatusUnauthorized, "invalid webhook token")
		return
	}

	var req carrierWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.EventID == "" || req.Reference == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "event_id, reference, and status are required")
		return
	}

	err := s.webhooks.ApplyCarrierEvent(r.Context(), shipment.CarrierEvent{
		EventID:    req.EventID,
		Reference:  req.Reference,
		NextStatus: shipment.Status(req.Status),
		Note:       req.Note,
	})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, shipment.ErrUnknownReference):
		writeError(w, http.StatusNotFound, "unknown reference")
	case errors.Is(err, shipment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("carrier webhook failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to apply carrier event")
	}
}

type transitionRequest struct {
	NextStatus string `json:"next_status"`
	Note       string `json:"note,omitempty"`
}

func (s *Server) handleShipmentStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	shipmentID := chi.URLParam(r, "id")

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	err := s.statusSvc.Transition(r.Context(), shipment.TransitionParams{
		ShipmentID: shipmentID,
		ActorID:    identity.UserID,
		NextStatus: shipment.Status(req.NextStatus),
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type handoffRequest struct {
	ToAgentID string `json:"to_agent_id"`
	Note      string `json:"note,omitempty"`
}

func (s *Server) handleShipmentHandoff(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	shipmentID := chi.URLParam(r, "id")

	var req handoffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	err := s.statusSvc.Handoff(r.Context(), shipment.HandoffParams{
		ShipmentID: shipmentID,
		ActorID:    identity.UserID,
		ToAgentID:  req.ToAgentID,
		Note:       req.Note,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
