package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/loadboard/loadboard/internal/domain/bid"
	"github.com/loadboard/loadboard/internal/domain/negotiation"
)

type submitBidRequest struct {
	CarrierID uuid.UUID `json:"carrier_id"`
	Amount    float64   `json:"amount"`
	Notes     *string   `json:"notes,omitempty"`
}

type counterRequest struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message,omitempty"`
}

type acceptRequest struct {
	FinalPrice *float64 `json:"final_price,omitempty"`
}

type rejectRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type messageRequest struct {
	SenderRole string   `json:"sender_role"`
	Message    string   `json:"message"`
	Amount     *float64 `json:"amount,omitempty"`
}

type suggestRequest struct {
	DistanceKm float64 `json:"distance_km"`
	WeightTons float64 `json:"weight_tons"`
	LoadType   string  `json:"load_type"`
	Region     string  `json:"region"`
}

type marginRequest struct {
	GrossPrice            float64  `json:"gross_price"`
	PlatformMarginPercent float64  `json:"platform_margin_percent"`
	AdvancePercent        *float64 `json:"advance_percent,omitempty"`
}

func (s *Server) submitBid(w http.ResponseWriter, r *http.Request) {
	loadID, err := parseUUIDParam(r, "loadId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid loadId")
		return
	}
	var req submitBidRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.CarrierID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "carrier_id is required")
		return
	}
	b, err := s.negotiationSvc.SubmitBid(r.Context(), loadID, req.CarrierID, req.Amount, req.Notes)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (s *Server) listLoadBids(w http.ResponseWriter, r *http.Request) {
	loadID, err := parseUUIDParam(r, "loadId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid loadId")
		return
	}
	views, err := s.negotiationSvc.ListBids(r.Context(), loadID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bids": views})
}

func (s *Server) searchBids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter bid.Filter
	if v := q.Get("load_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid load_id")
			return
		}
		filter.LoadID = &id
	}
	if v := q.Get("carrier_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid carrier_id")
			return
		}
		filter.CarrierID = &id
	}
	if v := q.Get("status"); v != "" {
		st := bid.Status(strings.ToUpper(v))
		filter.Status = &st
	}
	limit, offset := parseLimitOffset(r)
	bids, err := s.negotiationSvc.SearchBids(r.Context(), filter, limit, offset)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bids": bids})
}

func (s *Server) getBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid bidId")
		return
	}
	view, err := s.negotiationSvc.GetBid(r.Context(), bidID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) counterBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid bidId")
		return
	}
	var req counterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	b, err := s.negotiationSvc.Counter(r.Context(), bidID, req.Amount, req.Message)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) acceptBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid bidId")
		return
	}
	var req acceptRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	b, err := s.negotiationSvc.Accept(r.Context(), bidID, req.FinalPrice, senderRole(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) rejectBid(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid bidId")
		return
	}
	var req rejectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	b, err := s.negotiationSvc.Reject(r.Context(), bidID, req.Reason, senderRole(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid bidId")
		return
	}
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	role, ok := parseRole(req.SenderRole)
	if !ok {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "sender_role must be ADMIN or CARRIER")
		return
	}
	if req.Message == "" && req.Amount == nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "message or amount is required")
		return
	}
	m, err := s.negotiationSvc.SendMessage(r.Context(), bidID, role, req.Message, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	bidID, err := parseUUIDParam(r, "bidId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid bidId")
		return
	}
	messages, err := s.negotiationSvc.Thread(r.Context(), bidID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	amount, err := s.negotiationSvc.CurrentAmount(r.Context(), bidID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages":      messages,
		"currentAmount": amount,
	})
}

func (s *Server) quoteLoad(w http.ResponseWriter, r *http.Request) {
	loadID, err := parseUUIDParam(r, "loadId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid loadId")
		return
	}
	quote, err := s.negotiationSvc.QuoteLoad(r.Context(), loadID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (s *Server) suggestPrice(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	quote, err := s.calc.SuggestPrice(req.DistanceKm, req.WeightTons, req.LoadType, req.Region)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

func (s *Server) marginPreview(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	margin, err := s.negotiationSvc.MarginFor(req.GrossPrice, req.PlatformMarginPercent)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	resp := map[string]interface{}{
		"platformMargin": margin.PlatformMargin,
		"carrierPayout":  margin.CarrierPayout,
	}
	if req.AdvancePercent != nil {
		split, err := s.negotiationSvc.AdvanceFor(margin.CarrierPayout, *req.AdvancePercent)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		resp["advance"] = split.Advance
		resp["balance"] = split.Balance
	}
	respondJSON(w, http.StatusOK, resp)
}

// senderRole derives the acting role from the identity layer's header. The
// core trusts the caller's identity; authorization lives outside.
func senderRole(r *http.Request) negotiation.SenderRole {
	if role, ok := parseRole(r.Header.Get("X-Actor-Role")); ok {
		return role
	}
	return negotiation.RoleAdmin
}

func parseRole(s string) (negotiation.SenderRole, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(negotiation.RoleAdmin):
		return negotiation.RoleAdmin, true
	case string(negotiation.RoleCarrier):
		return negotiation.RoleCarrier, true
	}
	return "", false
}
