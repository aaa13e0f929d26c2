package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appNegotiation "github.com/loadboard/loadboard/internal/application/negotiation"
	"github.com/loadboard/loadboard/internal/application/pricing"
	"github.com/loadboard/loadboard/internal/domain/bid"
	"github.com/loadboard/loadboard/internal/domain/load"
	"github.com/loadboard/loadboard/internal/infrastructure/bus"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	negotiationSvc *appNegotiation.Service
	calc           *pricing.Calculator
	hub            *bus.Hub
	logger         zerolog.Logger
}

func NewServer(
	negotiationSvc *appNegotiation.Service,
	calc *pricing.Calculator,
	hub *bus.Hub,
	logger zerolog.Logger,
) *Server {
	return &Server{
		negotiationSvc: negotiationSvc,
		calc:           calc,
		hub:            hub,
		logger:         logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/loads/{loadId}", func(r chi.Router) {
			r.Post("/bids", s.submitBid)
			r.Get("/bids", s.listLoadBids)
			r.Get("/quote", s.quoteLoad)
		})

		r.Get("/bids", s.searchBids)
		r.Route("/bids/{bidId}", func(r chi.Router) {
			r.Get("/", s.getBid)
			r.Post("/counter", s.counterBid)
			r.Post("/accept", s.acceptBid)
			r.Post("/reject", s.rejectBid)
			r.Post("/messages", s.postMessage)
			r.Get("/messages", s.listMessages)
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Post("/suggest", s.suggestPrice)
			r.Post("/margin", s.marginPreview)
		})

		// Streaming endpoints carry no chi timeout; subscriptions live
		// until the client goes away.
		r.Route("/events", func(r chi.Router) {
			r.Get("/sse", s.sseEndpoint)
			r.Get("/ws", s.wsEndpoint)
		})
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"subscribers": s.hub.SubscriberCount(),
	})
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondDomainError maps negotiation errors onto the wire taxonomy. The
// caller only ever sees the error kind, never internal state.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bid.ErrNotFound), errors.Is(err, load.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, bid.ErrBidFinalized):
		respondError(w, http.StatusConflict, "BID_ALREADY_FINALIZED", err.Error())
	case errors.Is(err, bid.ErrThreadFrozen):
		respondError(w, http.StatusConflict, "THREAD_FROZEN", err.Error())
	case errors.Is(err, bid.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, bid.ErrConcurrentModification):
		respondError(w, http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error())
	case errors.Is(err, bid.ErrInvalidPrice):
		respondError(w, http.StatusBadRequest, "INVALID_PRICE", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := []string{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
