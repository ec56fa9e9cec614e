// Package httpapi exposes the REST handlers and translates HTTP requests
// into the identity, voting and results services.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/metrics"
	"github.com/marcelojr/votemap/internal/platform/ratelimit"
)

// SessionTokenHeader carries the voting credential out-of-band of the body.
const SessionTokenHeader = "X-Session-Token"

// API bundles the HTTP handlers bound to the core services.
type API struct {
	identity domain.IdentityService
	votes    domain.VotingService
	results  domain.ResultsService
	limiter  domain.RateLimiter
	logger   *slog.Logger
}

func New(identity domain.IdentityService, votes domain.VotingService, results domain.ResultsService, limiter domain.RateLimiter, logger *slog.Logger) *API {
	if limiter == nil {
		limiter = ratelimit.NewNoop()
	}
	return &API{
		identity: identity,
		votes:    votes,
		results:  results,
		limiter:  limiter,
		logger:   logger,
	}
}

func (a *API) Register(r chi.Router) {
	r.Get("/healthz", a.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Post("/verify-device", a.verifyDevice)
		r.Post("/verify-receipt", a.verifyReceipt)
		r.Route("/elections/{electionID}", func(r chi.Router) {
			r.Post("/votes", a.castVote)
			r.Get("/results", a.electionResults)
			r.Get("/constituencies/{constituencyID}/results", a.constituencyResults)
		})
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type verifyDeviceRequest struct {
	Fingerprint domain.FingerprintDescriptor `json:"fingerprint"`
	ElectionID  string                       `json:"electionId"`
}

func (a *API) verifyDevice(w http.ResponseWriter, r *http.Request) {
	var req verifyDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveDeviceVerification("invalid_payload")
		writeJSON(w, http.StatusBadRequest, map[string]any{"canVote": false, "reason": "invalid payload"})
		return
	}

	grant, err := a.identity.VerifyDevice(r.Context(), req.Fingerprint, domain.ElectionID(req.ElectionID), clientIP(r))
	if err != nil {
		status := statusFromError(err)
		metrics.ObserveDeviceVerification(outcomeFromError(err))
		a.logger.Warn("device verification denied", "err", err, "election", req.ElectionID, "status", status)
		writeJSON(w, status, map[string]any{"canVote": false, "reason": publicReason(err)})
		return
	}

	metrics.ObserveDeviceVerification("granted")
	writeJSON(w, http.StatusOK, map[string]any{
		"canVote":      true,
		"sessionToken": grant.SessionToken,
		"expiresAt":    grant.ExpiresAt.Format(time.RFC3339),
	})
}

type castVoteRequest struct {
	ConstituencyID string `json:"constituencyId"`
	CandidateID    string `json:"candidateId"`
}

func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	electionID := domain.ElectionID(chi.URLParam(r, "electionID"))
	ip := clientIP(r)

	// The limiter pre-gates the core; its own policy decides what a Redis
	// outage means (the shipped one fails open).
	limiterKey := string(electionID) + "|" + ip + "|" + r.UserAgent()
	if err := a.limiter.Allow(r.Context(), limiterKey); err != nil {
		metrics.ObserveVoteRequest("rate_limited")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"success": false, "error": "too many requests"})
		return
	}

	token := r.Header.Get(SessionTokenHeader)
	if token == "" {
		metrics.ObserveVoteRequest("missing_token")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "missing session token"})
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveVoteRequest("invalid_payload")
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}

	receipt, err := a.votes.CastVote(r.Context(), token, electionID,
		domain.ConstituencyID(req.ConstituencyID), domain.CandidateID(req.CandidateID), ip)
	if err != nil {
		status := statusFromError(err)
		metrics.ObserveVoteRequest(outcomeFromError(err))
		a.logger.Warn("cast vote rejected", "err", err, "election", electionID,
			"constituency", req.ConstituencyID, "status", status)
		writeJSON(w, status, map[string]any{"success": false, "error": publicReason(err)})
		return
	}

	metrics.ObserveVoteRequest("accepted")
	a.logger.Info("vote recorded", "election", electionID, "constituency", req.ConstituencyID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "receiptToken": receipt})
}

type verifyReceiptRequest struct {
	ReceiptToken string `json:"receiptToken"`
}

func (a *API) verifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req verifyReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false, "error": "invalid payload"})
		return
	}

	details, err := a.votes.VerifyReceipt(r.Context(), req.ReceiptToken)
	if err != nil {
		status := statusFromError(err)
		writeJSON(w, status, map[string]any{"verified": false, "error": publicReason(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"verified":         true,
		"electionName":     details.ElectionName,
		"constituencyCode": details.ConstituencyCode,
		"constituencyName": details.ConstituencyName,
		"candidateName":    details.CandidateName,
		"partyName":        details.PartyName,
		"partyColor":       details.PartyColor,
		"votedAt":          details.VotedAt.Format(time.RFC3339),
	})
}

func (a *API) electionResults(w http.ResponseWriter, r *http.Request) {
	electionID := domain.ElectionID(chi.URLParam(r, "electionID"))

	res, err := a.results.ElectionResults(r.Context(), electionID)
	if err != nil {
		a.logger.Error("election results failed", "err", err, "election", electionID)
		writeJSON(w, statusFromError(err), map[string]any{"error": publicReason(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"electionId":     res.ElectionID,
		"electionName":   res.ElectionName,
		"status":         res.Status,
		"totalVotes":     res.TotalVotes,
		"constituencies": res.Constituencies,
	})
}

func (a *API) constituencyResults(w http.ResponseWriter, r *http.Request) {
	electionID := domain.ElectionID(chi.URLParam(r, "electionID"))
	constituencyID := domain.ConstituencyID(chi.URLParam(r, "constituencyID"))

	result, err := a.results.ConstituencyResults(r.Context(), electionID, constituencyID)
	if err != nil {
		a.logger.Error("constituency results failed", "err", err,
			"election", electionID, "constituency", constituencyID)
		writeJSON(w, statusFromError(err), map[string]any{"error": publicReason(err)})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFlaggedDevice):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicReason keeps storage detail out of responses: sentinel-wrapped errors
// carry only enumerated reasons, everything else collapses to a generic line.
func publicReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		return "service temporarily unavailable"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrFlaggedDevice),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrExpired):
		return err.Error()
	default:
		return "internal error"
	}
}

func outcomeFromError(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrFlaggedDevice):
		return "flagged"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
