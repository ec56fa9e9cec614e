package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcelojr/votemap/internal/domain"
)

type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) VerifyDevice(ctx context.Context, descriptor domain.FingerprintDescriptor, electionID domain.ElectionID, clientIP string) (domain.SessionGrant, error) {
	args := m.Called(ctx, descriptor, electionID, clientIP)
	return args.Get(0).(domain.SessionGrant), args.Error(1)
}

func (m *MockIdentityService) ValidateSession(ctx context.Context, token string) (domain.VoterSession, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(domain.VoterSession), args.Error(1)
}

type MockVotingService struct {
	mock.Mock
}

func (m *MockVotingService) CastVote(ctx context.Context, sessionToken string, electionID domain.ElectionID, constituencyID domain.ConstituencyID, candidateID domain.CandidateID, clientIP string) (string, error) {
	args := m.Called(ctx, sessionToken, electionID, constituencyID, candidateID, clientIP)
	return args.String(0), args.Error(1)
}

func (m *MockVotingService) VerifyReceipt(ctx context.Context, receiptToken string) (domain.ReceiptDetails, error) {
	args := m.Called(ctx, receiptToken)
	return args.Get(0).(domain.ReceiptDetails), args.Error(1)
}

type MockResultsService struct {
	mock.Mock
}

func (m *MockResultsService) Recompute(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (domain.ConstituencyResult, error) {
	args := m.Called(ctx, electionID, constituencyID)
	return args.Get(0).(domain.ConstituencyResult), args.Error(1)
}

func (m *MockResultsService) ElectionResults(ctx context.Context, electionID domain.ElectionID) (domain.ElectionResults, error) {
	args := m.Called(ctx, electionID)
	return args.Get(0).(domain.ElectionResults), args.Error(1)
}

func (m *MockResultsService) ConstituencyResults(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (domain.ConstituencyResult, error) {
	args := m.Called(ctx, electionID, constituencyID)
	return args.Get(0).(domain.ConstituencyResult), args.Error(1)
}

// denyLimiter rejects every request so the 429 branch can be exercised.
type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) error {
	return errors.New("too many requests")
}

type apiMocks struct {
	identity *MockIdentityService
	votes    *MockVotingService
	results  *MockResultsService
}

func setupAPI(t *testing.T, limiter domain.RateLimiter) (chi.Router, *apiMocks) {
	mocks := &apiMocks{
		identity: new(MockIdentityService),
		votes:    new(MockVotingService),
		results:  new(MockResultsService),
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{}))
	api := New(mocks.identity, mocks.votes, mocks.results, limiter, logger)

	router := chi.NewRouter()
	api.Register(router)

	t.Cleanup(func() {
		mocks.identity.AssertExpectations(t)
		mocks.votes.AssertExpectations(t)
		mocks.results.AssertExpectations(t)
	})

	return router, mocks
}

func doJSON(router chi.Router, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range header {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealthz_ShouldReturn200(t *testing.T) {
	router, _ := setupAPI(t, nil)

	w := doJSON(router, "GET", "/healthz", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestVerifyDevice_WhenEligible_ShouldReturnGrant(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	expiresAt := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	mocks.identity.On("VerifyDevice", mock.Anything, mock.Anything, domain.ElectionID("election-1"), mock.Anything).
		Return(domain.SessionGrant{SessionToken: "granted-token", ExpiresAt: expiresAt}, nil)

	w := doJSON(router, "POST", "/api/verify-device", map[string]any{
		"fingerprint": map[string]any{
			"visitorId":        "visitor-abc",
			"userAgent":        "Mozilla/5.0",
			"screenResolution": "1920x1080",
		},
		"electionId": "election-1",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["canVote"])
	assert.Equal(t, "granted-token", response["sessionToken"])
	assert.Equal(t, "2026-03-10T13:00:00Z", response["expiresAt"])
}

func TestVerifyDevice_WhenDeviceFlagged_ShouldReturn403(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.identity.On("VerifyDevice", mock.Anything, mock.Anything, domain.ElectionID("election-1"), mock.Anything).
		Return(domain.SessionGrant{}, fmt.Errorf("%w: barred by fraud review", domain.ErrFlaggedDevice))

	w := doJSON(router, "POST", "/api/verify-device", map[string]any{
		"fingerprint": map[string]any{"visitorId": "visitor-abc"},
		"electionId":  "election-1",
	}, nil)

	require.Equal(t, http.StatusForbidden, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, false, response["canVote"])
	assert.Contains(t, response["reason"], "barred")
}

func TestVerifyDevice_WhenElectionUnknown_ShouldReturn404(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.identity.On("VerifyDevice", mock.Anything, mock.Anything, domain.ElectionID("election-x"), mock.Anything).
		Return(domain.SessionGrant{}, fmt.Errorf("%w: election election-x", domain.ErrNotFound))

	w := doJSON(router, "POST", "/api/verify-device", map[string]any{
		"fingerprint": map[string]any{"visitorId": "visitor-abc"},
		"electionId":  "election-x",
	}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyDevice_WhenStorageDown_ShouldReturn503WithOpaqueReason(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.identity.On("VerifyDevice", mock.Anything, mock.Anything, domain.ElectionID("election-1"), mock.Anything).
		Return(domain.SessionGrant{}, fmt.Errorf("%w: devices upsert: dial tcp: refused", domain.ErrUnavailable))

	w := doJSON(router, "POST", "/api/verify-device", map[string]any{
		"fingerprint": map[string]any{"visitorId": "visitor-abc"},
		"electionId":  "election-1",
	}, nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "service temporarily unavailable", response["reason"])
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestCastVote_WhenAccepted_ShouldReturnReceipt(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.votes.On("CastVote", mock.Anything, "token-1", domain.ElectionID("election-1"),
		domain.ConstituencyID("const-1"), domain.CandidateID("cand-1"), mock.Anything).
		Return("receipt-token", nil)

	w := doJSON(router, "POST", "/api/elections/election-1/votes", map[string]any{
		"constituencyId": "const-1",
		"candidateId":    "cand-1",
	}, map[string]string{SessionTokenHeader: "token-1"})

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "receipt-token", response["receiptToken"])
}

func TestCastVote_WhenTokenMissing_ShouldReturn401(t *testing.T) {
	router, _ := setupAPI(t, nil)

	w := doJSON(router, "POST", "/api/elections/election-1/votes", map[string]any{
		"constituencyId": "const-1",
		"candidateId":    "cand-1",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCastVote_WhenSessionConsumed_ShouldReturn409(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.votes.On("CastVote", mock.Anything, "token-1", domain.ElectionID("election-1"),
		domain.ConstituencyID("const-1"), domain.CandidateID("cand-1"), mock.Anything).
		Return("", fmt.Errorf("%w: already voted", domain.ErrConflict))

	w := doJSON(router, "POST", "/api/elections/election-1/votes", map[string]any{
		"constituencyId": "const-1",
		"candidateId":    "cand-1",
	}, map[string]string{SessionTokenHeader: "token-1"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCastVote_WhenSessionExpired_ShouldReturn410(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.votes.On("CastVote", mock.Anything, "token-1", domain.ElectionID("election-1"),
		domain.ConstituencyID("const-1"), domain.CandidateID("cand-1"), mock.Anything).
		Return("", fmt.Errorf("%w: session expired", domain.ErrExpired))

	w := doJSON(router, "POST", "/api/elections/election-1/votes", map[string]any{
		"constituencyId": "const-1",
		"candidateId":    "cand-1",
	}, map[string]string{SessionTokenHeader: "token-1"})

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestCastVote_WhenRateLimited_ShouldReturn429BeforeTouchingTheCore(t *testing.T) {
	router, _ := setupAPI(t, denyLimiter{})

	w := doJSON(router, "POST", "/api/elections/election-1/votes", map[string]any{
		"constituencyId": "const-1",
		"candidateId":    "cand-1",
	}, map[string]string{SessionTokenHeader: "token-1"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestVerifyReceipt_WhenKnown_ShouldReturnBallotFacts(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	votedAt := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	mocks.votes.On("VerifyReceipt", mock.Anything, "receipt-token").
		Return(domain.ReceiptDetails{
			ElectionID:       "election-1",
			ElectionName:     "General Election",
			ConstituencyCode: "C-01",
			ConstituencyName: "North District",
			CandidateName:    "Alice Monteiro",
			PartyName:        "Green Alliance",
			PartyColor:       "#3355ff",
			VotedAt:          votedAt,
		}, nil)

	w := doJSON(router, "POST", "/api/verify-receipt", map[string]any{
		"receiptToken": "receipt-token",
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["verified"])
	assert.Equal(t, "Alice Monteiro", response["candidateName"])
	assert.Equal(t, "2026-03-10T12:30:00Z", response["votedAt"])
}

func TestVerifyReceipt_WhenUnknown_ShouldReturn404(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.votes.On("VerifyReceipt", mock.Anything, "no-such-receipt").
		Return(domain.ReceiptDetails{}, fmt.Errorf("%w: receipt", domain.ErrNotFound))

	w := doJSON(router, "POST", "/api/verify-receipt", map[string]any{
		"receiptToken": "no-such-receipt",
	}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestElectionResults_ShouldReturnAggregates(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.results.On("ElectionResults", mock.Anything, domain.ElectionID("election-1")).
		Return(domain.ElectionResults{
			ElectionID:   "election-1",
			ElectionName: "General Election",
			Status:       domain.ElectionActive,
			TotalVotes:   100,
			Constituencies: []domain.ConstituencyResult{
				{ElectionID: "election-1", ConstituencyID: "const-1", MapColor: "#3355ff", TotalVotes: 100},
			},
		}, nil)

	w := doJSON(router, "GET", "/api/elections/election-1/results", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "General Election", response["electionName"])
	assert.Equal(t, float64(100), response["totalVotes"])
	assert.Len(t, response["constituencies"], 1)
}

func TestConstituencyResults_ShouldReturnCachedAggregate(t *testing.T) {
	router, mocks := setupAPI(t, nil)

	mocks.results.On("ConstituencyResults", mock.Anything, domain.ElectionID("election-1"), domain.ConstituencyID("const-1")).
		Return(domain.ConstituencyResult{
			ElectionID:     "election-1",
			ConstituencyID: "const-1",
			MapColor:       "#808080",
			TotalVotes:     100,
		}, nil)

	w := doJSON(router, "GET", "/api/elections/election-1/constituencies/const-1/results", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "#808080")
}

func TestClientIP_ShouldPreferForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
