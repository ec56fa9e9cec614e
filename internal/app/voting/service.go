// Package voting implements the vote ledger orchestration: eligibility
// checks, the atomic cast, and receipt verification.
package voting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/marcelojr/votemap/internal/app/identity"
	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/ids"
	"github.com/marcelojr/votemap/internal/platform/logger"
	"github.com/marcelojr/votemap/internal/platform/metrics"
	"github.com/marcelojr/votemap/internal/platform/tokens"
)

// Service validates a cast request before any mutation, delegates the atomic
// write to the ledger, then runs the fire-and-forget tail: audit, live
// counter, recompute dispatch. Tail failures are logged and never unwind the
// committed vote.
type Service struct {
	sessions       domain.IdentityService
	elections      domain.ElectionRepository
	constituencies domain.ConstituencyRepository
	candidates     domain.CandidateRepository
	ledger         domain.VoteLedger
	audit          domain.AuditRepository
	counter        domain.Counter
	queue          domain.RecomputeQueue
	results        domain.ResultsService
	broadcaster    domain.Broadcaster
	clock          domain.Clock
	ids            *ids.Generator
	ipSalt         string
	log            *slog.Logger
}

func NewService(
	sessions domain.IdentityService,
	elections domain.ElectionRepository,
	constituencies domain.ConstituencyRepository,
	candidates domain.CandidateRepository,
	ledger domain.VoteLedger,
	audit domain.AuditRepository,
	counter domain.Counter,
	queue domain.RecomputeQueue,
	results domain.ResultsService,
	broadcaster domain.Broadcaster,
	clock domain.Clock,
	idGen *ids.Generator,
	ipSalt string,
	log *slog.Logger,
) *Service {
	if idGen == nil {
		idGen = ids.DefaultGenerator()
	}
	if log == nil {
		log = logger.L()
	}
	return &Service{
		sessions:       sessions,
		elections:      elections,
		constituencies: constituencies,
		candidates:     candidates,
		ledger:         ledger,
		audit:          audit,
		counter:        counter,
		queue:          queue,
		results:        results,
		broadcaster:    broadcaster,
		clock:          clock,
		ids:            idGen,
		ipSalt:         ipSalt,
		log:            log,
	}
}

// CastVote records one anonymous ballot. The compare-and-set on the session
// row inside the ledger transaction is what makes concurrent casts with the
// same token collapse to exactly one success.
func (s *Service) CastVote(ctx context.Context, sessionToken string, electionID domain.ElectionID, constituencyID domain.ConstituencyID, candidateID domain.CandidateID, clientIP string) (string, error) {
	if constituencyID == "" || candidateID == "" {
		return "", fmt.Errorf("%w: missing constituency or candidate id", domain.ErrValidation)
	}

	session, err := s.sessions.ValidateSession(ctx, sessionToken)
	if err != nil {
		return "", err
	}
	if session.ElectionID != electionID {
		return "", fmt.Errorf("%w: session belongs to a different election", domain.ErrConflict)
	}

	if _, err := s.candidates.FindForBallot(ctx, candidateID, electionID, constituencyID); err != nil {
		return "", err
	}

	receipt, err := tokens.New()
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	vote := domain.Vote{
		ID:             domain.VoteID(s.ids.New()),
		ElectionID:     electionID,
		ConstituencyID: constituencyID,
		CandidateID:    candidateID,
		ReceiptToken:   receipt,
		IPHash:         identity.HashIP(s.ipSalt, clientIP),
		CreatedAt:      now,
	}

	if err := s.ledger.Cast(ctx, vote, sessionToken, now); err != nil {
		return "", err
	}

	metrics.IncVoteCommitted()
	s.afterCommit(ctx, vote)

	return receipt, nil
}

// afterCommit runs everything that may fail independently of the vote: the
// ballot is durable by the time we get here.
func (s *Service) afterCommit(ctx context.Context, vote domain.Vote) {
	if s.audit != nil {
		details, _ := json.Marshal(map[string]string{
			"electionId":     string(vote.ElectionID),
			"constituencyId": string(vote.ConstituencyID),
		})
		entry := domain.AuditLog{
			ID:         s.ids.New(),
			Action:     "vote_cast",
			EntityType: "vote",
			Details:    string(details),
			IPHash:     vote.IPHash,
			CreatedAt:  vote.CreatedAt,
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.log.Error("audit record failed", "err", err, "election", vote.ElectionID)
		}
	}

	if s.counter != nil {
		if _, err := s.counter.Increment(ctx, CounterKeyElectionTotal(vote.ElectionID), 1); err != nil {
			s.log.Error("live counter increment failed", "err", err, "election", vote.ElectionID)
		}
	}

	job := domain.RecomputeJob{
		ElectionID:     vote.ElectionID,
		ConstituencyID: vote.ConstituencyID,
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.log.Error("recompute enqueue failed", "err", err,
				"election", vote.ElectionID, "constituency", vote.ConstituencyID)
		}
		return
	}

	// No queue configured: rebuild and broadcast in-process.
	s.recomputeInline(ctx, job)
}

func (s *Service) recomputeInline(ctx context.Context, job domain.RecomputeJob) {
	if s.results == nil {
		return
	}
	result, err := s.results.Recompute(ctx, job.ElectionID, job.ConstituencyID)
	if err != nil {
		s.log.Error("inline recompute failed", "err", err,
			"election", job.ElectionID, "constituency", job.ConstituencyID)
		return
	}
	if s.broadcaster == nil {
		return
	}
	update := domain.ConstituencyUpdate{
		ElectionID:     result.ElectionID,
		ConstituencyID: result.ConstituencyID,
		Color:          result.MapColor,
		Breakdown:      result.Breakdown,
		TotalVotes:     result.TotalVotes,
		WinnerName:     result.WinnerName,
		WinnerParty:    result.WinnerParty,
	}
	if err := s.broadcaster.PublishConstituencyUpdate(ctx, update); err != nil {
		s.log.Error("constituency broadcast failed", "err", err, "election", job.ElectionID)
	}
	total, err := s.electionTotal(ctx, job.ElectionID)
	if err != nil {
		s.log.Error("vote count read failed", "err", err, "election", job.ElectionID)
		return
	}
	if err := s.broadcaster.PublishVoteCount(ctx, job.ElectionID, total); err != nil {
		s.log.Error("vote count broadcast failed", "err", err, "election", job.ElectionID)
	}
}

// electionTotal prefers the live counter and falls back to the authoritative
// ledger count when the key is cold.
func (s *Service) electionTotal(ctx context.Context, electionID domain.ElectionID) (int64, error) {
	if s.counter != nil {
		total, err := s.counter.Get(ctx, CounterKeyElectionTotal(electionID))
		if err == nil && total > 0 {
			return total, nil
		}
	}
	return s.ledger.CountByElection(ctx, electionID)
}

// VerifyReceipt resolves a receipt into the recorded ballot's public facts.
// The response is built purely from the anonymous vote row and catalog data;
// device and session stay out of reach by construction.
func (s *Service) VerifyReceipt(ctx context.Context, receiptToken string) (domain.ReceiptDetails, error) {
	if receiptToken == "" {
		return domain.ReceiptDetails{}, fmt.Errorf("%w: missing receipt token", domain.ErrValidation)
	}

	vote, err := s.ledger.FindByReceipt(ctx, receiptToken)
	if err != nil {
		return domain.ReceiptDetails{}, err
	}

	election, err := s.elections.FindByID(ctx, vote.ElectionID)
	if err != nil {
		return domain.ReceiptDetails{}, err
	}
	constituency, err := s.constituencies.FindByID(ctx, vote.ConstituencyID)
	if err != nil {
		return domain.ReceiptDetails{}, err
	}
	candidate, err := s.candidates.FindByID(ctx, vote.CandidateID)
	if err != nil {
		return domain.ReceiptDetails{}, err
	}

	return domain.ReceiptDetails{
		ElectionID:       election.ID,
		ElectionName:     election.Name,
		ConstituencyCode: constituency.Code,
		ConstituencyName: constituency.Name,
		CandidateName:    candidate.Name,
		PartyName:        candidate.Party.Name,
		PartyColor:       candidate.Party.Color,
		VotedAt:          vote.CreatedAt,
	}, nil
}

var _ domain.VotingService = (*Service)(nil)
