// Package results derives the per-constituency aggregates: winner, margin,
// turnout-relative shares and the proportional map color.
package results

import (
	"context"
	"errors"
	"time"

	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/metrics"
)

// Service recomputes constituency aggregates from the tally table and keeps
// the derived cache. Recomputation is idempotent: the cache row is fully
// overwritten every time.
type Service struct {
	elections domain.ElectionRepository
	repo      domain.ResultRepository
	ledger    domain.VoteLedger
	clock     domain.Clock
}

func NewService(
	elections domain.ElectionRepository,
	repo domain.ResultRepository,
	ledger domain.VoteLedger,
	clock domain.Clock,
) *Service {
	return &Service{
		elections: elections,
		repo:      repo,
		ledger:    ledger,
		clock:     clock,
	}
}

// Recompute rebuilds one constituency aggregate from the VoteResult rows.
// Tie-break for equal maximum counts: lowest ballot order wins, then the
// smallest candidate ID. The tally query already delivers that order, so the
// strict comparison below is the whole rule.
func (s *Service) Recompute(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (domain.ConstituencyResult, error) {
	start := time.Now()

	tallies, err := s.repo.TallyByConstituency(ctx, electionID, constituencyID)
	if err != nil {
		return domain.ConstituencyResult{}, err
	}

	result := s.derive(electionID, constituencyID, tallies)
	if err := s.repo.SaveConstituencyResult(ctx, result); err != nil {
		return domain.ConstituencyResult{}, err
	}

	metrics.ObserveRecomputeDuration(time.Since(start).Seconds())
	return result, nil
}

func (s *Service) derive(electionID domain.ElectionID, constituencyID domain.ConstituencyID, tallies []domain.CandidateTally) domain.ConstituencyResult {
	now := s.clock.Now()

	var total int64
	for _, t := range tallies {
		total += t.VoteCount
	}

	if total == 0 {
		return domain.ConstituencyResult{
			ElectionID:     electionID,
			ConstituencyID: constituencyID,
			MapColor:       NeutralColor,
			Breakdown:      []domain.CandidateShare{},
			UpdatedAt:      now,
		}
	}

	colors := make([]string, len(tallies))
	weights := make([]float64, len(tallies))
	breakdown := make([]domain.CandidateShare, len(tallies))

	winnerIdx := 0
	for i, t := range tallies {
		weight := float64(t.VoteCount) / float64(total)
		colors[i] = t.PartyColor
		weights[i] = weight
		breakdown[i] = domain.CandidateShare{
			CandidateID:   t.CandidateID,
			CandidateName: t.CandidateName,
			PartyShort:    t.PartyShort,
			PartyColor:    t.PartyColor,
			VoteCount:     t.VoteCount,
			Percentage:    round2(weight * 100),
		}
		if t.VoteCount > tallies[winnerIdx].VoteCount {
			winnerIdx = i
		}
	}

	winner := tallies[winnerIdx]
	winningPercentage := round2(float64(winner.VoteCount) / float64(total) * 100)

	// Runner-up is the best count among everyone else; when the winner stands
	// alone the margin equals the winning percentage.
	victoryMargin := winningPercentage
	var runnerUp int64 = -1
	for i, t := range tallies {
		if i == winnerIdx {
			continue
		}
		if t.VoteCount > runnerUp {
			runnerUp = t.VoteCount
		}
	}
	if runnerUp >= 0 {
		victoryMargin = round2(float64(winner.VoteCount-runnerUp) / float64(total) * 100)
	}

	return domain.ConstituencyResult{
		ElectionID:         electionID,
		ConstituencyID:     constituencyID,
		MapColor:           blendColors(colors, weights),
		Breakdown:          breakdown,
		WinningCandidateID: winner.CandidateID,
		WinnerName:         winner.CandidateName,
		WinnerParty:        winner.PartyShort,
		WinningPercentage:  winningPercentage,
		VictoryMargin:      victoryMargin,
		TotalVotes:         total,
		UpdatedAt:          now,
	}
}

// ElectionResults returns every cached constituency aggregate plus the
// election-wide total from the authoritative ledger.
func (s *Service) ElectionResults(ctx context.Context, electionID domain.ElectionID) (domain.ElectionResults, error) {
	election, err := s.elections.FindByID(ctx, electionID)
	if err != nil {
		return domain.ElectionResults{}, err
	}

	constituencies, err := s.repo.ListConstituencyResults(ctx, electionID)
	if err != nil {
		return domain.ElectionResults{}, err
	}

	total, err := s.ledger.CountByElection(ctx, electionID)
	if err != nil {
		return domain.ElectionResults{}, err
	}

	return domain.ElectionResults{
		ElectionID:     election.ID,
		ElectionName:   election.Name,
		Status:         election.Status,
		TotalVotes:     total,
		Constituencies: constituencies,
	}, nil
}

// ConstituencyResults serves the cache, deriving it on demand when no vote
// has warmed it yet — the cache is never the source of truth.
func (s *Service) ConstituencyResults(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (domain.ConstituencyResult, error) {
	cached, err := s.repo.FindConstituencyResult(ctx, electionID, constituencyID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ConstituencyResult{}, err
	}
	return s.Recompute(ctx, electionID, constituencyID)
}

var _ domain.ResultsService = (*Service)(nil)
