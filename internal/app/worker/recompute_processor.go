// Package worker drains the recompute queue: it rebuilds constituency
// aggregates after each committed vote and hands the resulting events to the
// broadcaster.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcelojr/votemap/internal/app/voting"
	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/logger"
)

// RecomputeProcessor recomputes and broadcasts. Failed recomputations go back
// on the queue with a bumped attempt count; after maxAttempts the job is
// dropped with a log line — the cache is re-derivable, the next vote in the
// same constituency will heal it.
type RecomputeProcessor struct {
	results     domain.ResultsService
	ledger      domain.VoteLedger
	counter     domain.Counter
	broadcaster domain.Broadcaster
	queue       domain.RecomputeQueue
	maxAttempts int
	log         *slog.Logger
}

func NewRecomputeProcessor(
	results domain.ResultsService,
	ledger domain.VoteLedger,
	counter domain.Counter,
	broadcaster domain.Broadcaster,
	queue domain.RecomputeQueue,
	maxAttempts int,
	log *slog.Logger,
) *RecomputeProcessor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = logger.L()
	}
	return &RecomputeProcessor{
		results:     results,
		ledger:      ledger,
		counter:     counter,
		broadcaster: broadcaster,
		queue:       queue,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (p *RecomputeProcessor) Process(ctx context.Context, job domain.RecomputeJob) error {
	result, err := p.results.Recompute(ctx, job.ElectionID, job.ConstituencyID)
	if err != nil {
		return p.requeue(ctx, job, err)
	}

	if p.broadcaster == nil {
		return nil
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
	if err := p.broadcaster.PublishConstituencyUpdate(ctx, update); err != nil {
		// Best-effort delivery: subscribers resync from the results endpoint.
		p.log.Error("constituency broadcast failed", "err", err,
			"election", job.ElectionID, "constituency", job.ConstituencyID)
	}

	total, err := p.electionTotal(ctx, job.ElectionID)
	if err != nil {
		p.log.Error("vote count read failed", "err", err, "election", job.ElectionID)
		return nil
	}
	if err := p.broadcaster.PublishVoteCount(ctx, job.ElectionID, total); err != nil {
		p.log.Error("vote count broadcast failed", "err", err, "election", job.ElectionID)
	}

	return nil
}

func (p *RecomputeProcessor) requeue(ctx context.Context, job domain.RecomputeJob, cause error) error {
	job.Attempt++
	if job.Attempt >= p.maxAttempts {
		p.log.Error("recompute job dropped after max attempts", "err", cause,
			"election", job.ElectionID, "constituency", job.ConstituencyID, "attempts", job.Attempt)
		return nil
	}
	if p.queue == nil {
		return fmt.Errorf("worker: recompute %s/%s: %w", job.ElectionID, job.ConstituencyID, cause)
	}
	p.log.Warn("recompute failed, requeueing", "err", cause,
		"election", job.ElectionID, "constituency", job.ConstituencyID, "attempt", job.Attempt)
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("worker: requeue %s/%s: %w", job.ElectionID, job.ConstituencyID, err)
	}
	return nil
}

func (p *RecomputeProcessor) electionTotal(ctx context.Context, electionID domain.ElectionID) (int64, error) {
	if p.counter != nil {
		total, err := p.counter.Get(ctx, voting.CounterKeyElectionTotal(electionID))
		if err == nil && total > 0 {
			return total, nil
		}
	}
	return p.ledger.CountByElection(ctx, electionID)
}
