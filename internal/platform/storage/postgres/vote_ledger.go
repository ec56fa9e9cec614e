package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelojr/votemap/internal/domain"
)

// VoteLedger owns the cast transaction. The session compare-and-set is the
// gate inside the same transaction that writes the ballot and bumps the
// tally, so a vote can never land without consuming its session, and two
// requests holding the same token can never both commit.
type VoteLedger struct {
	db *gorm.DB
}

func NewVoteLedger(db *gorm.DB) *VoteLedger {
	return &VoteLedger{db: db}
}

func (l *VoteLedger) Cast(ctx context.Context, vote domain.Vote, sessionToken string, now time.Time) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional update, not read-then-write: exactly one concurrent
		// caster flips has_voted.
		res := tx.Model(&domain.VoterSession{}).
			Where("session_token = ? AND election_id = ? AND has_voted = ? AND expires_at > ?",
				sessionToken, vote.ElectionID, false, now).
			Updates(map[string]any{
				"has_voted":  true,
				"voted_at":   now,
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("gorm ledger: consume session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return l.explainConsumeFailure(tx, sessionToken, vote.ElectionID, now)
		}

		// Device id comes off the session row; the vote row itself must stay
		// free of any device linkage.
		var session domain.VoterSession
		if err := tx.First(&session, "session_token = ?", sessionToken).Error; err != nil {
			return fmt.Errorf("gorm ledger: load session: %w", err)
		}

		if err := tx.Create(&vote).Error; err != nil {
			return fmt.Errorf("gorm ledger: insert vote: %w", err)
		}

		tally := domain.VoteResult{
			ElectionID:     vote.ElectionID,
			ConstituencyID: vote.ConstituencyID,
			CandidateID:    vote.CandidateID,
			VoteCount:      1,
			UpdatedAt:      now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "election_id"},
				{Name: "constituency_id"},
				{Name: "candidate_id"},
			},
			DoUpdates: clause.Assignments(map[string]any{
				"vote_count": gorm.Expr("vote_count + 1"),
				"updated_at": now,
			}),
		}).Create(&tally).Error; err != nil {
			return fmt.Errorf("gorm ledger: increment tally: %w", err)
		}

		if err := tx.Model(&domain.DeviceFingerprint{}).
			Where("id = ?", session.DeviceFingerprintID).
			Update("vote_count", gorm.Expr("vote_count + 1")).Error; err != nil {
			return fmt.Errorf("gorm ledger: bump device count: %w", err)
		}

		return nil
	})
}

// explainConsumeFailure turns a zero-row conditional update into the precise
// taxonomy error. Runs inside the same transaction, so the row it reads is
// the row the update saw.
func (l *VoteLedger) explainConsumeFailure(tx *gorm.DB, sessionToken string, electionID domain.ElectionID, now time.Time) error {
	var session domain.VoterSession
	err := tx.First(&session, "session_token = ?", sessionToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: session", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("gorm ledger: inspect session: %w", err)
	}
	switch {
	case session.HasVoted:
		return fmt.Errorf("%w: already voted", domain.ErrConflict)
	case !session.ExpiresAt.After(now):
		return fmt.Errorf("%w: session expired", domain.ErrExpired)
	case session.ElectionID != electionID:
		return fmt.Errorf("%w: session belongs to a different election", domain.ErrConflict)
	default:
		return fmt.Errorf("%w: session not consumable", domain.ErrConflict)
	}
}

func (l *VoteLedger) FindByReceipt(ctx context.Context, receiptToken string) (domain.Vote, error) {
	var vote domain.Vote
	if err := l.db.WithContext(ctx).First(&vote, "receipt_token = ?", receiptToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Vote{}, fmt.Errorf("%w: receipt", domain.ErrNotFound)
		}
		return domain.Vote{}, fmt.Errorf("gorm ledger: find by receipt: %w", err)
	}
	return vote, nil
}

func (l *VoteLedger) CountByElection(ctx context.Context, id domain.ElectionID) (int64, error) {
	var total int64
	if err := l.db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("election_id = ?", id).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("gorm ledger: count election: %w", err)
	}
	return total, nil
}

func (l *VoteLedger) CountByConstituency(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (int64, error) {
	var total int64
	if err := l.db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("election_id = ? AND constituency_id = ?", electionID, constituencyID).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("gorm ledger: count constituency: %w", err)
	}
	return total, nil
}

var _ domain.VoteLedger = (*VoteLedger)(nil)
