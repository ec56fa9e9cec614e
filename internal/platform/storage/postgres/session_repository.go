package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelojr/votemap/internal/domain"
)

// SessionRepository persists voter sessions. The has_voted transition is NOT
// handled here: it lives inside the vote ledger transaction so the
// compare-and-set and the ballot writes commit together.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) FindByToken(ctx context.Context, token string) (domain.VoterSession, error) {
	var session domain.VoterSession
	if err := r.db.WithContext(ctx).First(&session, "session_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VoterSession{}, fmt.Errorf("%w: session", domain.ErrNotFound)
		}
		return domain.VoterSession{}, fmt.Errorf("gorm sessions: find by token: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) FindByElectionAndDevice(ctx context.Context, electionID domain.ElectionID, deviceID domain.DeviceID) (domain.VoterSession, error) {
	var session domain.VoterSession
	err := r.db.WithContext(ctx).
		First(&session, "election_id = ? AND device_fingerprint_id = ?", electionID, deviceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VoterSession{}, fmt.Errorf("%w: session", domain.ErrNotFound)
		}
		return domain.VoterSession{}, fmt.Errorf("gorm sessions: find by pair: %w", err)
	}
	return session, nil
}

// Issue inserts the session or, when the (election, device) pair already has
// one, supersedes its token and expiry. has_voted is deliberately left out of
// the conflict assignments: a voted row keeps has_voted=true no matter how
// the issue/cast race interleaves.
func (r *SessionRepository) Issue(ctx context.Context, session domain.VoterSession) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "election_id"}, {Name: "device_fingerprint_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"session_token": session.SessionToken,
			"expires_at":    session.ExpiresAt,
			"updated_at":    session.UpdatedAt,
		}),
	}).Create(&session).Error
	if err != nil {
		return fmt.Errorf("gorm sessions: issue: %w", err)
	}
	return nil
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
