package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelojr/votemap/internal/domain"
)

// CandidateRepository reads the candidate slate, party preloaded for colors.
type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

func (r *CandidateRepository) FindByID(ctx context.Context, id domain.CandidateID) (domain.Candidate, error) {
	var candidate domain.Candidate
	if err := r.db.WithContext(ctx).
		Preload("Party").
		First(&candidate, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Candidate{}, fmt.Errorf("%w: candidate %s", domain.ErrNotFound, id)
		}
		return domain.Candidate{}, fmt.Errorf("gorm candidates: find by id: %w", err)
	}
	return candidate, nil
}

// FindForBallot resolves the candidate only when election and constituency
// both match, which is the pairing check the cast path relies on.
func (r *CandidateRepository) FindForBallot(ctx context.Context, id domain.CandidateID, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (domain.Candidate, error) {
	var candidate domain.Candidate
	err := r.db.WithContext(ctx).
		Preload("Party").
		First(&candidate, "id = ? AND election_id = ? AND constituency_id = ?", id, electionID, constituencyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Candidate{}, fmt.Errorf("%w: candidate does not belong to this ballot", domain.ErrValidation)
		}
		return domain.Candidate{}, fmt.Errorf("gorm candidates: find for ballot: %w", err)
	}
	return candidate, nil
}

var _ domain.CandidateRepository = (*CandidateRepository)(nil)
