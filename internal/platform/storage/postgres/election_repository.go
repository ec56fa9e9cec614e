package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelojr/votemap/internal/domain"
)

// ElectionRepository reads the election catalog owned by the admin subsystem.
type ElectionRepository struct {
	db *gorm.DB
}

func NewElectionRepository(db *gorm.DB) *ElectionRepository {
	return &ElectionRepository{db: db}
}

func (r *ElectionRepository) FindByID(ctx context.Context, id domain.ElectionID) (domain.Election, error) {
	var election domain.Election
	if err := r.db.WithContext(ctx).First(&election, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Election{}, fmt.Errorf("%w: election %s", domain.ErrNotFound, id)
		}
		return domain.Election{}, fmt.Errorf("gorm elections: find by id: %w", err)
	}
	return election, nil
}

var _ domain.ElectionRepository = (*ElectionRepository)(nil)

// ConstituencyRepository reads the constituency catalog.
type ConstituencyRepository struct {
	db *gorm.DB
}

func NewConstituencyRepository(db *gorm.DB) *ConstituencyRepository {
	return &ConstituencyRepository{db: db}
}

func (r *ConstituencyRepository) FindByID(ctx context.Context, id domain.ConstituencyID) (domain.Constituency, error) {
	var constituency domain.Constituency
	if err := r.db.WithContext(ctx).First(&constituency, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Constituency{}, fmt.Errorf("%w: constituency %s", domain.ErrNotFound, id)
		}
		return domain.Constituency{}, fmt.Errorf("gorm constituencies: find by id: %w", err)
	}
	return constituency, nil
}

var _ domain.ConstituencyRepository = (*ConstituencyRepository)(nil)
