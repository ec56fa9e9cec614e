package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelojr/votemap/internal/domain"
)

// ResultRepository reads tallies for aggregation and owns the derived
// constituency_results cache.
type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// TallyByConstituency joins vote_results with the candidate slate and party
// colors. Runs inside a transaction so the aggregator never observes a
// half-applied increment.
func (r *ResultRepository) TallyByConstituency(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) ([]domain.CandidateTally, error) {
	type row struct {
		CandidateID   string
		CandidateName string
		PartyShort    string
		PartyColor    string
		BallotOrder   int
		VoteCount     int64
	}

	var rows []row
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Raw(`
            SELECT c.id          AS candidate_id,
                   c.name        AS candidate_name,
                   p.short_name  AS party_short,
                   p.color       AS party_color,
                   c.ballot_order AS ballot_order,
                   vr.vote_count AS vote_count
            FROM vote_results vr
            JOIN candidates c ON c.id = vr.candidate_id
            JOIN parties p ON p.id = c.party_id
            WHERE vr.election_id = ? AND vr.constituency_id = ?
            ORDER BY c.ballot_order ASC, c.id ASC
        `, electionID, constituencyID).Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("gorm results: tally by constituency: %w", err)
	}

	tallies := make([]domain.CandidateTally, len(rows))
	for i, item := range rows {
		tallies[i] = domain.CandidateTally{
			CandidateID:   domain.CandidateID(item.CandidateID),
			CandidateName: item.CandidateName,
			PartyShort:    item.PartyShort,
			PartyColor:    item.PartyColor,
			BallotOrder:   item.BallotOrder,
			VoteCount:     item.VoteCount,
		}
	}
	return tallies, nil
}

// SaveConstituencyResult fully overwrites the cached row; recomputation with
// no intervening votes writes the identical state twice.
func (r *ResultRepository) SaveConstituencyResult(ctx context.Context, result domain.ConstituencyResult) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "election_id"}, {Name: "constituency_id"}},
		UpdateAll: true,
	}).Create(&result).Error
	if err != nil {
		return fmt.Errorf("gorm results: save constituency result: %w", err)
	}
	return nil
}

func (r *ResultRepository) FindConstituencyResult(ctx context.Context, electionID domain.ElectionID, constituencyID domain.ConstituencyID) (domain.ConstituencyResult, error) {
	var result domain.ConstituencyResult
	err := r.db.WithContext(ctx).
		First(&result, "election_id = ? AND constituency_id = ?", electionID, constituencyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ConstituencyResult{}, fmt.Errorf("%w: constituency result", domain.ErrNotFound)
		}
		return domain.ConstituencyResult{}, fmt.Errorf("gorm results: find constituency result: %w", err)
	}
	return result, nil
}

func (r *ResultRepository) ListConstituencyResults(ctx context.Context, electionID domain.ElectionID) ([]domain.ConstituencyResult, error) {
	var results []domain.ConstituencyResult
	err := r.db.WithContext(ctx).
		Where("election_id = ?", electionID).
		Order("constituency_id ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("gorm results: list constituency results: %w", err)
	}
	return results, nil
}

var _ domain.ResultRepository = (*ResultRepository)(nil)
