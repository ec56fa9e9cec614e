package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelojr/votemap/internal/domain"
)

func TestCandidateRepository_FindByID_ShouldPreloadParty(t *testing.T) {
	db := setupPostgres(t)
	repo := NewCandidateRepository(db)

	ballot := seedBallot(t, db)
	candidate, err := repo.FindByID(context.Background(), ballot.candidates[0].ID)
	require.NoError(t, err)

	assert.Equal(t, "Alice Monteiro", candidate.Name)
	assert.Equal(t, "Green Alliance", candidate.Party.Name)
	assert.Equal(t, "#3355ff", candidate.Party.Color)
}

func TestCandidateRepository_FindForBallot_WhenPairingMatches_ShouldReturnCandidate(t *testing.T) {
	db := setupPostgres(t)
	repo := NewCandidateRepository(db)

	ballot := seedBallot(t, db)
	candidate, err := repo.FindForBallot(context.Background(),
		ballot.candidates[1].ID, ballot.election.ID, ballot.constituency.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bruno Silva", candidate.Name)
}

func TestCandidateRepository_FindForBallot_WhenConstituencyMismatch_ShouldReturnValidationError(t *testing.T) {
	db := setupPostgres(t)
	repo := NewCandidateRepository(db)

	ballot := seedBallot(t, db)
	other := seedBallot(t, db)

	_, err := repo.FindForBallot(context.Background(),
		ballot.candidates[0].ID, ballot.election.ID, other.constituency.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCandidateRepository_FindForBallot_WhenElectionMismatch_ShouldReturnValidationError(t *testing.T) {
	db := setupPostgres(t)
	repo := NewCandidateRepository(db)

	ballot := seedBallot(t, db)
	other := seedBallot(t, db)

	_, err := repo.FindForBallot(context.Background(),
		ballot.candidates[0].ID, other.election.ID, ballot.constituency.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
