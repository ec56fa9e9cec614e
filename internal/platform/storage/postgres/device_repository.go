package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcelojr/votemap/internal/domain"
	"github.com/marcelojr/votemap/internal/platform/ids"
)

// DeviceRepository keeps the fingerprint registry. Identity resolution gates
// voting eligibility, so every storage failure here surfaces as ErrUnavailable
// and the caller fails closed.
type DeviceRepository struct {
	db  *gorm.DB
	ids *ids.Generator
}

func NewDeviceRepository(db *gorm.DB, idGen *ids.Generator) *DeviceRepository {
	if idGen == nil {
		idGen = ids.DefaultGenerator()
	}
	return &DeviceRepository{db: db, ids: idGen}
}

func (r *DeviceRepository) Upsert(ctx context.Context, fingerprintHash, ipHash string, now time.Time) (domain.DeviceFingerprint, error) {
	record := domain.DeviceFingerprint{
		ID:              domain.DeviceID(r.ids.New()),
		FingerprintHash: fingerprintHash,
		IPHash:          ipHash,
		FirstSeen:       now,
		LastSeen:        now,
	}

	// The unique index on fingerprint_hash resolves concurrent first
	// sightings: losers of the race fall into the conflict branch and only
	// refresh last_seen.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fingerprint_hash"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_seen": now,
		}),
	}).Create(&record).Error
	if err != nil {
		return domain.DeviceFingerprint{}, fmt.Errorf("%w: devices upsert: %v", domain.ErrUnavailable, err)
	}

	// Reload to obtain the canonical row: on conflict the generated ID above
	// never landed, and flagged/vote_count come from the existing record.
	var out domain.DeviceFingerprint
	if err := r.db.WithContext(ctx).First(&out, "fingerprint_hash = ?", fingerprintHash).Error; err != nil {
		return domain.DeviceFingerprint{}, fmt.Errorf("%w: devices reload: %v", domain.ErrUnavailable, err)
	}
	return out, nil
}

var _ domain.DeviceRepository = (*DeviceRepository)(nil)
