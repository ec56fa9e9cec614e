// Package migrations centralizes the gormigrate versions applied at startup.
package migrations

import (
	"fmt"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/marcelojr/votemap/internal/domain"
)

func Run(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil db")
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202508010001_init_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&domain.Election{},
					&domain.Party{},
					&domain.Constituency{},
					&domain.Candidate{},
					&domain.DeviceFingerprint{},
					&domain.VoterSession{},
					&domain.Vote{},
					&domain.VoteResult{},
					&domain.ConstituencyResult{},
					&domain.AuditLog{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"audit_logs",
					"constituency_results",
					"vote_results",
					"votes",
					"voter_sessions",
					"device_fingerprints",
					"candidates",
					"constituencies",
					"parties",
					"elections",
				)
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: apply: %w", err)
	}

	return nil
}
