package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/marcelojr/votemap/internal/domain"
)

// AuditRepository appends forensics entries. Callers treat failures as
// log-and-continue; an audit miss never unwinds a committed vote.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, entry domain.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("gorm audit: insert: %w", err)
	}
	return nil
}

var _ domain.AuditRepository = (*AuditRepository)(nil)
