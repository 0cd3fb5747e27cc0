package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/axellelanca/shortly/internal/models"
)

// ClickRepository defines the data access methods for click analytics rows.
type ClickRepository interface {
	CreateClick(ctx context.Context, click *models.Click) error
	CountClicksByLinkID(ctx context.Context, linkID string) (int64, error)
}

// GormClickRepository is the ClickRepository implementation backed by GORM.
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository creates a GormClickRepository.
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// CreateClick inserts one click analytics row.
func (r *GormClickRepository) CreateClick(ctx context.Context, click *models.Click) error {
	if err := r.db.WithContext(ctx).Create(click).Error; err != nil {
		return fmt.Errorf("failed to create click: %w", err)
	}
	return nil
}

// CountClicksByLinkID counts the analytics rows recorded for a link.
func (r *GormClickRepository) CountClicksByLinkID(ctx context.Context, linkID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Click{}).
		Where("link_id = ?", linkID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count clicks for link ID %s: %w", linkID, err)
	}
	return count, nil
}
