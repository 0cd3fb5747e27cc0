package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/axellelanca/shortly/internal/errors"
	"github.com/axellelanca/shortly/internal/models"
)

// LinkRepository defines the data access methods for links. The store owns
// every correctness-critical piece of mutual exclusion: the unique index on
// short_id serializes racing inserts/renames, and IncrementClicks is a single
// atomic update, never read-modify-write.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	FindByShortID(ctx context.Context, shortID string) (*models.Link, error)
	FindByID(ctx context.Context, id string) (*models.Link, error)
	// FindByKey resolves a union "id or alias" key: alias first, then id.
	FindByKey(ctx context.Context, key string) (*models.Link, error)
	Update(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error)
	Delete(ctx context.Context, id string) error
	// IncrementClicks bumps the click counter by exactly one, atomically.
	IncrementClicks(ctx context.Context, shortID string) error
	// ResolveActive is the hot path: lookup and click increment in one
	// transaction. Returns the resolved link, or ErrLinkNotFound for absent
	// and paused links alike.
	ResolveActive(ctx context.Context, shortID string) (*models.Link, error)
	// AliasExists is the authoritative existence check behind the cache layer.
	AliasExists(ctx context.Context, alias string) (bool, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error)
	// Search filters an owner's links by substring on alias and target URL.
	Search(ctx context.Context, ownerID, query string) ([]models.Link, error)
	ListActive(ctx context.Context) ([]models.Link, error)
}

// GormLinkRepository is the LinkRepository implementation backed by GORM.
type GormLinkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a GormLinkRepository.
func NewLinkRepository(db *gorm.DB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// isDuplicateAlias recognizes a unique-constraint violation on the alias
// column across the drivers we run on.
func isDuplicateAlias(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// Create inserts a new link. A racing insert of the same alias loses against
// the unique index and surfaces as ErrAliasTaken.
func (r *GormLinkRepository) Create(ctx context.Context, link *models.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isDuplicateAlias(err) {
			return apperrors.ErrAliasTaken
		}
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (r *GormLinkRepository) FindByShortID(ctx context.Context, shortID string) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).Where("short_id = ?", shortID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *GormLinkRepository) FindByID(ctx context.Context, id string) (*models.Link, error) {
	var link models.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// FindByKey accepts either the public alias or the internal id, resolving the
// key once instead of exposing two near-duplicate lookups.
func (r *GormLinkRepository) FindByKey(ctx context.Context, key string) (*models.Link, error) {
	link, err := r.FindByShortID(ctx, key)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, apperrors.ErrLinkNotFound) {
		return nil, err
	}
	return r.FindByID(ctx, key)
}

// Update applies a patch to the link with the given id. Renaming onto a taken
// alias loses against the unique index and surfaces as ErrAliasTaken.
func (r *GormLinkRepository) Update(ctx context.Context, id string, patch models.LinkPatch) (*models.Link, error) {
	updates := map[string]interface{}{}
	if patch.TargetURL != nil {
		updates["target_url"] = *patch.TargetURL
	}
	if patch.ShortID != nil {
		updates["short_id"] = *patch.ShortID
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}

	if len(updates) > 0 {
		result := r.db.WithContext(ctx).Model(&models.Link{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			if isDuplicateAlias(result.Error) {
				return nil, apperrors.ErrAliasTaken
			}
			return nil, fmt.Errorf("failed to update link %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, apperrors.ErrLinkNotFound
		}
	}

	return r.FindByID(ctx, id)
}

// Delete removes the link row entirely. Deletion is terminal; there is no
// soft-delete state.
func (r *GormLinkRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Link{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete link %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrLinkNotFound
	}
	return nil
}

// IncrementClicks performs the atomic clicks = clicks + 1 update so that
// concurrent redirects never lose increments.
func (r *GormLinkRepository) IncrementClicks(ctx context.Context, shortID string) error {
	return r.db.WithContext(ctx).Model(&models.Link{}).
		Where("short_id = ?", shortID).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1)).Error
}

// ResolveActive wraps the redirect lookup and the click increment in one
// transaction, so a link paused or deleted between the two does not get
// counted. Absent and paused links return the identical ErrLinkNotFound.
// A failing increment after a successful lookup is logged and tolerated:
// losing a click is acceptable, losing the redirect is not.
func (r *GormLinkRepository) ResolveActive(ctx context.Context, shortID string) (*models.Link, error) {
	var resolved models.Link

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "short_id", "target_url", "status").
			Where("short_id = ?", shortID).First(&resolved).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrLinkNotFound
			}
			return err
		}

		if !resolved.IsActive() {
			return apperrors.ErrLinkNotFound
		}

		if err := tx.Model(&models.Link{}).Where("short_id = ?", shortID).
			UpdateColumn("clicks", gorm.Expr("clicks + ?", 1)).Error; err != nil {
			log.Printf("repository: click increment failed for %s, redirect still served: %v", shortID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &resolved, nil
}

// AliasExists checks the unique alias column without loading the row.
func (r *GormLinkRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).
		Where("short_id = ?", alias).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check alias %s: %w", alias, err)
	}
	return count > 0, nil
}

func (r *GormLinkRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Link{}).
		Where("owner_id = ?", ownerID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count links for owner %s: %w", ownerID, err)
	}
	return count, nil
}

func (r *GormLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	var links []models.Link
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list links for owner %s: %w", ownerID, err)
	}
	return links, nil
}

func (r *GormLinkRepository) Search(ctx context.Context, ownerID, query string) ([]models.Link, error) {
	pattern := "%" + query + "%"
	var links []models.Link
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Where("short_id LIKE ? OR target_url LIKE ?", pattern, pattern).
		Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to search links for owner %s: %w", ownerID, err)
	}
	return links, nil
}

// ListActive returns every ACTIVE link; used by the URL health monitor.
func (r *GormLinkRepository) ListActive(ctx context.Context) ([]models.Link, error) {
	var links []models.Link
	if err := r.db.WithContext(ctx).Where("status = ?", models.StatusActive).
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list active links: %w", err)
	}
	return links, nil
}
