package models

import "time"

// LinkStatus is the lifecycle state of a link. Only ACTIVE links resolve
// publicly; a PAUSED link answers exactly like a missing one.
type LinkStatus string

const (
	StatusActive LinkStatus = "ACTIVE"
	StatusPaused LinkStatus = "PAUSED"
)

// Link represents a shortened link stored in the database.
type Link struct {
	// ID is an opaque, generator-assigned identifier (UUID). It never changes,
	// even when the alias is edited, which makes it the stable handle for
	// owner-scoped operations.
	ID string `gorm:"primaryKey;size:36"`

	// ShortID is the public short alias. Editable by the owner or an admin,
	// but unique at all times: the unique index is the final authority on
	// alias collisions, regardless of what any cache pre-check said.
	ShortID string `gorm:"uniqueIndex;size:50;not null"`

	// TargetURL is the absolute URL the alias redirects to.
	TargetURL string `gorm:"not null"`

	// OwnerID references the user that created the link. The user entity
	// itself lives with the identity provider, not in this database.
	OwnerID string `gorm:"index;size:36"`

	// Clicks is the total redirect count. Only ever incremented, and only via
	// an atomic store-level update (clicks = clicks + 1).
	Clicks int64 `gorm:"not null;default:0"`

	Status LinkStatus `gorm:"size:10;not null;default:ACTIVE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// IsActive reports whether the link currently resolves for the public.
func (l *Link) IsActive() bool {
	return l.Status == StatusActive
}

// LinkPatch carries the optional fields of an edit request.
// A nil field means "leave unchanged".
type LinkPatch struct {
	TargetURL *string
	ShortID   *string
	Status    *LinkStatus
}
