package models

import "time"

// Click is one recorded visit on a shortened link. The authoritative click
// counter lives on the Link row itself; these rows are the detailed analytics
// trail (who, when, from where) written asynchronously by the click workers.
type Click struct {
	ID uint `gorm:"primaryKey"`

	// LinkID references the Link that was visited.
	// Indexed so per-link analytics queries stay cheap.
	LinkID string `gorm:"index;size:36"`

	// Timestamp is the moment the redirect was served.
	Timestamp time.Time

	// UserAgent holds the client browser information.
	UserAgent string `gorm:"size:255"`

	// IPAddress is large enough for both IPv4 and IPv6.
	IPAddress string `gorm:"size:50"`
}

// ClickEvent is the lightweight form of a click passed through the worker
// channel. It carries only what is needed to build a Click row later.
type ClickEvent struct {
	LinkID    string
	Timestamp time.Time
	UserAgent string
	IPAddress string
}
