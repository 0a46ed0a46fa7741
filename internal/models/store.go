package models

import "time"

// CachedSnapshot is one persisted cache entry.
type CachedSnapshot struct {
	CacheKey  string   `gorm:"primaryKey"`
	Value     []byte   `gorm:"not null"`
	Tags      []string `gorm:"serializer:json"`
	StoredAt  time.Time
	UpdatedAt time.Time
}

// CacheTag records when a cache tag was last invalidated.
type CacheTag struct {
	Tag           string `gorm:"primaryKey"`
	InvalidatedAt time.Time
	UpdatedAt     time.Time
}

// SyncedCard records which calendar event mirrors a card and what was last written to it.
type SyncedCard struct {
	ID        string `gorm:"primaryKey"`
	BoardID   string `gorm:"index"`
	Name      string
	City      string
	DueDate   *time.Time
	URL       string
	EventID   string // Google Calendar Event ID
	CreatedAt time.Time
	UpdatedAt time.Time
}
