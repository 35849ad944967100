package models

import (
	"time"
)

// MigrationStatus tracks the lifecycle of one Map migration.
type MigrationStatus string

const (
	MigrationInProgress MigrationStatus = "in_progress"
	MigrationCompleted  MigrationStatus = "completed"
	MigrationRolledBack MigrationStatus = "rolled_back"
)

// MigrationRecord journals one coordinated rewrite of a site's Map
// contents so it can be rolled back.
type MigrationRecord struct {
	MigrationID string          `json:"migration_id"`
	Site        string          `json:"site"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Status      MigrationStatus `json:"status"`
	OldPointIDs []string        `json:"old_point_ids"`
	NewChunkIDs []string        `json:"new_chunk_ids"`
}

// BackupPayload is one vector-index payload saved before a migration
// deletes it, keyed by point ID and migration ID.
type BackupPayload struct {
	PointID     string    `json:"point_id"`
	MigrationID string    `json:"migration_id"`
	PayloadJSON string    `json:"payload_json"`
	BackedUpAt  time.Time `json:"backed_up_at"`
}
