// Package rollback journals vector-index migrations so a failed rewrite
// of a site's Map contents can be undone. Old point payloads are backed
// up before deletion and kept until explicitly cleaned up.
package rollback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS migration_records (
	migration_id  TEXT PRIMARY KEY,
	site          TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	completed_at  TEXT,
	status        TEXT NOT NULL,
	old_point_ids TEXT NOT NULL DEFAULT '[]',
	new_chunk_ids TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS qdrant_backup (
	point_id     TEXT NOT NULL,
	migration_id TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	backed_up_at TEXT NOT NULL,
	PRIMARY KEY (point_id, migration_id)
);
CREATE INDEX IF NOT EXISTS idx_qdrant_backup_migration ON qdrant_backup(migration_id);
`

// Manager owns the rollback journal database.
type Manager struct {
	db     *sql.DB
	logger arbor.ILogger
}

// Open creates or opens the journal at the configured path.
func Open(cfg common.RollbackConfig, logger arbor.ILogger) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create rollback directory: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rollback database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL on rollback database: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rollback schema: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Msg("Rollback journal initialized")
	return &Manager{db: db, logger: logger}, nil
}

// Start opens a new migration record for a site and returns its ID.
func (m *Manager) Start(ctx context.Context, site string) (string, error) {
	id := uuid.NewString()
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO migration_records (migration_id, site, started_at, status)
		 VALUES (?, ?, ?, ?)`,
		id, site, time.Now().UTC().Format(time.RFC3339), models.MigrationInProgress)
	if err != nil {
		return "", fmt.Errorf("failed to start migration for %s: %w", site, err)
	}

	m.logger.Info().Str("migration_id", id).Str("site", site).Msg("Migration started")
	return id, nil
}

// RecordOldPoints stores the IDs of the points about to be deleted.
func (m *Manager) RecordOldPoints(ctx context.Context, migrationID string, pointIDs []string) error {
	data, err := json.Marshal(pointIDs)
	if err != nil {
		return fmt.Errorf("failed to encode point IDs: %w", err)
	}
	_, err = m.db.ExecContext(ctx,
		`UPDATE migration_records SET old_point_ids = ? WHERE migration_id = ?`,
		string(data), migrationID)
	if err != nil {
		return fmt.Errorf("failed to record old points for %s: %w", migrationID, err)
	}
	return nil
}

// BackupPayloads saves point payloads before deletion, keyed by point and
// migration. All rows land in one transaction.
func (m *Manager) BackupPayloads(ctx context.Context, migrationID string, payloads map[string]string) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin backup transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO qdrant_backup (point_id, migration_id, payload_json, backed_up_at)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare backup insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for pointID, payload := range payloads {
		if _, err := stmt.ExecContext(ctx, pointID, migrationID, payload, now); err != nil {
			return fmt.Errorf("failed to back up point %s: %w", pointID, err)
		}
	}
	return tx.Commit()
}

// Complete marks a migration finished and records the new chunk IDs.
func (m *Manager) Complete(ctx context.Context, migrationID string, newChunkIDs []string) error {
	data, err := json.Marshal(newChunkIDs)
	if err != nil {
		return fmt.Errorf("failed to encode chunk IDs: %w", err)
	}
	_, err = m.db.ExecContext(ctx,
		`UPDATE migration_records
		 SET status = ?, completed_at = ?, new_chunk_ids = ?
		 WHERE migration_id = ?`,
		models.MigrationCompleted, time.Now().UTC().Format(time.RFC3339), string(data), migrationID)
	if err != nil {
		return fmt.Errorf("failed to complete migration %s: %w", migrationID, err)
	}

	m.logger.Info().Str("migration_id", migrationID).Msg("Migration completed")
	return nil
}

// MarkRolledBack flags a migration as rolled back after its failure path
// restored the old points.
func (m *Manager) MarkRolledBack(ctx context.Context, migrationID string) error {
	_, err := m.db.ExecContext(ctx,
		`UPDATE migration_records SET status = ?, completed_at = ? WHERE migration_id = ?`,
		models.MigrationRolledBack, time.Now().UTC().Format(time.RFC3339), migrationID)
	if err != nil {
		return fmt.Errorf("failed to mark migration %s rolled back: %w", migrationID, err)
	}

	m.logger.Warn().Str("migration_id", migrationID).Msg("Migration rolled back")
	return nil
}

// GetRecord loads one migration record.
func (m *Manager) GetRecord(ctx context.Context, migrationID string) (*models.MigrationRecord, error) {
	var (
		rec            models.MigrationRecord
		startedAt      string
		completedAt    sql.NullString
		oldIDs, newIDs string
	)
	err := m.db.QueryRowContext(ctx,
		`SELECT migration_id, site, started_at, completed_at, status, old_point_ids, new_chunk_ids
		 FROM migration_records WHERE migration_id = ?`, migrationID).
		Scan(&rec.MigrationID, &rec.Site, &startedAt, &completedAt, &rec.Status, &oldIDs, &newIDs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("migration %s not found", migrationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %s: %w", migrationID, err)
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("migration %s has invalid started_at: %w", migrationID, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("migration %s has invalid completed_at: %w", migrationID, err)
		}
		rec.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(oldIDs), &rec.OldPointIDs); err != nil {
		return nil, fmt.Errorf("migration %s has invalid old_point_ids: %w", migrationID, err)
	}
	if err := json.Unmarshal([]byte(newIDs), &rec.NewChunkIDs); err != nil {
		return nil, fmt.Errorf("migration %s has invalid new_chunk_ids: %w", migrationID, err)
	}
	return &rec, nil
}

// GetBackupPayloads returns the backed-up payloads of one migration,
// keyed by point ID.
func (m *Manager) GetBackupPayloads(ctx context.Context, migrationID string) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT point_id, payload_json FROM qdrant_backup WHERE migration_id = ?`, migrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups for %s: %w", migrationID, err)
	}
	defer rows.Close()

	payloads := make(map[string]string)
	for rows.Next() {
		var pointID, payload string
		if err := rows.Scan(&pointID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}
		payloads[pointID] = payload
	}
	return payloads, rows.Err()
}

// CleanupOldBackups deletes backups of finished migrations older than the
// given number of days. In-progress migrations keep their backups. Returns
// the number of backup rows removed.
func (m *Manager) CleanupOldBackups(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	res, err := m.db.ExecContext(ctx, `
		DELETE FROM qdrant_backup WHERE migration_id IN (
			SELECT migration_id FROM migration_records
			WHERE status IN (?, ?) AND started_at < ?
		)`,
		models.MigrationCompleted, models.MigrationRolledBack, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up backups: %w", err)
	}

	removed, _ := res.RowsAffected()
	if removed > 0 {
		m.logger.Info().Int64("removed", removed).Int("days", days).Msg("Old migration backups cleaned up")
	}
	return removed, nil
}

// Close closes the journal database.
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
