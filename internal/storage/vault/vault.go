// Package vault stores full chunk texts in SQLite as compressed blobs.
// The vector index holds only summaries; this is where the text itself
// lives, keyed by chunk ID.
package vault

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"github.com/ternarybob/gazette/internal/common"
	"github.com/ternarybob/gazette/internal/models"
)

const schemaVersion = 2

const createTableSQL = `
CREATE TABLE IF NOT EXISTS article_chunks (
	chunk_id          TEXT PRIMARY KEY,
	article_url       TEXT NOT NULL,
	chunk_index       INTEGER NOT NULL,
	compressed        BLOB NOT NULL,
	original_length   INTEGER NOT NULL,
	compressed_length INTEGER NOT NULL,
	version           INTEGER NOT NULL DEFAULT 2,
	is_deleted        INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL,
	deleted_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_article_chunks_url ON article_chunks(article_url);
`

// Vault is the chunk text store. Safe for concurrent readers; writes go
// through SQLite's own locking.
type Vault struct {
	db     *sql.DB
	cfg    common.VaultConfig
	logger arbor.ILogger
}

// Stats summarizes vault contents.
type Stats struct {
	ChunkCount       int64   `json:"chunk_count"`
	ArticleCount     int64   `json:"article_count"`
	DeletedCount     int64   `json:"deleted_count"`
	OriginalBytes    int64   `json:"original_bytes"`
	CompressedBytes  int64   `json:"compressed_bytes"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// Open creates or opens the vault database.
func Open(cfg common.VaultConfig, logger arbor.ILogger) (*Vault, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	// modernc.org/sqlite uses "sqlite" driver name (not "sqlite3")
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault database: %w", err)
	}

	v := &Vault{db: db, cfg: cfg, logger: logger}
	if err := v.configure(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure vault database: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vault schema: %w", err)
	}

	logger.Info().Str("path", cfg.Path).Msg("Vault database initialized")
	return v, nil
}

func (v *Vault) configure() error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", v.cfg.CacheSizeMB*1024), // Negative for KB
		fmt.Sprintf("PRAGMA busy_timeout = %d", v.cfg.BusyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
	}
	if v.cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := v.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// SaveChunks stores all chunks of one article in a single transaction.
// Either every chunk lands or none do. Re-saving a chunk ID replaces the
// existing row and clears any soft-delete mark.
func (v *Vault) SaveChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin vault transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO article_chunks
			(chunk_id, article_url, chunk_index, compressed, original_length,
			 compressed_length, version, is_deleted, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, NULL)
		ON CONFLICT(chunk_id) DO UPDATE SET
			article_url = excluded.article_url,
			chunk_index = excluded.chunk_index,
			compressed = excluded.compressed,
			original_length = excluded.original_length,
			compressed_length = excluded.compressed_length,
			version = excluded.version,
			is_deleted = 0,
			created_at = excluded.created_at,
			deleted_at = NULL`)
	if err != nil {
		return fmt.Errorf("failed to prepare vault insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, chunk := range chunks {
		blob, err := compress(v.cfg, chunk.FullText)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ChunkID, chunk.ArticleURL, chunk.ChunkIndex,
			blob, len(chunk.FullText), len(blob), schemaVersion, now); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vault transaction: %w", err)
	}
	return nil
}

// GetChunk returns the decompressed text of one chunk. Soft-deleted
// chunks are not found.
func (v *Vault) GetChunk(ctx context.Context, chunkID string) (string, error) {
	var blob []byte
	err := v.db.QueryRowContext(ctx,
		`SELECT compressed FROM article_chunks WHERE chunk_id = ? AND is_deleted = 0`,
		chunkID).Scan(&blob)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("chunk %s not found", chunkID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read chunk %s: %w", chunkID, err)
	}
	return decompress(blob)
}

// GetArticleChunks returns all live chunk texts of an article in index
// order.
func (v *Vault) GetArticleChunks(ctx context.Context, articleURL string) ([]string, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT compressed FROM article_chunks
		 WHERE article_url = ? AND is_deleted = 0
		 ORDER BY chunk_index`, articleURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks for %s: %w", articleURL, err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		text, err := decompress(blob)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// ChunksForSite returns every live chunk whose article URL belongs to the
// site, grouped by article in index order. Char offsets are rebuilt
// cumulatively from the stored texts; chunks partition their article, so
// the running sum reproduces the original ranges.
func (v *Vault) ChunksForSite(ctx context.Context, site string) ([]*models.Chunk, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT chunk_id, article_url, chunk_index, compressed FROM article_chunks
		 WHERE is_deleted = 0
		   AND (article_url LIKE '%://' || ? || '/%' OR article_url LIKE '%://www.' || ? || '/%')
		 ORDER BY article_url, chunk_index`, site, site)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks for site %s: %w", site, err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	var currentURL string
	offset := 0
	for rows.Next() {
		chunk := &models.Chunk{}
		var blob []byte
		if err := rows.Scan(&chunk.ChunkID, &chunk.ArticleURL, &chunk.ChunkIndex, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		text, err := decompress(blob)
		if err != nil {
			return nil, err
		}
		if chunk.ArticleURL != currentURL {
			currentURL = chunk.ArticleURL
			offset = 0
		}
		chunk.FullText = text
		chunk.CharStart = offset
		offset += len([]rune(text))
		chunk.CharEnd = offset
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteArticle soft-deletes every chunk of an article. Returns the
// number of chunks marked.
func (v *Vault) DeleteArticle(ctx context.Context, articleURL string) (int64, error) {
	res, err := v.db.ExecContext(ctx,
		`UPDATE article_chunks SET is_deleted = 1, deleted_at = ?
		 WHERE article_url = ? AND is_deleted = 0`,
		time.Now().UTC().Format(time.RFC3339), articleURL)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", articleURL, err)
	}
	return res.RowsAffected()
}

// Stats reports live/deleted counts and the overall compression ratio.
func (v *Vault) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := v.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE is_deleted = 0),
			COUNT(DISTINCT article_url) FILTER (WHERE is_deleted = 0),
			COUNT(*) FILTER (WHERE is_deleted = 1),
			COALESCE(SUM(original_length) FILTER (WHERE is_deleted = 0), 0),
			COALESCE(SUM(compressed_length) FILTER (WHERE is_deleted = 0), 0)
		FROM article_chunks`).Scan(
		&s.ChunkCount, &s.ArticleCount, &s.DeletedCount,
		&s.OriginalBytes, &s.CompressedBytes)
	if err != nil {
		return s, fmt.Errorf("failed to read vault stats: %w", err)
	}
	if s.OriginalBytes > 0 {
		s.CompressionRatio = float64(s.CompressedBytes) / float64(s.OriginalBytes)
	}
	return s, nil
}

// Close closes the database connection.
func (v *Vault) Close() error {
	if v.db != nil {
		return v.db.Close()
	}
	return nil
}
