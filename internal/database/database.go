package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photoalbum/internal/logging"
	"photoalbum/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

const metaThumbnailSize = "thumbnail_size"

// ThumbnailStore persists encoded thumbnails in SQLite, one row per file
// path. It records the thumbnail size the rows were built for and empties
// itself when that size changes.
type ThumbnailStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open opens or creates the store at dbPath for thumbnails of the given
// size. The parent directory must exist and be writable.
func Open(ctx context.Context, dbPath string, thumbnailSize int) (*ThumbnailStore, error) {
	logging.Info("Thumbnail store path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Thumbnail store permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open thumbnail store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close thumbnail store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to thumbnail store: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &ThumbnailStore{db: db, dbPath: dbPath}

	if err := s.initialize(ctx, thumbnailSize); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close thumbnail store after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize thumbnail store schema: %w", err)
	}

	logging.Info("Thumbnail store initialized at %s", dbPath)
	return s, nil
}

func (s *ThumbnailStore) initialize(ctx context.Context, thumbnailSize int) error {
	schema := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		path TEXT PRIMARY KEY,
		fingerprint INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	stored, err := s.ThumbnailSize(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stored thumbnail size: %w", err)
	}
	if stored == thumbnailSize {
		return nil
	}
	if stored != 0 {
		logging.Info("Thumbnail size changed from %d to %d, clearing thumbnail store", stored, thumbnailSize)
	}
	return s.Reset(ctx, thumbnailSize)
}

// Close closes the database connection.
func (s *ThumbnailStore) Close() error {
	return s.db.Close()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates connection and file size metrics.
func (s *ThumbnailStore) UpdateDBMetrics() {
	stats := s.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	for label, suffix := range map[string]string{"main": "", "wal": "-wal", "shm": "-shm"} {
		var size int64
		if info, err := os.Stat(s.dbPath + suffix); err == nil {
			size = info.Size()
		}
		metrics.DBSizeBytes.WithLabelValues(label).Set(float64(size))
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal"} {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", path, err)
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		}
	}
	return nil
}
