package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/media"
	"photoalbum/internal/mediatypes"
)

// Load returns the thumbnail stored for id. A row written for a different
// fingerprint is stale: it is deleted and reported as a miss.
func (s *ThumbnailStore) Load(ctx context.Context, id mediatypes.FileIdentity) (image.Image, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var fingerprint int64
	var data []byte
	s.mu.RLock()
	err = s.db.QueryRowContext(ctx,
		"SELECT fingerprint, data FROM thumbnails WHERE path = ?", id.Path,
	).Scan(&fingerprint, &data)
	s.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if uint64(fingerprint) != id.Fingerprint {
		logging.Debug("Stale thumbnail for %s, removing", id.Path)
		err = s.Delete(ctx, id.Path)
		return nil, false, err
	}

	img, decodeErr := media.DecodeThumbnail(data)
	if decodeErr != nil {
		err = fmt.Errorf("decode stored thumbnail for %s: %w", id.Path, decodeErr)
		return nil, false, err
	}
	return img, true, nil
}

// Save stores img for id, replacing any row for the same path.
func (s *ThumbnailStore) Save(ctx context.Context, id mediatypes.FileIdentity, img image.Image) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save", start, err) }()

	data, err := media.EncodeThumbnail(img)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	b := img.Bounds()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thumbnails (path, fingerprint, width, height, data, updated_at)
		VALUES (?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			width = excluded.width,
			height = excluded.height,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, id.Path, int64(id.Fingerprint), b.Dx(), b.Dy(), data)
	return err
}

// Delete removes the row for path.
func (s *ThumbnailStore) Delete(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "DELETE FROM thumbnails WHERE path = ?", path)
	return err
}

// Reset removes every thumbnail and records the new thumbnail size.
func (s *ThumbnailStore) Reset(ctx context.Context, thumbnailSize int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM thumbnails"); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaThumbnailSize, strconv.Itoa(thumbnailSize)); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	err = tx.Commit()
	return err
}

// Count returns the number of stored thumbnails.
func (s *ThumbnailStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM thumbnails").Scan(&n)
	return n, err
}
