package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/turdm/turc/dbopen"
)

// Record is one download history row. Status "" means in-progress (the
// column is NULL); otherwise it is "completed", "paused" or "failed".
type Record struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	Status        string `json:"status,omitempty"`
	Size          *int64 `json:"size,omitempty"`
	BytesReceived int64  `json:"bytes_received"`
	URL           string `json:"url"`
	ETag          string `json:"etag,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
	Destination   string `json:"destination"`
	AcceptRanges  bool   `json:"accept_ranges"`
	UpdatedAt     int64  `json:"updated_at"`
}

// Completed reports whether the record is a completed download.
func (r *Record) Completed() bool {
	return r.Status == "completed"
}

// InProgress reports whether the record has no terminal status yet.
func (r *Record) InProgress() bool {
	return r.Status == ""
}

// CreatedAt derives the creation time (unix seconds) from the UUIDv7
// id, which carries its own timestamp. Falls back to UpdatedAt for ids
// that are not v7 UUIDs.
func (r *Record) CreatedAt() int64 {
	u, err := uuid.Parse(r.ID)
	if err != nil || u.Version() != 7 {
		return r.UpdatedAt
	}
	sec, _ := u.Time().UnixTime()
	return sec
}

// Insert writes a new history record. A row with the same id is reset
// in place: the engine reuses the id when a download is queued again.
// Writes retry on SQLITE_BUSY; a watch client may hold the file.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().Unix()
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO downloads
			(id, filename, status, size, bytes_received, url, etag,
			 content_type, last_modified, destination, accept_ranges, updated_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			status = excluded.status,
			size = excluded.size,
			bytes_received = excluded.bytes_received,
			url = excluded.url,
			etag = excluded.etag,
			content_type = excluded.content_type,
			last_modified = excluded.last_modified,
			destination = excluded.destination,
			accept_ranges = excluded.accept_ranges,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Filename, rec.Status, rec.Size, rec.BytesReceived, rec.URL,
		rec.ETag, rec.ContentType, rec.LastModified, rec.Destination,
		boolToInt(rec.AcceptRanges), rec.UpdatedAt,
	)
	return err
}

// UpdateHeaders stores the probe/validator headers for a download.
func (s *Store) UpdateHeaders(ctx context.Context, id string, size *int64, contentType, etag, lastModified string, acceptRanges bool) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		UPDATE downloads SET
			size = ?, content_type = NULLIF(?, ''), etag = NULLIF(?, ''),
			last_modified = NULLIF(?, ''), accept_ranges = ?, updated_at = unixepoch()
		WHERE id = ?`,
		size, contentType, etag, lastModified, boolToInt(acceptRanges), id,
	)
	return err
}

// UpdateProgress records the byte count received so far.
func (s *Store) UpdateProgress(ctx context.Context, id string, bytesReceived int64) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		UPDATE downloads SET bytes_received = ?, updated_at = unixepoch()
		WHERE id = ?`, bytesReceived, id)
	return err
}

// UpdateStatus sets the status column. An empty status puts the row
// back to in-progress (NULL).
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		UPDATE downloads SET status = NULLIF(?, ''), updated_at = unixepoch()
		WHERE id = ?`, status, id)
	return err
}

// MarkCompleted marks a download as completed.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.UpdateStatus(ctx, id, "completed")
}

// Get retrieves a single record by id. Returns nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, filename, COALESCE(status, ''), size, bytes_received, url,
		       COALESCE(etag, ''), COALESCE(content_type, ''), COALESCE(last_modified, ''),
		       destination, accept_ranges, updated_at
		FROM downloads WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records ordered by most recently updated.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT id, filename, COALESCE(status, ''), size, bytes_received, url,
		       COALESCE(etag, ''), COALESCE(content_type, ''), COALESCE(last_modified, ''),
		       destination, accept_ranges, updated_at
		FROM downloads ORDER BY updated_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListByStatus returns records with the given status; an empty status
// selects in-progress rows (status IS NULL).
func (s *Store) ListByStatus(ctx context.Context, status string) ([]*Record, error) {
	query := `
		SELECT id, filename, COALESCE(status, ''), size, bytes_received, url,
		       COALESCE(etag, ''), COALESCE(content_type, ''), COALESCE(last_modified, ''),
		       destination, accept_ranges, updated_at
		FROM downloads `
	var args []any
	if status == "" {
		query += `WHERE status IS NULL`
	} else {
		query += `WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListIncomplete returns every row without a terminal status.
func (s *Store) ListIncomplete(ctx context.Context) ([]*Record, error) {
	return s.ListByStatus(ctx, "")
}

// ResumeInfo returns the stored records for the given ids, skipping
// ids with no history.
func (s *Store) ResumeInfo(ctx context.Context, ids []string) ([]*Record, error) {
	var out []*Record
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes a single record.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM downloads WHERE id = ?`, id)
	return err
}

// Purge removes every record.
func (s *Store) Purge(ctx context.Context) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM downloads`)
	return err
}

// Count returns the number of history records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	rec := &Record{}
	var size sql.NullInt64
	var accept int
	if err := row.Scan(
		&rec.ID, &rec.Filename, &rec.Status, &size, &rec.BytesReceived, &rec.URL,
		&rec.ETag, &rec.ContentType, &rec.LastModified,
		&rec.Destination, &accept, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if size.Valid {
		rec.Size = &size.Int64
	}
	rec.AcceptRanges = accept != 0
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
