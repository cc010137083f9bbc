package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// UploadRecord is one upload attempt kept for history.
type UploadRecord struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	DishCount   int       `json:"dish_count"`
	ArchiveKey  *string   `json:"archive_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUploadRecord builds the history row for a finished upload attempt.
func NewUploadRecord(filename, contentType string, size int64, result *AnalysisResult, archiveKey string) *UploadRecord {
	rec := &UploadRecord{
		ID:          uuid.New(),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if result != nil {
		rec.Success = result.Success
		rec.Message = result.Message
		rec.DishCount = len(result.Dishes)
	}
	if archiveKey != "" {
		rec.ArchiveKey = &archiveKey
	}
	return rec
}

// Querier is the part of *pgxpool.Pool the upload history needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type UploadService struct {
	pool Querier
}

func NewUploadService(pool Querier) *UploadService {
	return &UploadService{pool: pool}
}

// Record inserts rec and fills in its CreatedAt.
func (s *UploadService) Record(ctx context.Context, rec *UploadRecord) error {
	query := `
		INSERT INTO menu_uploads (id, filename, content_type, size_bytes, success, message, dish_count, archive_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	err := s.pool.QueryRow(ctx, query,
		rec.ID,
		rec.Filename,
		rec.ContentType,
		rec.SizeBytes,
		rec.Success,
		rec.Message,
		rec.DishCount,
		rec.ArchiveKey,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record upload: %w", mapPgError(err))
	}

	return nil
}

// ByID fetches a single upload record.
func (s *UploadService) ByID(ctx context.Context, id uuid.UUID) (*UploadRecord, error) {
	query := `
		SELECT id, filename, content_type, size_bytes, success, message, dish_count, archive_key, created_at
		FROM menu_uploads
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	rec := &UploadRecord{}
	err := scanUpload(s.pool.QueryRow(ctx, query, id), rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", mapPgError(err))
	}

	return rec, nil
}

// Recent returns the newest upload records first.
func (s *UploadService) Recent(ctx context.Context, limit int) ([]*UploadRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, filename, content_type, size_bytes, success, message, dish_count, archive_key, created_at
		FROM menu_uploads
		ORDER BY created_at DESC
		LIMIT $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", mapPgError(err))
	}
	defer rows.Close()

	var records []*UploadRecord
	for rows.Next() {
		rec := &UploadRecord{}
		if err := scanUpload(rows, rec); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploads: %w", mapPgError(err))
	}

	return records, nil
}

func scanUpload(row pgx.Row, rec *UploadRecord) error {
	return row.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.ContentType,
		&rec.SizeBytes,
		&rec.Success,
		&rec.Message,
		&rec.DishCount,
		&rec.ArchiveKey,
		&rec.CreatedAt,
	)
}

// mapPgError turns a missing table into ErrHistoryNotMigrated so callers
// can tell schema problems apart from connectivity ones.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%w: %s", ErrHistoryNotMigrated, pgErr.Message)
	}
	return err
}
