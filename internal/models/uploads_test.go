package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uploadColumns = []string{"id", "filename", "content_type", "size_bytes", "success", "message", "dish_count", "archive_key", "created_at"}

func newMockUploads(t *testing.T) (*UploadService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewUploadService(mock), mock
}

func TestUploadServiceRecord(t *testing.T) {
	uploads, mock := newMockUploads(t)
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	rec := NewUploadRecord("menu.jpg", "image/jpeg", 2048,
		&AnalysisResult{Success: true, Message: "ok", Dishes: []DishInfo{{Name: "Soup"}}},
		"menus/2026/10/16/abc.jpg",
	)

	mock.ExpectQuery(`INSERT INTO menu_uploads`).
		WithArgs(rec.ID, "menu.jpg", "image/jpeg", int64(2048), true, "ok", 1, rec.ArchiveKey).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, uploads.Record(context.Background(), rec))
	assert.Equal(t, created, rec.CreatedAt)
}

func TestUploadServiceRecordNotMigrated(t *testing.T) {
	uploads, mock := newMockUploads(t)

	mock.ExpectQuery(`INSERT INTO menu_uploads`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable, Message: `relation "menu_uploads" does not exist`})

	err := uploads.Record(context.Background(), NewUploadRecord("menu.jpg", "image/jpeg", 1, FailureResult(), ""))
	assert.ErrorIs(t, err, ErrHistoryNotMigrated)
}

func TestUploadServiceByID(t *testing.T) {
	uploads, mock := newMockUploads(t)
	id := uuid.New()
	created := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM menu_uploads\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(uploadColumns).
			AddRow(id, "menu.jpg", "image/jpeg", int64(2048), false, FailureMessage, 0, nil, created))

	rec, err := uploads.ByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "menu.jpg", rec.Filename)
	assert.False(t, rec.Success)
	assert.Equal(t, FailureMessage, rec.Message)
	assert.Nil(t, rec.ArchiveKey)
	assert.Equal(t, created, rec.CreatedAt)
}

func TestUploadServiceByIDNotFound(t *testing.T) {
	uploads, mock := newMockUploads(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM menu_uploads\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	rec, err := uploads.ByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrUploadNotFound)
	assert.Nil(t, rec)
}

func TestUploadServiceRecent(t *testing.T) {
	uploads, mock := newMockUploads(t)
	newer := time.Date(2026, 10, 16, 9, 5, 0, 0, time.UTC)
	older := newer.Add(-5 * time.Minute)
	key := "menus/2026/10/16/abc.jpg"

	mock.ExpectQuery(`SELECT (.+) FROM menu_uploads\s+ORDER BY created_at DESC\s+LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(uploadColumns).
			AddRow(uuid.New(), "b.jpg", "image/jpeg", int64(20), true, "ok", 3, &key, newer).
			AddRow(uuid.New(), "a.png", "image/png", int64(10), false, FailureMessage, 0, nil, older))

	records, err := uploads.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b.jpg", records[0].Filename)
	assert.Equal(t, 3, records[0].DishCount)
	require.NotNil(t, records[0].ArchiveKey)
	assert.Equal(t, key, *records[0].ArchiveKey)
	assert.Equal(t, "a.png", records[1].Filename)
	assert.Nil(t, records[1].ArchiveKey)
}

func TestUploadServiceRecentDefaultsLimit(t *testing.T) {
	uploads, mock := newMockUploads(t)

	mock.ExpectQuery(`LIMIT \$1`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows(uploadColumns))

	records, err := uploads.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUploadServiceRecentErrors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		uploads, mock := newMockUploads(t)
		mock.ExpectQuery(`FROM menu_uploads`).
			WithArgs(10).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})

		_, err := uploads.Recent(context.Background(), 10)
		assert.ErrorIs(t, err, ErrHistoryNotMigrated)
	})

	t.Run("iteration", func(t *testing.T) {
		uploads, mock := newMockUploads(t)
		broken := errors.New("connection reset")
		mock.ExpectQuery(`FROM menu_uploads`).
			WithArgs(10).
			WillReturnRows(pgxmock.NewRows(uploadColumns).
				AddRow(uuid.New(), "a.png", "image/png", int64(10), true, "ok", 1, nil, time.Now()).
				RowError(0, broken))

		_, err := uploads.Recent(context.Background(), 10)
		assert.ErrorIs(t, err, broken)
	})
}
