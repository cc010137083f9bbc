package models

import "errors"

// Upload history errors
var (
	ErrUploadNotFound     = errors.New("upload not found")
	ErrHistoryNotMigrated = errors.New("upload history table missing, run migrations")
)
