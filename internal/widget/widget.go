// Package widget holds the menu upload widget: the selected photo, its
// preview, the in-flight flag and the last analysis result of each browser
// session, plus the upload action that fills them in.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rahul4469/seemenu/internal/models"
	"github.com/rahul4469/seemenu/internal/services"
)

var (
	ErrNoFileSelected   = errors.New("no menu photo selected")
	ErrUploadInProgress = errors.New("an upload is already in progress")
	ErrSelectionChanged = errors.New("a different menu photo was selected")
)

// errSuperseded stops a finished upload from writing over a newer selection.
var errSuperseded = errors.New("upload superseded by a newer selection")

// DefaultLoadingTimeout is how long a loading flag is honoured before a new
// upload may take over. It outlives the default backend timeout.
const DefaultLoadingTimeout = 2 * time.Minute

// Upload outcomes reported to the Observer.
const (
	OutcomeSuccess  = "success"  // backend answered success=true
	OutcomeRejected = "rejected" // backend answered success=false
	OutcomeFailed   = "failed"   // transport or decode failure, fallback shown
)

// Analyzer sends a photo to the analysis backend.
type Analyzer interface {
	Upload(ctx context.Context, upload services.MenuUpload) (*models.AnalysisResult, error)
}

// Archiver keeps a copy of each uploaded photo.
type Archiver interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// HistoryRecorder persists one row per upload attempt.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *models.UploadRecord) error
}

// Observer is told about every finished upload.
type Observer interface {
	ObserveUpload(outcome string, elapsed time.Duration)
}

// Widget is safe for concurrent use; all state lives in the Store.
type Widget struct {
	store          Store
	analyzer       Analyzer
	archive        Archiver
	history        HistoryRecorder
	observer       Observer
	logger         *slog.Logger
	loadingTimeout time.Duration
	now            func() time.Time
}

// Option configures optional collaborators.
type Option func(*Widget)

func WithArchive(a Archiver) Option {
	return func(w *Widget) { w.archive = a }
}

func WithHistory(h HistoryRecorder) Option {
	return func(w *Widget) { w.history = h }
}

func WithObserver(o Observer) Option {
	return func(w *Widget) { w.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// WithLoadingTimeout sets how old a loading flag must be before it is
// treated as abandoned. Non-positive values keep the default.
func WithLoadingTimeout(d time.Duration) Option {
	return func(w *Widget) {
		if d > 0 {
			w.loadingTimeout = d
		}
	}
}

func New(store Store, analyzer Analyzer, opts ...Option) *Widget {
	w := &Widget{
		store:          store,
		analyzer:       analyzer,
		logger:         slog.Default(),
		loadingTimeout: DefaultLoadingTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// View returns the render snapshot for a session.
func (w *Widget) View(ctx context.Context, sessionID string) (View, error) {
	s, err := w.store.Load(ctx, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Select replaces the session's file and clears the previous result. A new
// selection also releases any loading flag: an upload still running for the
// old file finishes without touching the new state.
func (w *Widget) Select(ctx context.Context, sessionID, filename, contentType string, data []byte) error {
	file := NewSelectedFile(filename, contentType, data)

	err := w.store.Update(ctx, sessionID, func(s *State) error {
		s.File = file
		s.Selection++
		s.Loading = false
		s.LoadingSince = time.Time{}
		s.Result = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("select file: %w", err)
	}

	w.logger.Debug("menu photo selected",
		"session", shortID(sessionID),
		"filename", file.Name,
		"content_type", file.ContentType,
		"size_bytes", len(file.Data),
	)
	return nil
}

// Upload sends the selected file and stores the outcome as the session's
// result. Any analyzer failure becomes models.FailureResult. It returns
// ErrNoFileSelected, ErrUploadInProgress or ErrSelectionChanged, without
// side effects, when there is nothing to do.
func (w *Widget) Upload(ctx context.Context, sessionID string) (result *models.AnalysisResult, err error) {
	// Update callbacks never need the photo bytes, so they are read first.
	current, err := w.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.File == nil {
		return nil, ErrNoFileSelected
	}
	file, selection := current.File, current.Selection

	err = w.store.Update(ctx, sessionID, func(s *State) error {
		switch {
		case s.File == nil:
			return ErrNoFileSelected
		case s.Selection != selection:
			return ErrSelectionChanged
		case s.Loading && w.now().Sub(s.LoadingSince) < w.loadingTimeout:
			return ErrUploadInProgress
		}
		if s.Loading {
			w.logger.Warn("taking over abandoned upload", "session", shortID(sessionID), "loading_since", s.LoadingSince)
		}
		s.Loading = true
		s.LoadingSince = w.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// the request may be gone by now; the flag must still be cleared
	done := context.WithoutCancel(ctx)
	finished := false
	defer func() {
		if finished {
			return
		}
		// analyzer or archive panicked; the panic keeps unwinding after this
		if ferr := w.finish(done, sessionID, selection, models.FailureResult()); ferr != nil {
			w.logger.Error("failed to clear loading after panic", "session", shortID(sessionID), "error", ferr)
		}
	}()

	start := time.Now()
	archiveKey := w.archiveCopy(ctx, file)

	outcome := OutcomeSuccess
	result, err = w.analyzer.Upload(ctx, services.MenuUpload{
		Filename:    file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	})
	if err == nil && result == nil {
		err = errors.New("empty analysis result")
	}
	switch {
	case err != nil:
		w.logger.Error("menu upload failed",
			"session", shortID(sessionID),
			"filename", file.Name,
			"error", err,
		)
		result = models.FailureResult()
		outcome = OutcomeFailed
	case !result.Success:
		outcome = OutcomeRejected
	}
	elapsed := time.Since(start)

	finished = true
	if err := w.finish(done, sessionID, selection, result); err != nil {
		return nil, fmt.Errorf("store upload result: %w", err)
	}

	w.recordHistory(done, file, result, archiveKey)
	if w.observer != nil {
		w.observer.ObserveUpload(outcome, elapsed)
	}

	w.logger.Info("menu analyzed",
		"session", shortID(sessionID),
		"filename", file.Name,
		"outcome", outcome,
		"dishes", len(result.Dishes),
		"elapsed", elapsed,
	)
	return result, nil
}

// finish clears the loading flag and stores result, retrying once on a store
// error. It leaves the state alone when a newer selection has replaced the
// file the upload started from.
func (w *Widget) finish(ctx context.Context, sessionID string, selection int64, result *models.AnalysisResult) error {
	apply := func(s *State) error {
		if s.Selection != selection {
			return errSuperseded
		}
		s.Loading = false
		s.LoadingSince = time.Time{}
		s.Result = result
		return nil
	}

	err := w.store.Update(ctx, sessionID, apply)
	if err != nil && !errors.Is(err, errSuperseded) {
		w.logger.Warn("retrying upload result write", "session", shortID(sessionID), "error", err)
		err = w.store.Update(ctx, sessionID, apply)
	}
	if errors.Is(err, errSuperseded) {
		w.logger.Debug("upload result dropped, file was replaced", "session", shortID(sessionID))
		return nil
	}
	return err
}

func (w *Widget) archiveCopy(ctx context.Context, file *SelectedFile) string {
	if w.archive == nil {
		return ""
	}
	key, err := w.archive.Put(ctx, file.Name, file.ContentType, file.Data)
	if err != nil {
		w.logger.Warn("menu archive failed", "filename", file.Name, "error", err)
		return ""
	}
	return key
}

func (w *Widget) recordHistory(ctx context.Context, file *SelectedFile, result *models.AnalysisResult, archiveKey string) {
	if w.history == nil {
		return
	}
	rec := models.NewUploadRecord(file.Name, file.ContentType, int64(len(file.Data)), result, archiveKey)
	if err := w.history.Record(ctx, rec); err != nil {
		w.logger.Warn("upload history not recorded", "filename", file.Name, "error", err)
	}
}

// shortID keeps session ids out of logs in full.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
