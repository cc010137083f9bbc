package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rahul4469/seemenu/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	uploadPath = "/api/menu/upload"
	healthPath = "/api/menu/health"

	// FilenameHeader carries the original filename next to the raw body.
	FilenameHeader = "X-Filename"

	// DefaultContentType is sent when the file declares no media type.
	DefaultContentType = "application/octet-stream"
)

// ErrUnexpectedStatus is returned for any non-2xx backend response.
var ErrUnexpectedStatus = errors.New("unexpected status from menu analysis backend")

// MenuAnalyzer talks to the remote menu analysis backend.
type MenuAnalyzer struct {
	BaseURL string
	Client  *http.Client

	tracer trace.Tracer
}

// NewMenuAnalyzer creates a client for the backend at baseURL.
// A zero timeout leaves requests bounded only by their context.
func NewMenuAnalyzer(baseURL string, timeout time.Duration) *MenuAnalyzer {
	return &MenuAnalyzer{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer("github.com/rahul4469/seemenu/internal/services"),
	}
}

// MenuUpload is one file to send for analysis.
type MenuUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Upload posts the raw file bytes and decodes the analysis result.
func (ma *MenuAnalyzer) Upload(ctx context.Context, upload MenuUpload) (*models.AnalysisResult, error) {
	contentType := upload.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	ctx, span := ma.tracer.Start(ctx, "menu.upload", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("menu.filename", upload.Filename),
		attribute.String("menu.content_type", contentType),
		attribute.Int("menu.size_bytes", len(upload.Data)),
	)

	result, err := ma.upload(ctx, upload.Filename, contentType, upload.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("menu.success", result.Success),
		attribute.Int("menu.dish_count", len(result.Dishes)),
	)
	return result, nil
}

func (ma *MenuAnalyzer) upload(ctx context.Context, filename, contentType string, data []byte) (*models.AnalysisResult, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		ma.BaseURL+uploadPath,
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(FilenameHeader, filename)
	req.Header.Set("Accept", "application/json")

	resp, err := ma.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call menu analysis backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w (status %d): %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Health checks that the backend answers its health endpoint.
func (ma *MenuAnalyzer) Health(ctx context.Context) error {
	ctx, span := ma.tracer.Start(ctx, "menu.health", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ma.BaseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := ma.Client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to call menu analysis backend: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w (status %d)", ErrUnexpectedStatus, resp.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
