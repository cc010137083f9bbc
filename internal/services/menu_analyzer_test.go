package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSendsRawBytesAndHeaders(t *testing.T) {
	var (
		gotMethod, gotPath, gotType, gotName string
		gotBody                              []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotName = r.Header.Get(FilenameHeader)
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","dishes":[{"name":"Soup"}]}`))
	}))
	defer srv.Close()

	analyzer := NewMenuAnalyzer(srv.URL+"/", time.Second)
	result, err := analyzer.Upload(context.Background(), MenuUpload{
		Filename:    "lunch menu.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/menu/upload", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "lunch menu.png", gotName)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, gotBody)

	assert.True(t, result.Success)
	require.Len(t, result.Dishes, 1)
	assert.Equal(t, "Soup", result.Dishes[0].Name)
}

func TestUploadDefaultsContentType(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"success":false,"message":"Could not extract dish information from the menu."}`))
	}))
	defer srv.Close()

	result, err := NewMenuAnalyzer(srv.URL, time.Second).Upload(context.Background(), MenuUpload{
		Filename: "menu",
		Data:     []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, gotType)
	assert.False(t, result.Success)
	assert.False(t, result.HasDishes())
}

func TestUploadNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Error processing menu: boom"}`))
	}))
	defer srv.Close()

	_, err := NewMenuAnalyzer(srv.URL, time.Second).Upload(context.Background(), MenuUpload{Filename: "m.jpg", Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "status 500")
}

func TestUploadMalformedJSONIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := NewMenuAnalyzer(srv.URL, time.Second).Upload(context.Background(), MenuUpload{Filename: "m.jpg", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestUploadUnreachableIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewMenuAnalyzer(url, time.Second).Upload(context.Background(), MenuUpload{Filename: "m.jpg", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call menu analysis backend")
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/menu/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("SeeMenu API is running"))
	}))
	defer srv.Close()

	assert.NoError(t, NewMenuAnalyzer(srv.URL, time.Second).Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	err := NewMenuAnalyzer(down.URL, time.Second).Health(context.Background())
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
}
