package bulk_downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func noWait() DownloadOption {
	return WithBackOff(&backoff.ZeroBackOff{})
}

func TestResourceDownload(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello world"))
	}))
	defer server.Close()

	resource := NewResource(&Post{ID: "abc"}, server.URL+"/file.txt")
	assert.Nil(resource.Content())
	assert.Equal("", resource.HexDigest())

	var lastDownloaded, lastExpected int
	err := resource.Download(context.Background(), time.Second, noWait(), WithProgress(func(downloaded int, expected int) {
		lastDownloaded, lastExpected = downloaded, expected
	}))
	require.NoError(t, err)
	assert.Equal([]byte("hello world"), resource.Content())
	assert.Equal("5eb63bbbe01eeed093cb22bb8f5acdc3", resource.HexDigest())
	assert.Len(resource.Hash(), 16)
	assert.Equal(11, lastDownloaded)
	assert.Equal(11, lastExpected)
	assert.Equal(".txt", resource.Extension())
}

func TestResourceDownloadRetries(t *testing.T) {
	assert := assert_.New(t)
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	resource := NewResource(&Post{}, server.URL)
	require.NoError(t, resource.Download(context.Background(), time.Second, noWait()))
	assert.Equal(int32(3), atomic.LoadInt32(&attempts))
	assert.Equal([]byte("ok"), resource.Content())
}

func TestResourceDownloadRetriesExhausted(t *testing.T) {
	assert := assert_.New(t)
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	resource := NewResource(&Post{}, server.URL)
	err := resource.Download(context.Background(), time.Second, noWait(), WithMaxRetries(2))
	assert.ErrorIs(err, ErrResourceNotFound)
	assert.Equal(int32(3), atomic.LoadInt32(&attempts))
	assert.Nil(resource.Content())
}

func TestResourceDownloadNotFound(t *testing.T) {
	assert := assert_.New(t)
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resource := NewResource(&Post{}, server.URL)
	err := resource.Download(context.Background(), time.Second, noWait())
	assert.ErrorIs(err, ErrResourceNotFound)
	var notFound *ResourceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(http.StatusNotFound, notFound.StatusCode)
	assert.Equal(int32(1), atomic.LoadInt32(&attempts))
}

func TestResourceDownloadCancelled(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resource := NewResource(&Post{}, server.URL)
	err := resource.Download(ctx, time.Second, noWait())
	assert.ErrorIs(err, context.Canceled)
}

func TestResourceExtensionSniffed(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	}))
	defer server.Close()

	resource := NewResource(&Post{}, server.URL+"/noext")
	assert.Equal("", resource.Extension())
	require.NoError(t, resource.Download(context.Background(), time.Second, noWait()))
	assert.Equal(".png", resource.Extension())
}
