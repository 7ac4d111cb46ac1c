package bulk_downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDownload(t *testing.T, dir string, progress func(int, int)) Download {
	d, err := NewDownloadBuilder().
		WithContext(context.Background()).
		WithTargetPrefix(dir + string(filepath.Separator)).
		WithProgressCallback(progress).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDownloadSaveResource(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("some content"))
	}))
	defer server.Close()

	dir := t.TempDir()
	var downloaded, expected int
	d := newTestDownload(t, dir, func(dl int, ex int) {
		downloaded, expected = dl, ex
	})

	resource := NewResource(&Post{ID: "abc"}, server.URL+"/a.jpg")
	target, err := d.SaveResource(resource, StaticFilename("pics/abc.jpg"), time.Second, noWait())
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "pics", "abc.jpg"), target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal("some content", string(data))
	assert.Equal(12, downloaded)
	assert.Equal(12, expected)

	// No temporary files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "pics"))
	require.NoError(t, err)
	assert.Len(entries, 1)
}

func TestDownloadSaveResourceFailed(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := newTestDownload(t, dir, nil)

	_, err := d.SaveResource(NewResource(&Post{}, server.URL), StaticFilename("abc.jpg"), time.Second, noWait())
	assert.ErrorIs(err, ErrResourceNotFound)
	_, err = os.Stat(filepath.Join(dir, "abc.jpg"))
	assert.True(os.IsNotExist(err))
}

func TestDownloadSaveResourceNamedByContent(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := newTestDownload(t, dir, nil)

	target, err := d.SaveResource(NewResource(&Post{ID: "abc"}, server.URL+"/img"), func(r *Resource) (string, error) {
		return r.Post.ID + r.Extension(), nil
	}, time.Second, noWait())
	require.NoError(t, err)
	assert.Equal(filepath.Join(dir, "abc.png"), target)

	skip := errors.New("skip")
	_, err = d.SaveResource(NewResource(&Post{ID: "def"}, server.URL+"/img"), func(r *Resource) (string, error) {
		return "", skip
	}, time.Second, noWait())
	assert.ErrorIs(err, skip)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(entries, 1)
}

func TestDownloadSaveStream(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	d := newTestDownload(t, dir, nil)

	require.NoError(t, d.SaveStream("out.txt", strings.NewReader("streamed")))
	data, err := os.ReadFile(d.TargetPath("out.txt"))
	require.NoError(t, err)
	assert.Equal("streamed", string(data))
	downloaded, _ := d.Progress()
	assert.Equal(8, downloaded)
}

func TestDownloadSaveStreamCancelled(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	d := newTestDownload(t, dir, nil)
	d.Cancel()

	err := d.SaveStream("out.txt", strings.NewReader("streamed"))
	assert.ErrorIs(err, context.Canceled)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(entries)
}
