package bulk_downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Download interface {
	// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
	AddDownloadedBytes(n int)

	// AddExpectedBytes increases how many bytes are expected to be downloaded.
	AddExpectedBytes(n int)

	// Cancel the Download, stopping any in-progress I/O activity.
	Cancel()

	// Close cleans up any resources associated with the Download.
	Close() error

	// Context is the cancellable context of this Download.
	Context() context.Context

	// CreateFile opens a file below the target prefix. Data goes to a temporary file, which replaces the target
	// file on Close.
	CreateFile(filename string) (io.WriteCloser, error)

	// Progress returns the downloaded and expected bytes of the download.
	Progress() (int, int)

	// SaveResource downloads the Resource (reporting progress) and writes its content to the file named by filename,
	// returning the full path that was written. The name is chosen after the content is available, so it can depend
	// on the sniffed extension or the hash. An error from filename prevents writing and is returned as-is.
	SaveResource(resource *Resource, filename FilenameFunc, timeout time.Duration, opts ...DownloadOption) (string, error)

	// SaveStream will download the stream to the named file, calling AddDownloadedBytes as necessary.
	SaveStream(filename string, stream io.Reader) error

	// TargetPath gives the full path a filename would be saved to.
	TargetPath(filename string) string

	// Write will ignore the data but will send the byte count to AddDownloadedBytes. Allows progress tracking using
	// io.MultiWriter (but ensure the Download is the last writer to avoid counting failed writes).
	Write(p []byte) (n int, err error)
}

// A FilenameFunc chooses the target file name for a downloaded Resource.
type FilenameFunc func(resource *Resource) (string, error)

// StaticFilename always uses the same name.
func StaticFilename(filename string) FilenameFunc {
	return func(*Resource) (string, error) {
		return filename, nil
	}
}

type download struct {
	ctx              context.Context
	cancel           context.CancelFunc
	progressCallback func(int, int)
	targetPrefix     string
	expectedBytes    int
	downloadedBytes  int
}

func (d *download) AddDownloadedBytes(n int) {
	d.downloadedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) AddExpectedBytes(n int) {
	d.expectedBytes += n
	if d.progressCallback != nil {
		d.progressCallback(d.Progress())
	}
}

func (d *download) Cancel() {
	d.cancel()
}

func (d *download) Close() error {
	d.cancel()
	return nil
}

func (d *download) Context() context.Context {
	return d.ctx
}

func (d *download) CreateFile(filename string) (io.WriteCloser, error) {
	return d.createFile(filename)
}

func (d *download) createFile(filename string) (*atomicFile, error) {
	targetPath := d.TargetPath(filename)
	targetDir := filepath.Dir(targetPath)
	if err := os.MkdirAll(targetDir, 0775); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(targetDir, "."+filepath.Base(targetPath)+".*.part")
	if err != nil {
		return nil, err
	}
	return &atomicFile{File: f, target: targetPath}, nil
}

func (d *download) Progress() (int, int) {
	return d.downloadedBytes, d.expectedBytes
}

func (d *download) SaveResource(resource *Resource, filename FilenameFunc, timeout time.Duration, opts ...DownloadOption) (string, error) {
	// Resource progress is per attempt, so track what's already been reported to turn it into increments.
	reportedDownloaded, reportedExpected := 0, 0
	progress := WithProgress(func(downloaded int, expected int) {
		if expected > 0 && reportedExpected == 0 {
			d.AddExpectedBytes(expected)
			reportedExpected = expected
		}
		d.AddDownloadedBytes(downloaded - reportedDownloaded)
		reportedDownloaded = downloaded
	})
	if err := resource.Download(d.Context(), timeout, append(opts, progress)...); err != nil {
		return "", err
	}

	name, err := filename(resource)
	if err != nil {
		return "", err
	}
	f, err := d.createFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to open target file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(resource.Content())); err != nil {
		f.Abort()
		return "", fmt.Errorf("failed to write target file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write target file: %w", err)
	}
	return f.target, nil
}

func (d *download) SaveStream(filename string, stream io.Reader) error {
	f, err := d.createFile(filename)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	_, err = io.Copy(io.MultiWriter(f, d), &readerContext{ctx: d.Context(), r: stream})
	if err != nil {
		f.Abort()
		return fmt.Errorf("failed to save stream: %w", err)
	}
	return f.Close()
}

func (d *download) TargetPath(filename string) string {
	targetPathBuilder := strings.Builder{}
	targetPathBuilder.WriteString(d.targetPrefix)
	targetPathBuilder.WriteString(filename)
	return filepath.FromSlash(targetPathBuilder.String())
}

func (d *download) Write(p []byte) (n int, err error) {
	n = len(p)
	d.AddDownloadedBytes(n)
	return n, nil
}

// atomicFile is renamed over its target on Close, or removed by Abort.
type atomicFile struct {
	*os.File
	target string
}

func (f *atomicFile) Close() error {
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), f.target)
}

func (f *atomicFile) Abort() {
	_ = f.File.Close()
	_ = os.Remove(f.Name())
}

type DownloadBuilder interface {
	Build() (Download, error)
	WithContext(ctx context.Context) DownloadBuilder
	WithProgressCallback(f func(downloaded int, expected int)) DownloadBuilder
	WithTargetPrefix(prefix string) DownloadBuilder
}

type downloadBuilder struct {
	ctx              context.Context
	progressCallback func(int, int)
	targetPrefix     string
}

func NewDownloadBuilder() DownloadBuilder {
	return &downloadBuilder{
		ctx:          context.Background(),
		targetPrefix: "./",
	}
}

func (b *downloadBuilder) Build() (Download, error) {
	d := download{}
	d.ctx, d.cancel = context.WithCancel(b.ctx)
	d.progressCallback = b.progressCallback
	d.targetPrefix = b.targetPrefix
	return &d, nil
}

func (b *downloadBuilder) WithContext(ctx context.Context) DownloadBuilder {
	b.ctx = ctx
	return b
}

func (b *downloadBuilder) WithProgressCallback(f func(int, int)) DownloadBuilder {
	b.progressCallback = f
	return b
}

// WithTargetPrefix sets the prefix for all saved files; for a directory, include the trailing separator.
func (b *downloadBuilder) WithTargetPrefix(prefix string) DownloadBuilder {
	b.targetPrefix = prefix
	return b
}
