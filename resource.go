package bulk_downloader

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"

	"github.com/alanbriolat/bulk-downloader/util"
)

const DefaultMaxRetries = 3

// A Resource is a single directly fetchable piece of media found by a Resolver for a Post.
type Resource struct {
	Post *Post
	URL  string

	content []byte
	hash    []byte
}

func NewResource(post *Post, url string) *Resource {
	return &Resource{Post: post, URL: url}
}

func (r *Resource) String() string {
	return r.URL
}

// Content returns the downloaded bytes, or nil before a successful Download.
func (r *Resource) Content() []byte {
	return r.content
}

// Hash returns the MD5 digest of the content, or nil before a successful Download.
func (r *Resource) Hash() []byte {
	return r.hash
}

// HexDigest returns the MD5 digest as a hex string, or "" before a successful Download.
func (r *Resource) HexDigest() string {
	if r.hash == nil {
		return ""
	}
	return hex.EncodeToString(r.hash)
}

// Extension returns the file extension (including the leading ".") taken from the URL path, or sniffed from the
// content if the URL doesn't have one and the resource has been downloaded.
func (r *Resource) Extension() string {
	if ext := util.ExtensionFromURLString(r.URL); ext != "" {
		return ext
	}
	if r.content != nil {
		return mimetype.Detect(r.content).Extension()
	}
	return ""
}

type downloadOptions struct {
	client     *http.Client
	progress   func(downloaded int, expected int)
	maxRetries uint64
	backOff    backoff.BackOff
}

type DownloadOption func(*downloadOptions)

func WithHTTPClient(client *http.Client) DownloadOption {
	return func(o *downloadOptions) {
		o.client = client
	}
}

// WithProgress sets a callback that receives the bytes downloaded so far and the expected total (-1 if unknown).
func WithProgress(f func(downloaded int, expected int)) DownloadOption {
	return func(o *downloadOptions) {
		o.progress = f
	}
}

func WithMaxRetries(n uint64) DownloadOption {
	return func(o *downloadOptions) {
		o.maxRetries = n
	}
}

// WithBackOff overrides the delay policy between attempts; the default is exponential.
func WithBackOff(b backoff.BackOff) DownloadOption {
	return func(o *downloadOptions) {
		o.backOff = b
	}
}

// Download fetches the resource content and records its hash. Each attempt is limited by timeout (if positive).
// Transport errors, 429 and 5xx responses are retried; any other non-2xx response fails with ResourceNotFoundError.
func (r *Resource) Download(ctx context.Context, timeout time.Duration, opts ...DownloadOption) error {
	o := downloadOptions{
		client:     http.DefaultClient,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.backOff == nil {
		o.backOff = backoff.NewExponentialBackOff()
	}

	var content []byte
	operation := func() (err error) {
		content, err = r.fetch(ctx, timeout, &o)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(o.backOff, o.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("failed to download %s: %w", r.URL, err)
	}

	sum := md5.Sum(content)
	r.content = content
	r.hash = sum[:]
	return nil
}

func (r *Resource) fetch(ctx context.Context, timeout time.Duration, o *downloadOptions) ([]byte, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &ResourceNotFoundError{URL: r.URL, StatusCode: resp.StatusCode}
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, backoff.Permanent(&ResourceNotFoundError{URL: r.URL, StatusCode: resp.StatusCode})
	}

	progress := &progressWriter{expected: int(resp.ContentLength), callback: o.progress}
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, progress), &readerContext{ctx: attemptCtx, r: resp.Body}); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return buf.Bytes(), nil
}

// progressWriter discards data but reports running byte counts, for use with io.MultiWriter (as the last writer, so
// failed writes aren't counted).
type progressWriter struct {
	downloaded int
	expected   int
	callback   func(int, int)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.downloaded += len(p)
	if w.callback != nil {
		w.callback(w.downloaded, w.expected)
	}
	return len(p), nil
}
