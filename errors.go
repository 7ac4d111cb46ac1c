package bulk_downloader

import (
	"errors"
	"fmt"
)

var (
	ErrResourceNotFound     = errors.New("resource not found")
	ErrNotADownloadableLink = errors.New("not a downloadable link")
	ErrSiteDownloader       = errors.New("site downloader error")
)

// ResourceNotFoundError is returned when an upstream server answers with anything other than the expected status.
type ResourceNotFoundError struct {
	URL        string
	StatusCode int
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("server responded with %d to %s", e.StatusCode, e.URL)
}

func (e *ResourceNotFoundError) Is(target error) bool {
	return target == ErrResourceNotFound
}

// NotADownloadableLink builds an error wrapping ErrNotADownloadableLink.
func NotADownloadableLink(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotADownloadableLink, fmt.Sprintf(format, args...))
}

// SiteDownloaderError builds an error wrapping ErrSiteDownloader.
func SiteDownloaderError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSiteDownloader, fmt.Sprintf(format, args...))
}
