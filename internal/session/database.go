package session

// A Database persists download records between runs, keyed by post ID.
type Database interface {
	ListDownloads() ([]DownloadRecord, error)
	// GetDownload returns (nil, nil) if there is no record for the post.
	GetDownload(postID string) (*DownloadRecord, error)
	WriteDownload(*DownloadRecord) error
	DeleteDownload(*DownloadRecord) error
}

type NilDatabase struct{}

func (d NilDatabase) ListDownloads() ([]DownloadRecord, error) {
	return nil, nil
}

func (d NilDatabase) GetDownload(_ string) (*DownloadRecord, error) {
	return nil, nil
}

func (d NilDatabase) WriteDownload(_ *DownloadRecord) error {
	return nil
}

func (d NilDatabase) DeleteDownload(_ *DownloadRecord) error {
	return nil
}
