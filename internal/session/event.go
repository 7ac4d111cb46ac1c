package session

type Event interface {
	// The Download this event relates to.
	Download() *Download
}

type downloadEvent struct {
	download *Download
}

func (e downloadEvent) Download() *Download {
	return e.download
}

type DownloadAdded struct {
	downloadEvent
}
type DownloadUpdated struct {
	downloadEvent
	OldState DownloadState
	NewState DownloadState
}
type DownloadFileComplete struct {
	downloadEvent
	File FileRecord
}
type DownloadStopped struct {
	downloadEvent
	Status DownloadStatus
	Err    error
}
