package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/generic"
)

type DownloadID string

func NewDownloadID() DownloadID {
	return DownloadID(generic.Unwrap(uuid.NewRandom()).String())
}

type DownloadStatus string

const (
	DownloadStatusUndefined   DownloadStatus = ""
	DownloadStatusNew         DownloadStatus = "new"
	DownloadStatusMatching    DownloadStatus = "matching"
	DownloadStatusMatched     DownloadStatus = "matched"
	DownloadStatusFetching    DownloadStatus = "fetching"
	DownloadStatusReady       DownloadStatus = "ready"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusComplete    DownloadStatus = "complete"
	DownloadStatusError       DownloadStatus = "error"
	DownloadStatusSkipped     DownloadStatus = "skipped"
)

var runningStatuses = generic.NewSet(
	DownloadStatusMatching,
	DownloadStatusFetching,
	DownloadStatusDownloading,
)

// IsRunning returns true if the status is one where some active process should be updating the download in some way.
func (s DownloadStatus) IsRunning() bool {
	return runningStatuses.Contains(s)
}

// NonRunning returns the closest preceding status where IsRunning is false, which may be the same status if IsRunning
// is already false.
func (s DownloadStatus) NonRunning() DownloadStatus {
	switch s {
	case DownloadStatusMatching:
		return DownloadStatusNew
	case DownloadStatusFetching:
		return DownloadStatusMatched
	case DownloadStatusDownloading:
		return DownloadStatusReady
	default:
		return s
	}
}

// IsFinal returns true if nothing more will happen to a download with this status.
func (s DownloadStatus) IsFinal() bool {
	return s == DownloadStatusComplete || s == DownloadStatusError || s == DownloadStatusSkipped
}

// A FileRecord describes one resource of a post and where (if anywhere) it was saved.
type FileRecord struct {
	URL  string `json:"url"`
	Path string `json:"path,omitempty"`
	Hash string `json:"hash,omitempty"`
	Size int    `json:"size,omitempty"`
	// Duplicate is set instead of Path when identical content was already saved.
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// A DownloadRecord is the persistent state of a post's download, keyed by PostID in a Database.
type DownloadRecord struct {
	ID        DownloadID     `json:"id"`
	PostID    string         `json:"post_id"`
	URL       string         `json:"url"`
	Subreddit string         `json:"subreddit,omitempty"`
	AddedAt   time.Time      `json:"added_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Status    DownloadStatus `json:"status"`
	Error     string         `json:"error,omitempty"`

	// Data from "match" stage
	Provider string `json:"provider,omitempty"`

	// Data from "fetch" stage
	Resources int `json:"resources,omitempty"`

	// Data from "download" stage
	Files []FileRecord `json:"files,omitempty"`
}

func (r DownloadRecord) clone() DownloadRecord {
	if r.Files != nil {
		r.Files = append([]FileRecord(nil), r.Files...)
	}
	return r
}

// Hashes returns the content hashes of all saved files.
func (r *DownloadRecord) Hashes() []string {
	var hashes []string
	for _, f := range r.Files {
		if f.Hash != "" && f.Path != "" {
			hashes = append(hashes, f.Hash)
		}
	}
	return hashes
}

type DownloadState struct {
	DownloadRecord

	// Bytes of the post's resources downloaded so far, not persisted.
	Downloaded int
	Expected   int
}

func (s DownloadState) clone() DownloadState {
	s.DownloadRecord = s.DownloadRecord.clone()
	return s
}

// A Download tracks one post through matching, resolving and saving its resources.
type Download struct {
	session *Session
	post    *bulk_downloader.Post

	mu                sync.Mutex
	state             DownloadState
	lastProgressEvent time.Time
	// Not written to the Database, so an existing record is left alone.
	transient bool
}

func newDownload(session *Session, post *bulk_downloader.Post) *Download {
	now := time.Now()
	d := &Download{
		session: session,
		post:    post,
	}
	d.state.ID = NewDownloadID()
	d.state.PostID = post.ID
	d.state.URL = post.URL
	d.state.Subreddit = post.Subreddit
	d.state.AddedAt = now
	d.state.UpdatedAt = now
	d.state.Status = DownloadStatusNew
	return d
}

func (d *Download) ID() DownloadID {
	// Never changes after creation
	return d.state.ID
}

func (d *Download) Post() *bulk_downloader.Post {
	return d.post
}

// State returns a copy of the current state.
func (d *Download) State() DownloadState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.clone()
}

func (d *Download) String() string {
	state := d.State()
	return fmt.Sprintf("Download{ID:\"%s\", PostID:\"%s\", URL:\"%s\", Status:\"%s\"}", state.ID, state.PostID, state.URL, state.Status)
}

func (d *Download) log() *zap.SugaredLogger {
	return zap.S().Named("download").With("download_id", d.ID(), "post_id", d.post.ID)
}
