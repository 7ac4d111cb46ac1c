package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/generic"
	"github.com/alanbriolat/bulk-downloader/internal/metrics"
)

var ErrNoRegistry = errors.New("session needs a provider registry")

type Config struct {
	Registry       *bulk_downloader.ProviderRegistry
	Database       Database
	DownloadConfig bulk_downloader.DownloadConfig
	// Prefix for all saved files; for a directory, include the trailing separator.
	TargetPrefix  string
	Authenticator bulk_downloader.Authenticator
	HTTPClient    *http.Client
	// Maximum number of posts processed at once.
	Workers int
	// Time limit for each attempt at downloading a resource.
	Timeout    time.Duration
	MaxRetries uint64
	// Don't save content with the same hash as an already saved file.
	NoDupes bool
	// Skip posts that the Database has as complete.
	SkipExisting bool
	// Minimum interval between DownloadUpdated events from progress updates.
	ProgressUpdateInterval time.Duration
	// Extra options for every resource download.
	DownloadOptions []bulk_downloader.DownloadOption
	Metrics         *metrics.Metrics
	// OnEvent receives every Event; calls are serialized.
	OnEvent func(Event)
}

var DefaultConfig = Config{
	Database:               NilDatabase{},
	DownloadConfig:         bulk_downloader.NewDownloadConfig(),
	TargetPrefix:           "./",
	Workers:                4,
	Timeout:                time.Minute,
	MaxRetries:             bulk_downloader.DefaultMaxRetries,
	ProgressUpdateInterval: 500 * time.Millisecond,
}

// A Summary counts the outcome of a Run.
type Summary struct {
	Statuses map[DownloadStatus]int
	Files    int
	Bytes    uint64
}

type Session struct {
	config Config
	log    *zap.SugaredLogger

	mu        sync.Mutex
	downloads map[DownloadID]*Download
	byPost    map[string]*Download
	order     []*Download
	hashes    generic.Set[string]

	eventMu sync.Mutex
}

// New creates a Session. Unset fields of config are taken from DefaultConfig, except Registry which is required.
func New(config Config) (*Session, error) {
	if config.Registry == nil {
		return nil, ErrNoRegistry
	}
	if config.Database == nil {
		config.Database = DefaultConfig.Database
	}
	if config.DownloadConfig == nil {
		config.DownloadConfig = DefaultConfig.DownloadConfig
	}
	if config.TargetPrefix == "" {
		config.TargetPrefix = DefaultConfig.TargetPrefix
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig.Workers
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	s := &Session{
		config:    config,
		log:       zap.S().Named("session"),
		downloads: make(map[DownloadID]*Download),
		byPost:    make(map[string]*Download),
		hashes:    generic.NewSet[string](),
	}
	if config.NoDupes {
		records, err := config.Database.ListDownloads()
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			for _, hash := range record.Hashes() {
				s.hashes.Add(hash)
			}
		}
		s.log.Debugf("loaded %d known hashes", s.hashes.Count())
	}
	return s, nil
}

// AddPost adds a new Download for the post, or returns the existing one if the post was already added.
func (s *Session) AddPost(post *bulk_downloader.Post) *Download {
	s.mu.Lock()
	if d, ok := s.byPost[post.ID]; ok {
		s.mu.Unlock()
		return d
	}
	d := newDownload(s, post)
	s.downloads[d.ID()] = d
	s.byPost[post.ID] = d
	s.order = append(s.order, d)
	s.mu.Unlock()

	s.log.Debugf("download added: %v", d)
	s.emit(DownloadAdded{downloadEvent{d}})
	return d
}

// Run processes the posts with at most Config.Workers at once. One post failing doesn't affect the others; the
// only error returned is from ctx ending early.
func (s *Session) Run(ctx context.Context, posts []*bulk_downloader.Post) (Summary, error) {
	var downloads []*Download
	seen := generic.NewSet[DownloadID]()
	for _, post := range posts {
		if d := s.AddPost(post); seen.Add(d.ID()) {
			downloads = append(downloads, d)
		}
	}

	g := errgroup.Group{}
	g.SetLimit(s.config.Workers)
	for _, d := range downloads {
		g.Go(func() error {
			if ctx.Err() == nil {
				d.run(ctx)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := summarize(downloads)
	s.log.Infof("processed %d posts, saved %d files (%s)", len(downloads), summary.Files, humanize.Bytes(summary.Bytes))
	return summary, ctx.Err()
}

func summarize(downloads []*Download) Summary {
	summary := Summary{Statuses: make(map[DownloadStatus]int)}
	for _, d := range downloads {
		state := d.State()
		summary.Statuses[state.Status]++
		for _, f := range state.Files {
			if f.Path != "" {
				summary.Files++
				summary.Bytes += uint64(f.Size)
			}
		}
	}
	return summary
}

// ListDownloads returns all downloads in the order they were added.
func (s *Session) ListDownloads() []*Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Download(nil), s.order...)
}

func (s *Session) GetDownload(id DownloadID) *Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[id]
}

// claimHash records a content hash, returning false if it was already known.
func (s *Session) claimHash(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes.Add(hash)
}

func (s *Session) releaseHash(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes.Remove(hash)
}

func (s *Session) emit(e Event) {
	if s.config.OnEvent == nil {
		return
	}
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	s.config.OnEvent(e)
}
