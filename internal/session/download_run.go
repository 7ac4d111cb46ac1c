package session

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/bulk-downloader"
)

var (
	ErrAlreadyDownloaded = errors.New("already downloaded")
	errDuplicate         = errors.New("duplicate content")
)

func (d *Download) run(ctx context.Context) {
	s := d.session
	log := d.log()

	if s.config.SkipExisting {
		if existing, err := s.config.Database.GetDownload(d.post.ID); err != nil {
			log.Warnf("failed to check for existing download: %v", err)
		} else if existing != nil && existing.Status == DownloadStatusComplete {
			log.Infof("skipping %v: already downloaded", d.post.ID)
			s.config.Metrics.RecordPostSkipped(string(DownloadStatusSkipped))
			d.transient = true
			d.stop(DownloadStatusSkipped, ErrAlreadyDownloaded)
			return
		}
	}

	s.config.Metrics.RecordPostStarted()
	status, err := d.process(ctx, log)
	if ctx.Err() != nil && status != DownloadStatusComplete {
		// Interrupted, so leave it somewhere a later run can pick it up again
		status, err = d.State().Status.NonRunning(), ctx.Err()
	}
	s.config.Metrics.RecordPostFinished(string(status))
	d.stop(status, err)
}

func (d *Download) process(ctx context.Context, log *zap.SugaredLogger) (DownloadStatus, error) {
	s := d.session

	d.updateState(func(ds *DownloadState) {
		ds.Status = DownloadStatusMatching
	})
	match, err := s.config.Registry.Match(d.post)
	if err != nil {
		log.Infof("no provider for %v: %v", d.post.URL, err)
		return DownloadStatusSkipped, err
	}
	d.updateState(func(ds *DownloadState) {
		ds.Status = DownloadStatusMatched
		ds.Provider = match.ProviderName
	})

	d.updateState(func(ds *DownloadState) {
		ds.Status = DownloadStatusFetching
	})
	stopTimer := s.config.Metrics.ResolveTimer(match.ProviderName)
	resources, err := match.Resolver.FindResources(ctx, d.post, s.config.Authenticator)
	stopTimer()
	if errors.Is(err, bulk_downloader.ErrNotADownloadableLink) {
		log.Infof("nothing to download from %v: %v", d.post.URL, err)
		return DownloadStatusSkipped, err
	} else if err != nil {
		log.Warnf("failed to find resources in %v: %v", d.post.URL, err)
		return DownloadStatusError, err
	}
	d.updateState(func(ds *DownloadState) {
		ds.Status = DownloadStatusReady
		ds.Resources = len(resources)
	})

	d.updateState(func(ds *DownloadState) {
		ds.Status = DownloadStatusDownloading
		ds.Files = nil
	})
	dl, err := bulk_downloader.NewDownloadBuilder().
		WithContext(ctx).
		WithTargetPrefix(s.config.TargetPrefix).
		WithProgressCallback(d.updateProgress).
		Build()
	if err != nil {
		return DownloadStatusError, err
	}
	defer dl.Close()

	var result *multierror.Error
	for i, resource := range resources {
		file, err := d.saveResource(dl, match.ProviderName, resource, i+1, len(resources))
		d.updateState(func(ds *DownloadState) {
			ds.Files = append(ds.Files, file)
		})
		if err != nil {
			if ctx.Err() != nil {
				return DownloadStatusError, ctx.Err()
			}
			log.Warnf("failed to download %v: %v", resource.URL, err)
			result = multierror.Append(result, err)
			continue
		}
		if file.Path != "" {
			log.Infof("saved %v to %v (%s)", resource.URL, file.Path, humanize.Bytes(uint64(file.Size)))
		} else {
			log.Infof("skipped %v: duplicate of already saved content", resource.URL)
		}
		s.emit(DownloadFileComplete{downloadEvent{d}, file})
	}
	if err := result.ErrorOrNil(); err != nil {
		return DownloadStatusError, err
	}
	return DownloadStatusComplete, nil
}

func (d *Download) saveResource(dl bulk_downloader.Download, provider string, resource *bulk_downloader.Resource, index int, count int) (FileRecord, error) {
	s := d.session
	file := FileRecord{URL: resource.URL}
	claimed := false
	namer := func(r *bulk_downloader.Resource) (string, error) {
		file.Hash = r.HexDigest()
		file.Size = len(r.Content())
		if s.config.NoDupes {
			if !s.claimHash(file.Hash) {
				return "", errDuplicate
			}
			claimed = true
		}
		return s.config.DownloadConfig.GetTargetPath(&bulk_downloader.TargetFileTemplateArgs{
			ProviderName: provider,
			Post:         d.post,
			Resource:     r,
			Index:        index,
			Count:        count,
		})
	}
	opts := append([]bulk_downloader.DownloadOption{
		bulk_downloader.WithHTTPClient(s.config.HTTPClient),
		bulk_downloader.WithMaxRetries(s.config.MaxRetries),
	}, s.config.DownloadOptions...)

	target, err := dl.SaveResource(resource, namer, s.config.Timeout, opts...)
	switch {
	case errors.Is(err, errDuplicate):
		file.Duplicate = true
		s.config.Metrics.RecordResource(provider, "duplicate", file.Size)
		return file, nil
	case err != nil:
		if claimed {
			s.releaseHash(file.Hash)
		}
		file.Error = err.Error()
		s.config.Metrics.RecordResource(provider, "error", 0)
		return file, err
	default:
		file.Path = target
		s.config.Metrics.RecordResource(provider, "saved", file.Size)
		return file, nil
	}
}

// updateState applies f, persists the result and notifies the subscriber.
func (d *Download) updateState(f func(ds *DownloadState)) {
	d.mu.Lock()
	old := d.state.clone()
	f(&d.state)
	d.state.UpdatedAt = time.Now()
	updated := d.state.clone()
	d.mu.Unlock()

	if !d.transient {
		if err := d.session.config.Database.WriteDownload(&updated.DownloadRecord); err != nil {
			d.log().Warnf("failed to save download state: %v", err)
		}
	}
	d.session.emit(DownloadUpdated{downloadEvent{d}, old, updated})
}

// updateProgress is a progress callback, which notifies the subscriber no more often than the configured interval.
func (d *Download) updateProgress(downloaded int, expected int) {
	d.mu.Lock()
	old := d.state.clone()
	d.state.Downloaded, d.state.Expected = downloaded, expected
	complete := expected > 0 && downloaded >= expected
	if !complete && time.Since(d.lastProgressEvent) < d.session.config.ProgressUpdateInterval {
		d.mu.Unlock()
		return
	}
	d.lastProgressEvent = time.Now()
	updated := d.state.clone()
	d.mu.Unlock()

	d.session.emit(DownloadUpdated{downloadEvent{d}, old, updated})
}

func (d *Download) stop(status DownloadStatus, err error) {
	d.updateState(func(ds *DownloadState) {
		ds.Status = status
		if err != nil {
			ds.Error = err.Error()
		} else {
			ds.Error = ""
		}
	})
	d.session.emit(DownloadStopped{downloadEvent{d}, status, err})
}
