package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/generic"
	"github.com/alanbriolat/bulk-downloader/internal/metrics"
	"github.com/alanbriolat/bulk-downloader/internal/session"
)

func (a *application) downloadCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "save downloaded files below `DIR`",
		},
		&cli.StringFlag{
			Name:  "template",
			Usage: "file name `TEMPLATE`, relative to the target directory",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "process `N` posts at once",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "time limit for each attempt at downloading a file",
		},
		&cli.Uint64Flag{
			Name:  "retries",
			Usage: "retry failed downloads `N` times",
		},
		&cli.BoolFlag{
			Name:  "no-dupes",
			Usage: "don't save files with the same content as an already saved file",
		},
		&cli.BoolFlag{
			Name:  "skip-existing",
			Usage: "skip posts already downloaded according to the database",
		},
		&cli.StringFlag{
			Name:  "database",
			Usage: "database `TYPE` (none, bolt, sqlite)",
		},
		&cli.StringFlag{
			Name:  "database-path",
			Usage: "database `FILE`",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "serve Prometheus metrics on `ADDR`",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "don't show a progress bar",
		},
	}, postFlags...)
	return &cli.Command{
		Name:      "download",
		Usage:     "download the media linked from posts",
		ArgsUsage: "[POST...]",
		Flags:     flags,
		Action:    a.download,
	}
}

func (a *application) applyDownloadFlags(c *cli.Context) error {
	cfg := a.config
	if c.IsSet("target") {
		cfg.Download.Dir = c.String("target")
	}
	if c.IsSet("template") {
		cfg.Download.FileTemplate = c.String("template")
	}
	if c.IsSet("workers") {
		cfg.Download.Workers = c.Int("workers")
	}
	if c.IsSet("timeout") {
		cfg.Download.Timeout = c.Duration("timeout")
	}
	if c.IsSet("retries") {
		cfg.Download.MaxRetries = c.Uint64("retries")
	}
	if c.IsSet("no-dupes") {
		cfg.Download.NoDupes = c.Bool("no-dupes")
	}
	if c.IsSet("skip-existing") {
		cfg.Download.SkipExisting = c.Bool("skip-existing")
	}
	if c.IsSet("database") {
		cfg.Database.Type = c.String("database")
	}
	if c.IsSet("database-path") {
		cfg.Database.Path = c.String("database-path")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	a.applyRedditFlags(c)
	return cfg.Validate()
}

func (a *application) download(c *cli.Context) error {
	ctx := c.Context
	logger := bulk_downloader.Logger(ctx).Sugar()
	if err := a.applyDownloadFlags(c); err != nil {
		return err
	}
	cfg := a.config

	client, auth := a.redditClient()
	registry, err := a.registry(client)
	if err != nil {
		return err
	}
	posts, err := collectPosts(ctx, client, auth, c)
	if err != nil {
		return err
	}

	db, closer, err := a.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closer.Close()

	downloadConfig, err := bulk_downloader.NewDownloadConfigTemplate(cfg.Download.FileTemplate)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		stopMetrics := serveMetrics(cfg.MetricsAddr, m)
		defer stopMetrics()
	}

	var bar *progressbar.ProgressBar
	if !c.Bool("no-progress") {
		bar = progressbar.Default(int64(len(posts)), "posts")
	}

	sessionConfig := session.DefaultConfig
	sessionConfig.Registry = registry
	sessionConfig.Database = db
	sessionConfig.DownloadConfig = downloadConfig
	sessionConfig.TargetPrefix = cfg.Download.TargetPrefix()
	sessionConfig.Authenticator = auth
	sessionConfig.Workers = cfg.Download.Workers
	sessionConfig.Timeout = cfg.Download.Timeout
	sessionConfig.MaxRetries = cfg.Download.MaxRetries
	sessionConfig.NoDupes = cfg.Download.NoDupes
	sessionConfig.SkipExisting = cfg.Download.SkipExisting
	sessionConfig.Metrics = m
	sessionConfig.OnEvent = eventLogger(bar)

	s, err := session.New(sessionConfig)
	if err != nil {
		return err
	}
	logger.Infof("Downloading %d posts into %s", len(posts), cfg.Download.Dir)
	summary, err := s.Run(ctx, posts)
	if bar != nil {
		_ = bar.Finish()
	}
	logSummary(logger, summary)
	return err
}

// eventLogger logs session events, and advances the progress bar (if any) as posts finish.
func eventLogger(bar *progressbar.ProgressBar) func(session.Event) {
	logger := zap.S().Named("events")
	return func(event session.Event) {
		switch e := event.(type) {
		case session.DownloadUpdated:
			if e.OldState.Status == e.NewState.Status && e.OldState.Downloaded != e.NewState.Downloaded {
				return
			}
			changes, err := diff.Diff(e.OldState, e.NewState)
			if err != nil {
				logger.Errorf("failed to diff old and new download state: %v", err)
				return
			}
			for _, change := range changes {
				logger.Debugf("%v: %v: %#v -> %#v", e.Download().Post().ID, change.Path, change.From, change.To)
			}
		case session.DownloadFileComplete:
			if e.File.Duplicate {
				logger.Debugf("%v: duplicate %v", e.Download().Post().ID, e.File.URL)
			} else {
				logger.Debugf("%v: saved %v (%s)", e.Download().Post().ID, e.File.Path, humanize.Bytes(uint64(e.File.Size)))
			}
		case session.DownloadStopped:
			if e.Status == session.DownloadStatusError {
				logger.Warnf("%v: %v", e.Download().Post().ID, e.Err)
			}
			if bar != nil && e.Status.IsFinal() {
				generic.Unwrap_(bar.Add(1))
			}
		}
	}
}

func logSummary(logger *zap.SugaredLogger, summary session.Summary) {
	statuses := make([]string, 0, len(summary.Statuses))
	for status := range summary.Statuses {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		logger.Infof("%s: %d", status, summary.Statuses[session.DownloadStatus(status)])
	}
	logger.Infof("Saved %d files (%s)", summary.Files, humanize.Bytes(summary.Bytes))
}
