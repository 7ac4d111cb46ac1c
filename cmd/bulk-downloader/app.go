package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/async"
	"github.com/alanbriolat/bulk-downloader/generic"
	"github.com/alanbriolat/bulk-downloader/internal/boltdb"
	"github.com/alanbriolat/bulk-downloader/internal/config"
	"github.com/alanbriolat/bulk-downloader/internal/metrics"
	"github.com/alanbriolat/bulk-downloader/internal/reddit"
	"github.com/alanbriolat/bulk-downloader/internal/session"
	"github.com/alanbriolat/bulk-downloader/internal/sqlite"
	"github.com/alanbriolat/bulk-downloader/providers"
)

type application struct {
	logLevel zap.AtomicLevel
	config   *config.Config
}

func (a *application) before(c *cli.Context) (err error) {
	if a.config, err = config.Load(c.String("config"), c.String("env-file")); err != nil {
		return err
	}
	if c.IsSet("log-level") {
		a.config.LogLevel = c.String("log-level")
	}
	level, err := a.config.Level()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	a.logLevel.SetLevel(level)
	return nil
}

// postFlags select which posts a command works on, in addition to post IDs or links given as arguments.
var postFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "subreddit",
		Aliases: []string{"s"},
		Usage:   "include posts from `NAME` (repeatable)",
	},
	&cli.StringFlag{
		Name:  "sort",
		Value: "hot",
		Usage: "subreddit listing `ORDER` (hot, new, top, rising, controversial)",
	},
	&cli.IntFlag{
		Name:  "limit",
		Value: 25,
		Usage: "maximum `N` posts per subreddit",
	},
	&cli.StringFlag{
		Name:  "token",
		Usage: "OAuth access `TOKEN` for the reddit API",
	},
	&cli.StringFlag{
		Name:  "user-agent",
		Usage: "`UA` to identify as to the reddit API",
	},
}

func (a *application) applyRedditFlags(c *cli.Context) {
	if c.IsSet("token") {
		a.config.Reddit.Token = c.String("token")
	}
	if c.IsSet("user-agent") {
		a.config.Reddit.UserAgent = c.String("user-agent")
	}
}

func (a *application) redditClient() (*reddit.Client, bulk_downloader.Authenticator) {
	cfg := a.config.Reddit
	opts := []reddit.Option{reddit.WithRequestsPerMinute(cfg.RequestsPerMinute)}
	if cfg.UserAgent != "" {
		opts = append(opts, reddit.WithUserAgent(cfg.UserAgent))
	}
	var auth bulk_downloader.Authenticator
	baseURL := cfg.BaseURL
	if cfg.Token != "" {
		auth = reddit.TokenAuthenticator{Token: cfg.Token}
		if baseURL == "" {
			baseURL = reddit.OAuthBaseURL
		}
	}
	if baseURL != "" {
		opts = append(opts, reddit.WithBaseURL(baseURL))
	}
	return reddit.NewClient(opts...), auth
}

// collectPosts fetches the posts named by arguments, then the listing of each subreddit, dropping repeats.
func collectPosts(ctx context.Context, client *reddit.Client, auth bulk_downloader.Authenticator, c *cli.Context) ([]*bulk_downloader.Post, error) {
	log := zap.S().Named("posts")
	sort := c.String("sort")
	if !reddit.Sorts.Contains(sort) {
		return nil, fmt.Errorf("%w: %v", reddit.ErrInvalidSort, sort)
	}

	var posts []*bulk_downloader.Post
	seen := generic.NewSet[string]()
	add := func(submission *reddit.Submission) {
		if seen.Add(submission.ID) {
			posts = append(posts, submission.Post())
		}
	}

	for _, arg := range c.Args().Slice() {
		id, err := reddit.ParsePostID(arg)
		if err != nil {
			return nil, err
		}
		submission, err := client.GetSubmission(ctx, id, auth)
		if err != nil {
			return nil, fmt.Errorf("failed to get post %v: %w", id, err)
		}
		add(submission)
	}

	// Listings are fetched concurrently (the client still applies its rate limit)
	subreddits := c.StringSlice("subreddit")
	results := make([]<-chan generic.Result[[]*reddit.Submission], len(subreddits))
	for i, subreddit := range subreddits {
		subreddit := subreddit
		results[i] = async.RunResult(func() ([]*reddit.Submission, error) {
			return client.ListSubreddit(ctx, subreddit, sort, c.Int("limit"), auth)
		})
	}
	for i, ch := range results {
		submissions, err := (<-ch).Parts()
		if err != nil {
			return nil, fmt.Errorf("failed to list r/%v: %w", subreddits[i], err)
		}
		log.Debugf("r/%v: %d posts", subreddits[i], len(submissions))
		for _, s := range submissions {
			add(s)
		}
	}

	if len(posts) == 0 {
		return nil, errors.New("no posts given, pass post IDs/links or --subreddit")
	}
	return posts, nil
}

func (a *application) registry(client *reddit.Client) (*bulk_downloader.ProviderRegistry, error) {
	return providers.NewRegistry(providers.Config{Reddit: client, HTTPClient: http.DefaultClient})
}

func (a *application) openDatabase() (session.Database, io.Closer, error) {
	cfg := a.config.Database
	switch cfg.Type {
	case config.DatabaseBolt:
		db, err := boltdb.New(cfg.Path)
		return db, db, err
	case config.DatabaseSQLite:
		db, err := sqlite.New(cfg.Path)
		return db, db, err
	default:
		return session.NilDatabase{}, nopCloser{}, nil
	}
}

// serveMetrics runs the Prometheus endpoint until the returned function is called.
func serveMetrics(addr string, m *metrics.Metrics) func() {
	log := zap.S().Named("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	result := async.Run(server.ListenAndServe)
	log.Infof("serving metrics on %v/metrics", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		if err := <-result; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server failed: %v", err)
		}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error {
	return nil
}
