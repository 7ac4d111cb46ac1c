// Package reddit is a small client for the read-only parts of reddit's content API that the downloader needs.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/generic"
)

const (
	DefaultBaseURL   = "https://www.reddit.com"
	OAuthBaseURL     = "https://oauth.reddit.com"
	DefaultUserAgent = "bulk-downloader/0.1"
	// The API won't return more than this many items per listing page.
	maxPageSize = 100
)

var (
	ErrNoSubmission = errors.New("no such submission")
	ErrInvalidSort  = errors.New("invalid listing sort")
	ErrNoToken      = errors.New("no access token")
)

var Sorts = generic.NewSet("hot", "new", "top", "rising", "controversial")

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRequestsPerMinute limits the request rate; zero or negative means unlimited.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
		} else {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		log:        zap.S().Named("reddit"),
	}
	WithRequestsPerMinute(60)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSubmission fetches a single submission by its ID (without the "t3_" prefix).
func (c *Client) GetSubmission(ctx context.Context, id string, auth bulk_downloader.Authenticator) (*Submission, error) {
	endpoint := fmt.Sprintf("%s/comments/%s.json?raw_json=1&limit=1", c.baseURL, url.PathEscape(id))
	// The response is [submission listing, comment listing]; only the first is needed.
	var listings []json.RawMessage
	if err := c.getJSON(ctx, endpoint, auth, &listings); err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSubmission, id)
	}
	var submissions listing
	if err := json.Unmarshal(listings[0], &submissions); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	if len(submissions.Data.Children) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSubmission, id)
	}
	return &submissions.Data.Children[0].Data, nil
}

// ListSubreddit returns up to limit submissions from a subreddit listing, following pagination as needed.
func (c *Client) ListSubreddit(ctx context.Context, subreddit string, sort string, limit int, auth bulk_downloader.Authenticator) ([]*Submission, error) {
	if sort == "" {
		sort = "hot"
	}
	if !Sorts.Contains(sort) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSort, sort)
	}
	subreddit = strings.TrimPrefix(strings.TrimPrefix(subreddit, "/"), "r/")

	var out []*Submission
	after := ""
	for len(out) < limit {
		query := url.Values{}
		query.Set("raw_json", "1")
		query.Set("limit", fmt.Sprint(min(limit-len(out), maxPageSize)))
		if after != "" {
			query.Set("after", after)
		}
		endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(subreddit), sort, query.Encode())
		var page listing
		if err := c.getJSON(ctx, endpoint, auth, &page); err != nil {
			return nil, err
		}
		for i := range page.Data.Children {
			if page.Data.Children[i].Kind == "t3" && len(out) < limit {
				out = append(out, &page.Data.Children[i].Data)
			}
		}
		c.log.Debugf("listed %d of %d submissions from r/%s", len(out), limit, subreddit)
		if page.Data.After == "" || len(page.Data.Children) == 0 {
			break
		}
		after = page.Data.After
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, auth bulk_downloader.Authenticator, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if err := bulk_downloader.Authenticate(auth, req); err != nil {
		return fmt.Errorf("failed to authenticate request: %w", err)
	}
	c.log.Debugf("GET %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &bulk_downloader.ResourceNotFoundError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// TokenAuthenticator authenticates requests with an OAuth bearer token. Requests must go to OAuthBaseURL.
type TokenAuthenticator struct {
	Token string
}

func (a TokenAuthenticator) Authenticate(req *http.Request) error {
	if a.Token == "" {
		return ErrNoToken
	}
	req.Header.Set("Authorization", "bearer "+a.Token)
	return nil
}
