package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/bulk-downloader"
)

const videoSubmission = `[
	{"kind":"Listing","data":{"after":null,"children":[{"kind":"t3","data":{
		"id":"lu8l8g","name":"t3_lu8l8g","title":"A video","author":"someone","subreddit":"videos",
		"permalink":"/r/videos/comments/lu8l8g/a_video/","url":"https://v.redd.it/abc123",
		"created_utc":1614556800.0,"is_video":true,
		"media":{"reddit_video":{"fallback_url":"https://v.redd.it/abc123/DASH_720.mp4?source=fallback","height":720,"width":1280,"duration":12,"is_gif":false}}
	}}]}},
	{"kind":"Listing","data":{"after":null,"children":[{"kind":"t1","data":{"id":"c1","body":"nice","replies":""}}]}}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL), WithRequestsPerMinute(0), WithUserAgent("test-agent"))
}

func TestGetSubmission(t *testing.T) {
	assert := assert_.New(t)
	var gotPath, gotAgent, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		_, _ = fmt.Fprint(w, videoSubmission)
	})

	submission, err := client.GetSubmission(context.Background(), "lu8l8g", TokenAuthenticator{Token: "secret"})
	require.NoError(t, err)
	assert.Equal("/comments/lu8l8g.json", gotPath)
	assert.Equal("test-agent", gotAgent)
	assert.Equal("bearer secret", gotAuth)

	assert.Equal("lu8l8g", submission.ID)
	assert.True(submission.IsVideo)
	video := submission.Video()
	require.NotNil(t, video)
	assert.Equal("https://v.redd.it/abc123/DASH_720.mp4?source=fallback", video.FallbackURL)

	post := submission.Post()
	assert.Equal("lu8l8g", post.ID)
	assert.Equal("https://v.redd.it/abc123", post.URL)
	assert.Equal("videos", post.Subreddit)
	assert.Equal("https://www.reddit.com/r/videos/comments/lu8l8g/a_video/", post.Permalink)
	assert.Equal(int64(1614556800), post.CreatedAt.Unix())
}

func TestGetSubmissionErrors(t *testing.T) {
	assert := assert_.New(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	_, err := client.GetSubmission(context.Background(), "abc", nil)
	assert.ErrorIs(err, bulk_downloader.ErrResourceNotFound)

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[{"kind":"Listing","data":{"children":[]}}]`)
	})
	_, err = client.GetSubmission(context.Background(), "abc", nil)
	assert.ErrorIs(err, ErrNoSubmission)

	_, err = client.GetSubmission(context.Background(), "abc", TokenAuthenticator{})
	assert.ErrorIs(err, ErrNoToken)
}

func TestListSubreddit(t *testing.T) {
	assert := assert_.New(t)
	var requests []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		assert.Equal("/r/pics/new.json", r.URL.Path)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		start := 0
		if after := r.URL.Query().Get("after"); after != "" {
			start, _ = strconv.Atoi(after[len("t3_p"):])
			start++
		}
		var children string
		for i := start; i < start+limit; i++ {
			if children != "" {
				children += ","
			}
			children += fmt.Sprintf(`{"kind":"t3","data":{"id":"p%d","name":"t3_p%d","url":"https://i.redd.it/p%d.jpg"}}`, i, i, i)
		}
		_, _ = fmt.Fprintf(w, `{"kind":"Listing","data":{"after":"t3_p%d","children":[%s]}}`, start+limit-1, children)
	})

	submissions, err := client.ListSubreddit(context.Background(), "r/pics", "new", 150, nil)
	require.NoError(t, err)
	require.Len(t, submissions, 150)
	assert.Equal("p0", submissions[0].ID)
	assert.Equal("p149", submissions[149].ID)
	require.Len(t, requests, 2)
	assert.Contains(requests[0], "limit=100")
	assert.Contains(requests[1], "limit=50")
	assert.Contains(requests[1], "after=t3_p99")

	_, err = client.ListSubreddit(context.Background(), "pics", "best-ever", 10, nil)
	assert.ErrorIs(err, ErrInvalidSort)
}

func TestSubmissionVideoFallbacks(t *testing.T) {
	assert := assert_.New(t)

	assert.Nil((&Submission{}).Video())

	secure := &Submission{SecureMedia: &Media{RedditVideo: &Video{FallbackURL: "https://v.redd.it/s/DASH_480.mp4"}}}
	assert.Equal("https://v.redd.it/s/DASH_480.mp4", secure.Video().FallbackURL)

	crosspost := &Submission{
		Media:               &Media{},
		CrosspostParentList: []Submission{{Media: &Media{RedditVideo: &Video{FallbackURL: "https://v.redd.it/x/DASH_360.mp4"}}}},
	}
	assert.Equal("https://v.redd.it/x/DASH_360.mp4", crosspost.Video().FallbackURL)
}
