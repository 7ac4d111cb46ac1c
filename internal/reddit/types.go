package reddit

import (
	"strings"
	"time"

	"github.com/alanbriolat/bulk-downloader"
)

// Everything below mimics reddit's responses, keeping only the fields we use.

type listing struct {
	Kind string      `json:"kind"`
	Data listingData `json:"data"`
}

type listingData struct {
	After    string  `json:"after"`
	Children []child `json:"children"`
}

type child struct {
	Kind string     `json:"kind"`
	Data Submission `json:"data"`
}

// A Submission is a post as returned by the content API.
type Submission struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Title               string       `json:"title"`
	Author              string       `json:"author"`
	Subreddit           string       `json:"subreddit"`
	Permalink           string       `json:"permalink"`
	URL                 string       `json:"url"`
	CreatedUTC          float64      `json:"created_utc"`
	IsSelf              bool         `json:"is_self"`
	IsVideo             bool         `json:"is_video"`
	Media               *Media       `json:"media"`
	SecureMedia         *Media       `json:"secure_media"`
	CrosspostParentList []Submission `json:"crosspost_parent_list"`
}

type Media struct {
	RedditVideo *Video `json:"reddit_video"`
}

type Video struct {
	FallbackURL       string `json:"fallback_url"`
	DashURL           string `json:"dash_url"`
	HLSURL            string `json:"hls_url"`
	Height            int    `json:"height"`
	Width             int    `json:"width"`
	Duration          int    `json:"duration"`
	IsGif             bool   `json:"is_gif"`
	TranscodingStatus string `json:"transcoding_status"`
}

// Video returns the platform-hosted video attached to the submission, looking through crossposts, or nil.
func (s *Submission) Video() *Video {
	for _, media := range []*Media{s.Media, s.SecureMedia} {
		if media != nil && media.RedditVideo != nil && media.RedditVideo.FallbackURL != "" {
			return media.RedditVideo
		}
	}
	for i := range s.CrosspostParentList {
		if video := s.CrosspostParentList[i].Video(); video != nil {
			return video
		}
	}
	return nil
}

// Post converts the submission into the form resolvers work with.
func (s *Submission) Post() *bulk_downloader.Post {
	post := &bulk_downloader.Post{
		ID:        s.ID,
		URL:       s.URL,
		Title:     s.Title,
		Author:    s.Author,
		Subreddit: s.Subreddit,
		Permalink: s.Permalink,
	}
	if strings.HasPrefix(post.Permalink, "/") {
		post.Permalink = "https://www.reddit.com" + post.Permalink
	}
	if s.CreatedUTC > 0 {
		post.CreatedAt = time.Unix(int64(s.CreatedUTC), 0).UTC()
	}
	return post
}
