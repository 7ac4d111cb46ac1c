package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/alanbriolat/bulk-downloader"
)

const Name = "youtube"

type Resolver struct {
	Client *youtube.Client
}

func New() *Resolver {
	return &Resolver{Client: &youtube.Client{}}
}

func (r *Resolver) Match(u *url.URL) (bulk_downloader.Resolver, error) {
	if _, err := extractVideoID(u); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) Provider() bulk_downloader.Provider {
	return bulk_downloader.Provider{Name: Name, Match: r.Match}
}

// FindResources resolves the direct stream URL of the best format that includes audio.
func (r *Resolver) FindResources(ctx context.Context, post *bulk_downloader.Post, _ bulk_downloader.Authenticator) ([]*bulk_downloader.Resource, error) {
	parsedURL, err := url.Parse(post.URL)
	if err != nil {
		return nil, err
	}
	videoID, err := extractVideoID(parsedURL)
	if err != nil {
		return nil, bulk_downloader.NotADownloadableLink("%s: %v", post.URL, err)
	}
	video, err := r.Client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}
	format := bestFormat(video.Formats.WithAudioChannels())
	if format == nil {
		return nil, bulk_downloader.NotADownloadableLink("no formats with audio for video %s", videoID)
	}
	streamURL, err := r.Client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream URL: %w", err)
	}
	return []*bulk_downloader.Resource{bulk_downloader.NewResource(post, streamURL)}, nil
}

func bestFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		if best == nil || formats[i].Bitrate > best.Bitrate {
			best = &formats[i]
		}
	}
	return best
}

// Extract video ID from YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/(v|shorts)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(url *url.URL) (string, error) {
	var id string
	switch strings.ToLower(url.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		if strings.HasPrefix(url.Path, "/v/") || strings.HasPrefix(url.Path, "/shorts/") {
			id = strings.SplitN(url.Path, "/", 4)[2]
		} else if url.Path == "/watch" || url.Path == "/details" {
			if url.Query().Has("v") {
				id = url.Query().Get("v")
			} else {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
		}
	case "youtu.be":
		id = strings.Trim(url.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}
