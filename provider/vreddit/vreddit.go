// Package vreddit resolves videos hosted by the platform itself (v.redd.it).
package vreddit

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/internal/reddit"
	"github.com/alanbriolat/bulk-downloader/util"
)

const Name = "vreddit"

type Resolver struct {
	Client *reddit.Client
}

func New(client *reddit.Client) *Resolver {
	if client == nil {
		client = reddit.NewClient()
	}
	return &Resolver{Client: client}
}

func (r *Resolver) Match(u *url.URL) (bulk_downloader.Resolver, error) {
	if !util.HostMatches(u.Hostname(), "v.redd.it") {
		return nil, fmt.Errorf("unrecognised hostname")
	}
	return r, nil
}

func (r *Resolver) Provider() bulk_downloader.Provider {
	return bulk_downloader.Provider{Name: Name, Match: r.Match}
}

// FindResources looks up the post's media through the content API, giving exactly one resource for the video stream.
// Whether the stream is actually reachable is only discovered when the resource is downloaded.
func (r *Resolver) FindResources(ctx context.Context, post *bulk_downloader.Post, auth bulk_downloader.Authenticator) ([]*bulk_downloader.Resource, error) {
	submission, err := r.Client.GetSubmission(ctx, post.ID, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to get submission %s: %w", post.ID, err)
	}
	video := submission.Video()
	if video == nil {
		return nil, bulk_downloader.NotADownloadableLink("no video attached to post %s", post.ID)
	}
	return []*bulk_downloader.Resource{bulk_downloader.NewResource(post, video.FallbackURL)}, nil
}
