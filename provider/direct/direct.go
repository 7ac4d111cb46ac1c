// Package direct handles links that already point straight at a media file.
package direct

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/generic"
	"github.com/alanbriolat/bulk-downloader/util"
)

const Name = "direct"

type Config struct {
	Protocols  generic.Set[string]
	Extensions generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
		Extensions: generic.NewSet(
			".flv",
			".gif",
			".gifv",
			".jpeg",
			".jpg",
			".m4v",
			".mkv",
			".mp4",
			".png",
			".webm",
		),
	}
}

func (c *Config) Match(u *url.URL) (bulk_downloader.Resolver, error) {
	// Check that scheme/protocol is valid
	if !generic.ContainsFold(c.Protocols, u.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %v", u.Scheme)
	}
	extension := util.ExtensionFromURL(u)
	if extension == "" {
		return nil, fmt.Errorf("no file extension found")
	}
	if !c.Extensions.Contains(extension) {
		return nil, fmt.Errorf("unknown file extension %v", extension)
	}
	return Resolver{}, nil
}

func (c Config) Provider() bulk_downloader.Provider {
	return bulk_downloader.Provider{
		Name:     Name,
		Match:    c.Match,
		Priority: bulk_downloader.PriorityLowest,
	}
}

// Resolver treats the post's own link as the resource. The Authenticator is not needed.
type Resolver struct{}

func (Resolver) FindResources(_ context.Context, post *bulk_downloader.Post, _ bulk_downloader.Authenticator) ([]*bulk_downloader.Resource, error) {
	return []*bulk_downloader.Resource{bulk_downloader.NewResource(post, post.URL)}, nil
}
