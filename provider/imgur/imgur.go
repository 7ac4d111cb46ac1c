// Package imgur resolves single images and albums hosted on Imgur.
package imgur

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/internal/scrape"
	"github.com/alanbriolat/bulk-downloader/provider/direct"
	"github.com/alanbriolat/bulk-downloader/util"
)

const (
	Name = "imgur"
	// ImageDomain is the CDN prefix every resource URL is built on; the page's own URL fields are never used.
	ImageDomain = "https://i.imgur.com/"
)

const (
	startMarker = "image               : "
	endMarker   = "group               :"
)

// Checked in order, the first one contained in the suffix wins.
var possibleExtensions = []string{".jpg", ".png", ".mp4", ".gif"}

// Skip the adult-content interstitial and the paged beta layout, neither of which embed the image data.
var pageCookies = []*http.Cookie{
	{Name: "over18", Value: "1"},
	{Name: "postpagebeta", Value: "0"},
}

type Resolver struct {
	Client *http.Client
	// Direct handles links that are already a direct file (".gifv").
	Direct bulk_downloader.Resolver
}

func New() *Resolver {
	return &Resolver{
		Client: http.DefaultClient,
		Direct: direct.Resolver{},
	}
}

func (r *Resolver) Match(u *url.URL) (bulk_downloader.Resolver, error) {
	if !util.HostMatches(u.Hostname(), "imgur.com") {
		return nil, fmt.Errorf("unrecognised hostname")
	}
	return r, nil
}

func (r *Resolver) Provider() bulk_downloader.Provider {
	return bulk_downloader.Provider{Name: Name, Match: r.Match}
}

func (r *Resolver) FindResources(ctx context.Context, post *bulk_downloader.Post, auth bulk_downloader.Authenticator) ([]*bulk_downloader.Resource, error) {
	link := post.URL

	if strings.HasSuffix(link, ".gifv") {
		bulk_downloader.Logger(ctx).Sugar().Debugf("%s is a direct link, delegating", link)
		return r.Direct.FindResources(ctx, post, auth)
	}

	data, err := r.getData(ctx, link)
	if err != nil {
		return nil, err
	}

	if album := data.Get("album_images"); album.Exists() {
		images := album.Get("images").Array()
		switch len(images) {
		case 0:
			return nil, bulk_downloader.NotADownloadableLink("album at %s has no images", link)
		case 1:
			return r.downloadImage(post, images[0])
		default:
			return r.downloadAlbum(post, images)
		}
	}
	return r.downloadImage(post, data)
}

func (r *Resolver) downloadAlbum(post *bulk_downloader.Post, images []gjson.Result) ([]*bulk_downloader.Resource, error) {
	out := make([]*bulk_downloader.Resource, 0, len(images))
	for _, image := range images {
		resource, err := r.imageResource(post, image)
		if err != nil {
			return nil, err
		}
		out = append(out, resource)
	}
	return out, nil
}

func (r *Resolver) downloadImage(post *bulk_downloader.Post, image gjson.Result) ([]*bulk_downloader.Resource, error) {
	resource, err := r.imageResource(post, image)
	if err != nil {
		return nil, err
	}
	return []*bulk_downloader.Resource{resource}, nil
}

func (r *Resolver) imageResource(post *bulk_downloader.Post, image gjson.Result) (*bulk_downloader.Resource, error) {
	hash := image.Get("hash").String()
	if hash == "" {
		return nil, bulk_downloader.SiteDownloaderError("image on %s has no hash", post.URL)
	}
	extension, err := validateExtension(image.Get("ext").String())
	if err != nil {
		return nil, err
	}
	return bulk_downloader.NewResource(post, ImageDomain+hash+extension), nil
}

func (r *Resolver) getData(ctx context.Context, link string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	for _, cookie := range pageCookies {
		req.AddCookie(cookie)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, &bulk_downloader.ResourceNotFoundError{URL: link, StatusCode: resp.StatusCode}
	}
	pageSource, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read %s: %w", link, err)
	}

	data, err := scrape.ExtractJSON(string(pageSource), startMarker, endMarker)
	switch {
	case errors.Is(err, scrape.ErrMarkerNotFound):
		return gjson.Result{}, bulk_downloader.NotADownloadableLink("could not read the page source on %s", link)
	case err != nil:
		return gjson.Result{}, bulk_downloader.SiteDownloaderError("could not parse the page source on %s: %v", link, err)
	}
	return data, nil
}

func validateExtension(extensionSuffix string) (string, error) {
	for _, extension := range possibleExtensions {
		if strings.Contains(extensionSuffix, extension) {
			return extension, nil
		}
	}
	return "", bulk_downloader.SiteDownloaderError("%q is not recognized as a valid extension for Imgur", extensionSuffix)
}
