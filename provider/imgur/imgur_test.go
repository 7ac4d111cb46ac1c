package imgur

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/provider/direct"
)

const singleImagePage = `<html><script>
	widgetFactory.mergeConfig('gallery', {
		image               : {"hash":"dLHF5Kg","title":"","ext":".png?1","url":"https://example.com/ignored.png"},
		group               : {},
	});
</script></html>`

const albumPage = `<html><script>
	widgetFactory.mergeConfig('gallery', {
		image               : {"hash":"Ty8TFOu","is_album":true,"album_images":{"count":3,"images":[
			{"hash":"first","ext":".jpg"},
			{"hash":"second","ext":".mp4"},
			{"hash":"third","ext":".gif?1"}
		]}},
		group               : {},
	});
</script></html>`

const singleEntryAlbumPage = `<html><script>
	widgetFactory.mergeConfig('gallery', {
		image               : {"hash":"album","album_images":{"count":1,"images":[{"hash":"only","ext":".jpg?2"}]}},
		group               : {},
	});
</script></html>`

const emptyAlbumPage = `<html><script>
	image               : {"hash":"album","album_images":{"count":0,"images":[]}},
	group               : {},
</script></html>`

const badExtensionPage = `<html><script>
	image               : {"hash":"weird","ext":".tiff"},
	group               : {},
</script></html>`

// newImgurServer serves pages by path, recording the cookies sent with each request.
func newImgurServer(t *testing.T, pages map[string]string) (*httptest.Server, *[]map[string]string) {
	var seen []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies := make(map[string]string)
		for _, c := range r.Cookies() {
			cookies[c.Name] = c.Value
		}
		seen = append(seen, cookies)
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, page)
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func findResources(t *testing.T, link string) ([]*bulk_downloader.Resource, error) {
	post := &bulk_downloader.Post{ID: "post1", URL: link}
	return New().FindResources(context.Background(), post, nil)
}

func resourceURLs(resources []*bulk_downloader.Resource) []string {
	urls := make([]string, 0, len(resources))
	for _, r := range resources {
		urls = append(urls, r.URL)
	}
	return urls
}

func TestSingleImage(t *testing.T) {
	assert := assert_.New(t)
	server, seen := newImgurServer(t, map[string]string{"/dLHF5Kg": singleImagePage})

	resources, err := findResources(t, server.URL+"/dLHF5Kg")
	require.NoError(t, err)
	assert.Equal([]string{ImageDomain + "dLHF5Kg.png"}, resourceURLs(resources))
	assert.Equal("post1", resources[0].Post.ID)

	require.Len(t, *seen, 1, "page should be fetched exactly once")
	assert.Equal(map[string]string{"over18": "1", "postpagebeta": "0"}, (*seen)[0])
}

func TestAlbum(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newImgurServer(t, map[string]string{"/a/Ty8TFOu": albumPage})

	resources, err := findResources(t, server.URL+"/a/Ty8TFOu")
	require.NoError(t, err)
	assert.Equal([]string{
		ImageDomain + "first.jpg",
		ImageDomain + "second.mp4",
		ImageDomain + "third.gif",
	}, resourceURLs(resources))
}

func TestAlbumWithSingleImage(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newImgurServer(t, map[string]string{"/a/one": singleEntryAlbumPage})

	resources, err := findResources(t, server.URL+"/a/one")
	require.NoError(t, err)
	assert.Equal([]string{ImageDomain + "only.jpg"}, resourceURLs(resources))
}

func TestEmptyAlbum(t *testing.T) {
	server, _ := newImgurServer(t, map[string]string{"/a/empty": emptyAlbumPage})

	_, err := findResources(t, server.URL+"/a/empty")
	assert_.ErrorIs(t, err, bulk_downloader.ErrNotADownloadableLink)
}

func TestInvalidExtension(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newImgurServer(t, map[string]string{"/weird": badExtensionPage})

	_, err := findResources(t, server.URL+"/weird")
	assert.ErrorIs(err, bulk_downloader.ErrSiteDownloader)
	assert.Contains(err.Error(), ".tiff")
}

func TestNotFound(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newImgurServer(t, nil)
	link := server.URL + "/gone"

	_, err := findResources(t, link)
	assert.ErrorIs(err, bulk_downloader.ErrResourceNotFound)
	var notFound *bulk_downloader.ResourceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(http.StatusNotFound, notFound.StatusCode)
	assert.Equal(link, notFound.URL)
}

func TestMissingMarkers(t *testing.T) {
	assert := assert_.New(t)
	server, _ := newImgurServer(t, map[string]string{
		"/nostart": `<html>group               : {}</html>`,
		"/noend":   `<html>image               : {"hash":"x","ext":".jpg"}</html>`,
	})

	_, err := findResources(t, server.URL+"/nostart")
	assert.ErrorIs(err, bulk_downloader.ErrNotADownloadableLink)
	_, err = findResources(t, server.URL+"/noend")
	assert.ErrorIs(err, bulk_downloader.ErrNotADownloadableLink)
}

type recordingResolver struct {
	auth bulk_downloader.Authenticator
}

func (r *recordingResolver) FindResources(ctx context.Context, post *bulk_downloader.Post, auth bulk_downloader.Authenticator) ([]*bulk_downloader.Resource, error) {
	r.auth = auth
	return direct.Resolver{}.FindResources(ctx, post, auth)
}

type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(*http.Request) error { return nil }

func TestGifvDelegatesToDirect(t *testing.T) {
	assert := assert_.New(t)
	ctx := context.Background()
	post := &bulk_downloader.Post{ID: "gifv", URL: "https://i.imgur.com/abcdef.gifv"}
	auth := fakeAuthenticator{}

	recorder := &recordingResolver{}
	resolver := New()
	resolver.Client = nil // must not be used
	resolver.Direct = recorder

	resources, err := resolver.FindResources(ctx, post, auth)
	require.NoError(t, err)
	expected, err := direct.Resolver{}.FindResources(ctx, post, auth)
	require.NoError(t, err)
	assert.Equal(expected, resources)
	assert.Equal(auth, recorder.auth)
}

func TestValidateExtension(t *testing.T) {
	assert := assert_.New(t)

	cases := map[string]string{
		".jpg":       ".jpg",
		".png?1":     ".png",
		".mp4":       ".mp4",
		".gif":       ".gif",
		".gifv":      ".gif",
		".jpg.png":   ".jpg",
		"x.png.jpg":  ".jpg",
		".png.mp4":   ".png",
		".mp4?.gif":  ".mp4",
		"image.jpeg": "",
	}
	for input, expected := range cases {
		ext, err := validateExtension(input)
		if expected == "" {
			assert.ErrorIs(err, bulk_downloader.ErrSiteDownloader, input)
			assert.Contains(err.Error(), input)
		} else {
			assert.NoError(err, input)
			assert.Equal(expected, ext, input)
		}
	}
}

func TestMatch(t *testing.T) {
	assert := assert_.New(t)
	resolver := New()

	for _, s := range []string{"https://imgur.com/a/abc", "https://i.imgur.com/abc.jpg", "https://m.imgur.com/gallery/x"} {
		u, _ := url.Parse(s)
		match, err := resolver.Match(u)
		assert.NoError(err, s)
		assert.Equal(resolver, match)
	}
	u, _ := url.Parse("https://example.com/abc.jpg")
	_, err := resolver.Match(u)
	assert.Error(err)
}
