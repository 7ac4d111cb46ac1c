package direct

import (
	"context"
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/bulk-downloader"
)

func TestMatch(t *testing.T) {
	assert := assert_.New(t)
	config := NewConfig()

	for _, s := range []string{
		"https://i.redd.it/abc.jpg",
		"http://example.com/video.MP4",
		"https://i.imgur.com/abc.gifv",
		"https://example.com/a/b/c.webm?x=1",
	} {
		resolver, err := config.Match(mustParse(t, s))
		assert.NoError(err, s)
		assert.NotNil(resolver, s)
	}

	for _, s := range []string{
		"ftp://example.com/a.jpg",
		"https://example.com/page",
		"https://example.com/page.html",
		"https://example.com/",
	} {
		resolver, err := config.Match(mustParse(t, s))
		assert.Error(err, s)
		assert.Nil(resolver, s)
	}
}

func TestFindResources(t *testing.T) {
	assert := assert_.New(t)

	post := &bulk_downloader.Post{ID: "abc", URL: "https://i.redd.it/abc.png"}
	resources, err := Resolver{}.FindResources(context.Background(), post, nil)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Same(post, resources[0].Post)
	assert.Equal(post.URL, resources[0].URL)
}

func TestProvider(t *testing.T) {
	assert := assert_.New(t)

	p := NewConfig().Provider()
	assert.Equal(Name, p.Name)
	assert.Equal(bulk_downloader.PriorityLowest, p.Priority)
}

func mustParse(t *testing.T, s string) *url.URL {
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}
