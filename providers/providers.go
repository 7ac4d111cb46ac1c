// Package providers wires every site resolver into a ProviderRegistry.
package providers

import (
	"fmt"
	"net/http"

	"github.com/alanbriolat/bulk-downloader"
	"github.com/alanbriolat/bulk-downloader/internal/reddit"
	"github.com/alanbriolat/bulk-downloader/provider/direct"
	"github.com/alanbriolat/bulk-downloader/provider/imgur"
	"github.com/alanbriolat/bulk-downloader/provider/vreddit"
	"github.com/alanbriolat/bulk-downloader/provider/youtube"
)

type Config struct {
	// Reddit is the content API client used for platform-hosted media; nil means a default client.
	Reddit *reddit.Client
	// HTTPClient is used for scraping third-party pages; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Register adds all known providers to the registry.
func Register(registry *bulk_downloader.ProviderRegistry, config Config) error {
	imgurResolver := imgur.New()
	if config.HTTPClient != nil {
		imgurResolver.Client = config.HTTPClient
	}
	all := []bulk_downloader.Provider{
		vreddit.New(config.Reddit).Provider(),
		imgurResolver.Provider(),
		youtube.New().Provider(),
		direct.NewConfig().Provider(),
	}
	for _, p := range all {
		if err := registry.Add(p); err != nil {
			return fmt.Errorf("failed to register provider %v: %w", p.Name, err)
		}
	}
	return nil
}

// NewRegistry creates a ProviderRegistry with all known providers.
func NewRegistry(config Config) (*bulk_downloader.ProviderRegistry, error) {
	registry := &bulk_downloader.ProviderRegistry{}
	if err := Register(registry, config); err != nil {
		return nil, err
	}
	return registry, nil
}
