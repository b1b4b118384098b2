package scrape

import (
	"fmt"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/config"
	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

// NewFetcherFromConfig creates a PageFetcher implementation based on the
// scraper config type. Type "none" returns a nil fetcher, which disables
// username scraping entirely.
func NewFetcherFromConfig(cfg config.ScraperConfig, logger tiktok.Logger) (tiktok.PageFetcher, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Type {
	case "", "html":
		return NewHTMLFetcher(HTMLOptions{
			UserAgent:         cfg.UserAgent,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Timeout:           timeout,
			Logger:            logger,
		}), nil
	case "ytdlp":
		fetcher := NewYtdlpFetcher()
		if cfg.YtdlpPath != "" {
			fetcher.Path = cfg.YtdlpPath
		}
		if timeout > 0 {
			fetcher.Timeout = timeout
		}
		if logger != nil {
			fetcher.Logger = logger
		}
		return fetcher, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown scraper type: %s", cfg.Type)
	}
}
