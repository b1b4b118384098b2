package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

const (
	defaultUserAgent         = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	defaultRequestsPerMinute = 30
	defaultHTMLTimeout       = 60 * time.Second
)

// HTMLFetcher retrieves a user's page over HTTP and mines video anchors out
// of the document. Requests are paced with a shared rate limiter so that
// scraping many users in one run does not hammer the site.
type HTMLFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    tiktok.Logger
}

// HTMLOptions configures an HTMLFetcher. Zero values select defaults.
type HTMLOptions struct {
	UserAgent         string
	RequestsPerMinute int
	Timeout           time.Duration
	Client            *http.Client
	Logger            tiktok.Logger
}

// NewHTMLFetcher creates an HTML page fetcher.
func NewHTMLFetcher(opts HTMLOptions) *HTMLFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = defaultRequestsPerMinute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTMLTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = tiktok.NewNopLogger()
	}
	return &HTMLFetcher{
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1),
		userAgent: opts.UserAgent,
		logger:    logger,
	}
}

// FetchLinks downloads the page of user and returns the video links it
// exposes, sorted. A 404 maps to ErrUserNotFound and a 429 to ErrRateLimited.
func (f *HTMLFetcher) FetchLinks(ctx context.Context, user tiktok.Username) ([]tiktok.Link, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := "https://www.tiktok.com/@" + user.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// A timed out request gets one more attempt before giving up.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
			f.logger.Warn("page request timed out, retrying", "user", user.String())
			resp, err = f.client.Do(req)
		}
		if err != nil {
			return nil, &FetchError{Source: "html", User: user.String(), Err: err}
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{Source: "html", User: user.String(), Err: ErrUserNotFound}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{Source: "html", User: user.String(), Err: ErrRateLimited}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{Source: "html", User: user.String(),
			Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: "html", User: user.String(),
			Err: fmt.Errorf("parsing page: %w", err)}
	}

	links := ExtractVideoLinks(doc, user)
	f.logger.Debug("scraped user page", "user", user.String(), "links", len(links))
	return links, nil
}

// ExtractVideoLinks collects the video anchors in doc that belong to owner.
// Anchors pointing at other users' videos (reposts, suggested content) are
// dropped. The result is deduplicated and sorted.
func ExtractVideoLinks(doc *goquery.Document, owner tiktok.Username) []tiktok.Link {
	found := make(map[tiktok.Link]struct{})
	doc.Find(`a[href*="/video/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		link := tiktok.NewLink(href)
		if !link.IsValid() {
			return
		}
		linkOwner, err := link.Owner()
		if err != nil || linkOwner != owner {
			return
		}
		found[link] = struct{}{}
	})

	links := make([]tiktok.Link, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	return links
}
