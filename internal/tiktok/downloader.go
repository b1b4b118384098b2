package tiktok

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Extractor downloads a single video. Implementations wrap an external
// extraction tool and supply their own retry-relevant error taxonomy.
type Extractor interface {
	Download(ctx context.Context, link Link, opts ExtractOptions) error
}

// ExtractOptions carries the per-link settings the policy store contributes.
type ExtractOptions struct {
	// DestDir is the directory the video should land in.
	DestDir string
	// NotBefore excludes videos uploaded before this date when non-empty.
	NotBefore Date
}

// DownloadPolicy is the slice of the policy store the download driver needs.
type DownloadPolicy interface {
	IsIgnored(link Link) bool
	IsConfigured(user string) bool
	NotBefore(user string) (Date, error)
}

// DownloadResult partitions a run's links into outcomes.
type DownloadResult struct {
	Succeeded []Link
	Failed    []Link
	Skipped   []Link
}

// Downloader drives the extractor over a resolved link set. Videos are sorted
// into per-user folders under the download root; links in their owner's
// ignore set are skipped; the whole failed partition is re-attempted exactly
// once before being reported.
type Downloader struct {
	extractor Extractor
	policies  DownloadPolicy
	root      string
	workers   int
	notifier  Notifier
	logger    Logger
}

// NewDownloader creates a Downloader. policies may be nil (no skipping, no
// date floors); workers below 1 is treated as 1.
func NewDownloader(extractor Extractor, policies DownloadPolicy, root string, workers int, notifier Notifier, logger Logger) *Downloader {
	if workers < 1 {
		workers = 1
	}
	if notifier == nil {
		notifier = NewNopNotifier()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Downloader{
		extractor: extractor,
		policies:  policies,
		root:      root,
		workers:   workers,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run downloads every link in the set and returns the outcome partitions.
// The only returned errors are context cancellation; individual download
// failures land in the Failed partition instead.
func (d *Downloader) Run(ctx context.Context, links []Link) (*DownloadResult, error) {
	result := &DownloadResult{}

	pending := make([]Link, 0, len(links))
	for _, raw := range links {
		link := NewLink(raw.String())
		if !link.IsValid() {
			d.notifier.Notice("Link %s is invalid!", raw)
			continue
		}
		if d.policies != nil && d.policies.IsIgnored(link) {
			d.logger.Debug("skipping ignored link", "link", link.String())
			result.Skipped = append(result.Skipped, link)
			continue
		}
		pending = append(pending, link)
	}

	// First pass, then one re-attempt of whatever failed.
	failed, err := d.pass(ctx, pending)
	if err != nil {
		return nil, err
	}
	succeededFirst := len(pending) - len(failed)

	var stillFailed []Link
	if len(failed) > 0 {
		d.logger.Info("re-attempting failed downloads", "count", len(failed))
		stillFailed, err = d.pass(ctx, failed)
		if err != nil {
			return nil, err
		}
	}

	failedSet := make(map[Link]struct{}, len(stillFailed))
	for _, l := range stillFailed {
		failedSet[l] = struct{}{}
	}
	for _, l := range pending {
		if _, ok := failedSet[l]; !ok {
			result.Succeeded = append(result.Succeeded, l)
		}
	}
	result.Failed = stillFailed

	d.logger.Info("download run finished",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped),
		"recovered", len(result.Succeeded)-succeededFirst)
	return result, nil
}

// pass downloads one batch, split as evenly as possible across the
// configured worker count, and returns the links that failed.
func (d *Downloader) pass(ctx context.Context, links []Link) ([]Link, error) {
	if len(links) == 0 {
		return nil, nil
	}

	groups := splitLinks(links, d.workers)

	// Live progress notices only make sense for a single worker; parallel
	// runs report a summary at the end instead.
	notifier := d.notifier
	if len(groups) > 1 {
		notifier = NewNopNotifier()
	}

	var mu sync.Mutex
	var failed []Link

	g, ctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for i, link := range group {
				if err := ctx.Err(); err != nil {
					return err
				}
				notifier.Notice("(%d/%d) Downloading %s.", i+1, len(group), link)
				if err := d.downloadOne(ctx, link); err != nil {
					d.logger.Warn("download failed", "link", link.String(), "error", err)
					mu.Lock()
					failed = append(failed, link)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return failed, nil
}

func (d *Downloader) downloadOne(ctx context.Context, link Link) error {
	opts := ExtractOptions{DestDir: d.root}

	owner, err := link.Owner()
	if err == nil {
		userDir := filepath.Join(d.root, owner.String())
		if mkErr := os.MkdirAll(userDir, 0755); mkErr != nil {
			// Fall back to the root folder rather than losing the video.
			d.notifier.Notice("Could not create user folder %q: downloading into root folder instead.", owner)
		} else {
			opts.DestDir = userDir
		}
		if d.policies != nil && d.policies.IsConfigured(owner.String()) {
			if nb, nbErr := d.policies.NotBefore(owner.String()); nbErr == nil {
				opts.NotBefore = nb
			}
		}
	}

	return d.extractor.Download(ctx, link, opts)
}

// splitLinks divides links into at most n groups whose sizes differ by at
// most one.
func splitLinks(links []Link, n int) [][]Link {
	if n > len(links) {
		n = len(links)
	}
	if n < 1 {
		n = 1
	}
	groups := make([][]Link, 0, n)
	size := len(links) / n
	rem := len(links) % n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		groups = append(groups, links[start:end])
		start = end
	}
	return groups
}
