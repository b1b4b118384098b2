package tiktok

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// htmlMarker is the first line of a saved page capture. Anything else is
// treated as a plain list of inputs, one per line.
const htmlMarker = "<!DOCTYPE html>"

// videoAnchor marks a video link inside a saved page capture.
const videoAnchor = "/video/"

// PageFetcher retrieves video links from a user's public page. A fetcher that
// can retrieve nothing returns an empty slice; the resolver treats "nothing
// found" and "fetch failed" identically, so a returned error is reported and
// degraded to an empty result, never propagated.
type PageFetcher interface {
	FetchLinks(ctx context.Context, user Username) ([]Link, error)
}

// FileReader abstracts the filesystem access the resolver needs, so tests can
// run without touching disk.
type FileReader interface {
	// IsFile reports whether path names an existing regular file.
	IsFile(path string) bool
	// ReadLines reads the whole file as UTF-8 and returns its lines.
	ReadLines(path string) ([]string, error)
	// Canonical maps a path to a canonical form used for cycle detection.
	Canonical(path string) string
}

// IgnorePolicy answers whether a link sits in its owner's ignore set.
// *policy.Store implements it.
type IgnorePolicy interface {
	IsIgnored(link Link) bool
}

// ResolveResult is the outcome of expanding a list of mixed inputs.
type ResolveResult struct {
	// Links is the deduplicated set of canonical links.
	Links map[Link]struct{}
	// Users holds the usernames supplied directly plus the owner of every
	// link that survived filtering.
	Users map[Username]struct{}
	// HTMLSources maps each saved page capture that was mined to the number
	// of distinct valid links it contributed.
	HTMLSources map[string]int
}

func newResolveResult() *ResolveResult {
	return &ResolveResult{
		Links:       make(map[Link]struct{}),
		Users:       make(map[Username]struct{}),
		HTMLSources: make(map[string]int),
	}
}

// SortedLinks returns the link set in ascending order.
func (r *ResolveResult) SortedLinks() []Link {
	links := make([]Link, 0, len(r.Links))
	for l := range r.Links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	return links
}

// SortedUsers returns the username set in ascending order.
func (r *ResolveResult) SortedUsers() []Username {
	users := make([]Username, 0, len(r.Users))
	for u := range r.Users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// Resolver expands a heterogeneous list of inputs (links, file paths,
// usernames) into a canonical link set. One bad input never aborts the batch;
// it is reported through the notifier and skipped.
type Resolver struct {
	fetcher  PageFetcher
	files    FileReader
	ignores  IgnorePolicy
	notifier Notifier
	logger   Logger
}

// NewResolver creates a Resolver. ignores may be nil when no policy store is
// in play; notifier and logger may be nil.
func NewResolver(fetcher PageFetcher, files FileReader, ignores IgnorePolicy, notifier Notifier, logger Logger) *Resolver {
	if notifier == nil {
		notifier = NewNopNotifier()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Resolver{
		fetcher:  fetcher,
		files:    files,
		ignores:  ignores,
		notifier: notifier,
		logger:   logger,
	}
}

// Resolve classifies every input in order: a valid link is collected, an
// existing file is expanded recursively, a valid username is scraped via the
// page fetcher, and anything else is reported as invalid. After expansion the
// link set is filtered down to whitelisted owners (when the whitelist is
// non-empty), links in their owner's ignore set are removed, and the owner of
// every surviving link is folded into the username set.
//
// Only genuine I/O failures on files that passed the existence check are
// returned as errors.
func (r *Resolver) Resolve(ctx context.Context, inputs []string, whitelist map[Username]struct{}) (*ResolveResult, error) {
	res := newResolveResult()
	visited := make(map[string]struct{})

	for _, input := range inputs {
		if err := r.classify(ctx, input, res, visited); err != nil {
			return nil, err
		}
	}

	if len(whitelist) > 0 {
		for link := range res.Links {
			owner, err := link.Owner()
			if err != nil {
				delete(res.Links, link)
				continue
			}
			if _, ok := whitelist[owner]; !ok {
				delete(res.Links, link)
			}
		}
	}

	if r.ignores != nil {
		for link := range res.Links {
			if r.ignores.IsIgnored(link) {
				r.logger.Debug("dropping ignored link", "link", link.String())
				delete(res.Links, link)
			}
		}
	}

	// Back-fill owners so the username set reflects exactly the owners
	// present in the final link set, however each link was discovered.
	for link := range res.Links {
		if owner, err := link.Owner(); err == nil {
			res.Users[owner] = struct{}{}
		}
	}

	return res, nil
}

func (r *Resolver) classify(ctx context.Context, input string, res *ResolveResult, visited map[string]struct{}) error {
	if link := NewLink(input); link.IsValid() {
		res.Links[link] = struct{}{}
		return nil
	}

	if r.files.IsFile(input) {
		return r.expandFile(ctx, input, res, visited)
	}

	if user := NewUsername(input); user.IsValid() {
		var links []Link
		if r.fetcher == nil {
			r.notifier.Notice("Scraping is disabled; no links collected for user %q.", user)
		} else {
			var err error
			links, err = r.fetcher.FetchLinks(ctx, user)
			if err != nil {
				// A failed fetch yields an empty link set for that user;
				// processing continues.
				r.notifier.Notice("Failed to scrape for user %q: %v", user, err)
			} else if len(links) == 0 {
				// An input that scrapes to nothing is reported the same
				// way an unusable input is. A nonexistent file path often
				// lands here, since most file names fold to a username
				// that no one holds.
				r.notifier.Notice("No links found for user %q.", user)
			}
		}
		for _, raw := range links {
			if link := NewLink(raw.String()); link.IsValid() {
				res.Links[link] = struct{}{}
			}
		}
		res.Users[user] = struct{}{}
		return nil
	}

	r.notifier.Notice("Invalid input: %s", input)
	return nil
}

// expandFile reads one input file and feeds its contents back through
// classification. The visited set keys on canonical paths, so a file listing
// itself, or two files listing each other, expand at most once.
func (r *Resolver) expandFile(ctx context.Context, path string, res *ResolveResult, visited map[string]struct{}) error {
	canon := r.files.Canonical(path)
	if _, seen := visited[canon]; seen {
		return nil
	}
	visited[canon] = struct{}{}

	lines, err := r.files.ReadLines(path)
	if err != nil {
		return fmt.Errorf("reading input file %s: %w", path, err)
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	if len(lines) == 0 {
		return nil
	}

	if lines[0] == htmlMarker {
		found := r.mineHTML(lines)
		for link := range found {
			res.Links[link] = struct{}{}
		}
		res.HTMLSources[path] = len(found)
		return nil
	}

	for _, line := range lines {
		if line == "" {
			continue
		}
		if err := r.classify(ctx, line, res, visited); err != nil {
			return err
		}
	}
	return nil
}

// mineHTML carves candidate links out of a saved page capture. For every
// occurrence of the video anchor it takes the nearest preceding "https://"
// and the following closing quote, and keeps the carved string only if it is
// already a fully valid link.
func (r *Resolver) mineHTML(lines []string) map[Link]struct{} {
	found := make(map[Link]struct{})
	for _, line := range lines {
		rest := line
		offset := 0
		for {
			i := strings.Index(rest, videoAnchor)
			if i < 0 {
				break
			}
			at := offset + i
			before := line[:at]
			after := line[at:]

			start := strings.LastIndex(before, "https://")
			if start >= 0 {
				candidate := before[start:]
				if q := strings.IndexByte(after, '"'); q >= 0 {
					candidate += after[:q]
				} else {
					candidate += after
				}
				if link := Link(candidate); link.IsValid() {
					found[link] = struct{}{}
				}
			}

			offset = at + len(videoAnchor)
			rest = line[offset:]
		}
	}
	return found
}
