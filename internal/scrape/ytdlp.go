package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
)

// YtdlpFetcher lists a user's videos by running yt-dlp as a subprocess in
// flat-playlist mode. Slower than the HTML fetcher but able to walk the full
// video history of a user.
type YtdlpFetcher struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the maximum time to wait for yt-dlp. Defaults to 10 minutes.
	Timeout time.Duration

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string

	Logger tiktok.Logger
}

// NewYtdlpFetcher creates a yt-dlp based page fetcher.
func NewYtdlpFetcher() *YtdlpFetcher {
	return &YtdlpFetcher{
		Path:    defaultYtdlpPath,
		Timeout: defaultYtdlpTimeout,
		Logger:  tiktok.NewNopLogger(),
	}
}

// FetchLinks lists every video of user that yt-dlp can see, sorted.
func (y *YtdlpFetcher) FetchLinks(ctx context.Context, user tiktok.Username) ([]tiktok.Link, error) {
	if err := y.checkInstalled(ctx); err != nil {
		return nil, err
	}

	args := []string{
		"--flat-playlist",
		"-J", // JSON output
		"--no-warnings",
	}
	args = append(args, y.ExtraArgs...)
	args = append(args, "https://www.tiktok.com/@"+user.String())

	timeout := y.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, y.path(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, &FetchError{Source: "ytdlp", User: user.String(), Err: ErrNetworkTimeout}
		}
		if cmdCtx.Err() == context.Canceled {
			return nil, &FetchError{Source: "ytdlp", User: user.String(), Err: context.Canceled}
		}

		// Check for common error patterns in stderr
		errMsg := stderr.String()
		if strings.Contains(errMsg, "not found") || strings.Contains(errMsg, "does not exist") {
			return nil, &FetchError{Source: "ytdlp", User: user.String(), Err: ErrUserNotFound}
		}
		if strings.Contains(errMsg, "rate") || strings.Contains(errMsg, "429") {
			return nil, &FetchError{Source: "ytdlp", User: user.String(), Err: ErrRateLimited}
		}

		return nil, &FetchError{Source: "ytdlp", User: user.String(),
			Err: fmt.Errorf("yt-dlp failed: %w: %s", err, errMsg)}
	}

	links, err := ParseYtdlpPlaylist(stdout.Bytes(), user)
	if err != nil {
		return nil, &FetchError{Source: "ytdlp", User: user.String(), Err: err}
	}
	y.Logger.Debug("listed user videos", "user", user.String(), "links", len(links))
	return links, nil
}

// checkInstalled verifies that yt-dlp is available.
func (y *YtdlpFetcher) checkInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, y.path(), "--version")
	if err := cmd.Run(); err != nil {
		return &FetchError{Source: "ytdlp", User: "", Err: ErrYtdlpNotInstalled}
	}
	return nil
}

func (y *YtdlpFetcher) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// ytdlpPlaylist represents yt-dlp's JSON output for a user page.
type ytdlpPlaylist struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []ytdlpEntry `json:"entries"`
}

// ytdlpEntry represents a single video in yt-dlp's JSON output.
type ytdlpEntry struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ParseYtdlpPlaylist converts yt-dlp's flat-playlist JSON into canonical
// video links owned by user. Entries without a usable video ID are skipped.
func ParseYtdlpPlaylist(data []byte, user tiktok.Username) ([]tiktok.Link, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	found := make(map[tiktok.Link]struct{}, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		link := tiktok.NewLink(entry.URL)
		if !link.IsValid() && entry.ID != "" {
			link = tiktok.NewLink(fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", user, entry.ID))
		}
		if !link.IsValid() {
			continue
		}
		if owner, err := link.Owner(); err != nil || owner != user {
			continue
		}
		found[link] = struct{}{}
	}

	links := make([]tiktok.Link, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	return links, nil
}
