// Package scrape fetches the publicly visible video links of a user's page.
//
// TikTok only serves a subset of a user's videos without scrolling, so
// fetchers report what the page exposes rather than the full history. All
// fetchers implement tiktok.PageFetcher.
package scrape

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by fetchers. Callers match them with errors.Is.
var (
	ErrUserNotFound      = errors.New("user page not found")
	ErrRateLimited       = errors.New("rate limited by tiktok")
	ErrNetworkTimeout    = errors.New("network timeout")
	ErrYtdlpNotInstalled = errors.New("yt-dlp is not installed or not in PATH")
)

// FetchError wraps a fetch failure with the user whose page was requested.
type FetchError struct {
	Source string
	User   string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetching page of %s: %v", e.Source, e.User, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
