// Package extract downloads individual videos. Implementations satisfy
// tiktok.Extractor; the production backend shells out to yt-dlp.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

const (
	defaultYtdlpPath       = "yt-dlp"
	defaultDownloadTimeout = 10 * time.Minute
	defaultOutputTemplate  = "%(id)s.%(ext)s"
)

// Sentinel errors reported by the yt-dlp extractor.
var (
	ErrVideoUnavailable  = errors.New("video is unavailable")
	ErrNetworkTimeout    = errors.New("network timeout")
	ErrYtdlpNotInstalled = errors.New("yt-dlp is not installed or not in PATH")
)

// DownloadError wraps a download failure with the link it was for.
type DownloadError struct {
	Link tiktok.Link
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.Link, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// YtdlpExtractor downloads videos by running yt-dlp as a subprocess.
type YtdlpExtractor struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string

	// Timeout is the maximum time to wait for one download. Defaults to
	// 10 minutes.
	Timeout time.Duration

	// OutputTemplate is the yt-dlp output filename template.
	OutputTemplate string

	// ExtraArgs are additional arguments to pass to yt-dlp.
	ExtraArgs []string

	Logger tiktok.Logger
}

// NewYtdlpExtractor creates a yt-dlp based extractor.
func NewYtdlpExtractor() *YtdlpExtractor {
	return &YtdlpExtractor{
		Path:           defaultYtdlpPath,
		Timeout:        defaultDownloadTimeout,
		OutputTemplate: defaultOutputTemplate,
		Logger:         tiktok.NewNopLogger(),
	}
}

// Download fetches one video into opts.DestDir. A non-empty opts.NotBefore
// is passed through so that videos uploaded before that date are skipped.
func (y *YtdlpExtractor) Download(ctx context.Context, link tiktok.Link, opts tiktok.ExtractOptions) error {
	args := []string{
		"--no-warnings",
		"--no-progress",
	}
	if opts.DestDir != "" {
		args = append(args, "-P", opts.DestDir)
	}
	if y.OutputTemplate != "" {
		args = append(args, "-o", y.OutputTemplate)
	}
	if opts.NotBefore != "" && opts.NotBefore.IsValid() {
		args = append(args, "--dateafter", opts.NotBefore.String())
	}
	args = append(args, y.ExtraArgs...)
	args = append(args, link.String())

	timeout := y.Timeout
	if timeout == 0 {
		timeout = defaultDownloadTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, y.path(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err == nil {
		y.Logger.Debug("downloaded video", "link", link.String(), "elapsed", time.Since(start))
		return nil
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		return &DownloadError{Link: link, Err: ErrNetworkTimeout}
	}
	if cmdCtx.Err() == context.Canceled {
		return &DownloadError{Link: link, Err: context.Canceled}
	}

	errMsg := stderr.String()
	if strings.Contains(errMsg, "not found") ||
		strings.Contains(errMsg, "Unable to find video") ||
		strings.Contains(errMsg, "unavailable") {
		return &DownloadError{Link: link, Err: ErrVideoUnavailable}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &DownloadError{Link: link,
			Err: fmt.Errorf("yt-dlp exited with %d: %s", exitErr.ExitCode(), errMsg)}
	}
	return &DownloadError{Link: link, Err: fmt.Errorf("yt-dlp failed: %w", err)}
}

// CheckInstalled verifies that yt-dlp is available.
func (y *YtdlpExtractor) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, y.path(), "--version")
	if err := cmd.Run(); err != nil {
		return ErrYtdlpNotInstalled
	}
	return nil
}

func (y *YtdlpExtractor) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}
