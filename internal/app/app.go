// Package app is the application layer between the CLI and the core
// packages. It constructs all dependencies from config and exposes the
// high-level operations the commands call.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/config"
	"github.com/CasualYT31/tiktok-dl/internal/extract"
	tikfs "github.com/CasualYT31/tiktok-dl/internal/fs"
	"github.com/CasualYT31/tiktok-dl/internal/history"
	"github.com/CasualYT31/tiktok-dl/internal/policy"
	"github.com/CasualYT31/tiktok-dl/internal/scrape"
	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

// App wires the policy store, resolver, download driver, and run history
// together. The caller must call Close when done.
type App struct {
	cfg       *config.Config
	policies  *policy.Store
	resolver  *tiktok.Resolver
	extractor tiktok.Extractor
	history   history.Store
	notifier  tiktok.Notifier
	logger    tiktok.Logger
	logFile   *os.File
}

// DownloadOptions adjusts a download run.
type DownloadOptions struct {
	// Users restricts the run to links owned by these users.
	Users []string
	// Split is the number of parallel download workers.
	Split int
	// NoHistory skips recording the run.
	NoHistory bool
	// IgnoreLinks are removed from the resolved set for this run only,
	// without touching any user's configured ignore list.
	IgnoreLinks []string
	// DeleteAfter holds extra inputs whose files are deleted once the run
	// completes. A saved HTML page also loses its assets directory.
	DeleteAfter []string
}

// New creates a fully wired App from the given config.
func New(cfg *config.Config) (*App, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	notifier := tiktok.NewStreamNotifier(os.Stdout)

	policies := policy.NewStore(notifier)
	if err := policies.Load(cfg.PolicyPath); err != nil {
		// A config that does not exist yet just means an empty store.
		if !errors.Is(err, fs.ErrNotExist) {
			logFile.Close()
			return nil, fmt.Errorf("loading user config: %w", err)
		}
		log.Info("user config not found, starting empty", "path", cfg.PolicyPath)
	}

	fetcher, err := scrape.NewFetcherFromConfig(cfg.Scraper, log)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating scraper: %w", err)
	}

	extractor, err := extract.NewExtractorFromConfig(cfg.Extractor, log)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating extractor: %w", err)
	}

	hist, err := history.NewStoreFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history store: %w", err)
	}
	if err := hist.CheckMigrations(); err != nil {
		hist.Close()
		logFile.Close()
		return nil, fmt.Errorf("history database schema out of date: %w", err)
	}

	resolver := tiktok.NewResolver(fetcher, tikfs.NewOSFileReader(), policies, notifier, log)

	return &App{
		cfg:       cfg,
		policies:  policies,
		resolver:  resolver,
		extractor: extractor,
		history:   hist,
		notifier:  notifier,
		logger:    log,
		logFile:   logFile,
	}, nil
}

// buildWhitelist converts raw usernames into the resolver's whitelist form.
func buildWhitelist(users []string) (map[tiktok.Username]struct{}, error) {
	if len(users) == 0 {
		return nil, nil
	}
	whitelist := make(map[tiktok.Username]struct{}, len(users))
	for _, raw := range users {
		user := tiktok.NewUsername(raw)
		if !user.IsValid() {
			return nil, &tiktok.InvalidUsernameError{Username: raw}
		}
		whitelist[user] = struct{}{}
	}
	return whitelist, nil
}

// Resolve turns raw inputs into the set of links and users they denote,
// without downloading anything.
func (a *App) Resolve(ctx context.Context, inputs []string, users []string) (*tiktok.ResolveResult, error) {
	whitelist, err := buildWhitelist(users)
	if err != nil {
		return nil, err
	}
	return a.resolver.Resolve(ctx, inputs, whitelist)
}

// Download resolves inputs and downloads every resulting link. The run is
// recorded in history unless opts.NoHistory is set.
func (a *App) Download(ctx context.Context, inputs []string, opts DownloadOptions) (*tiktok.DownloadResult, error) {
	resolved, err := a.Resolve(ctx, allInputs(inputs, opts), opts.Users)
	if err != nil {
		return nil, err
	}
	links := dropIgnored(resolved, opts.IgnoreLinks)

	downloader := tiktok.NewDownloader(a.extractor, a.policies, a.cfg.DownloadDir,
		opts.Split, a.notifier, a.logger)

	started := time.Now()
	result, err := downloader.Run(ctx, links)
	if err != nil {
		return nil, err
	}
	finished := time.Now()

	if !opts.NoHistory {
		a.recordRun(ctx, started, finished, result)
	}
	a.deleteInputs(opts.DeleteAfter, resolved.HTMLSources)
	return result, nil
}

// List resolves inputs and writes the resulting links to path, one per
// line, instead of downloading anything. Returns the number of links
// written. A failed write leaves any DeleteAfter files untouched.
func (a *App) List(ctx context.Context, inputs []string, path string, opts DownloadOptions) (int, error) {
	resolved, err := a.Resolve(ctx, allInputs(inputs, opts), opts.Users)
	if err != nil {
		return 0, err
	}
	links := dropIgnored(resolved, opts.IgnoreLinks)

	if err := writeLinkFile(path, links); err != nil {
		if len(opts.DeleteAfter) > 0 {
			a.notifier.Notice("Failed to write links to %q. Will not delete any input files.", path)
		}
		return 0, fmt.Errorf("writing link list: %w", err)
	}

	a.deleteInputs(opts.DeleteAfter, resolved.HTMLSources)
	return len(links), nil
}

// allInputs combines the positional inputs with the DeleteAfter inputs,
// which are resolved like any other.
func allInputs(inputs []string, opts DownloadOptions) []string {
	if len(opts.DeleteAfter) == 0 {
		return inputs
	}
	combined := make([]string, 0, len(inputs)+len(opts.DeleteAfter))
	combined = append(combined, inputs...)
	combined = append(combined, opts.DeleteAfter...)
	return combined
}

// dropIgnored removes the run-only ignored links from the resolved set and
// returns what remains, sorted. Unrecognised ignore values are skipped.
func dropIgnored(resolved *tiktok.ResolveResult, ignores []string) []tiktok.Link {
	for _, raw := range ignores {
		if link := tiktok.NewLink(raw); link.IsValid() {
			delete(resolved.Links, link)
		}
	}
	return resolved.SortedLinks()
}

func writeLinkFile(path string, links []tiktok.Link) error {
	w, err := tikfs.NewAtomicWriter(path)
	if err != nil {
		return err
	}
	for _, link := range links {
		if _, err := fmt.Fprintln(w, link.String()); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Commit()
}

// deleteInputs removes the files named by a download's DeleteAfter inputs.
// Saved HTML pages also lose their sibling assets directory, the
// "name_files" folder a browser saves next to "name.html". Failures are
// reported and skipped.
func (a *App) deleteInputs(paths []string, htmlSources map[string]int) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			a.notifier.Notice("Failed to delete file %q.", path)
			a.logger.Warn("deleting input file", "path", path, "error", err)
			continue
		}
		if _, ok := htmlSources[path]; !ok {
			continue
		}
		assets := strings.TrimSuffix(path, filepath.Ext(path)) + "_files"
		if err := os.RemoveAll(assets); err != nil {
			a.notifier.Notice("Failed to delete HTML files folder %q.", assets)
			a.logger.Warn("deleting assets folder", "path", assets, "error", err)
		}
	}
}

// recordRun stores the run and updates the username list. History failures
// are logged, not returned; the videos are already on disk at this point.
func (a *App) recordRun(ctx context.Context, started, finished time.Time, result *tiktok.DownloadResult) {
	id, err := a.history.RecordRun(ctx, "download", started, finished, result)
	if err != nil {
		a.logger.Warn("recording run history", "error", err)
	} else {
		a.logger.Info("recorded run", "run", id)
	}

	if a.cfg.History.UsernameFile == "" {
		a.logger.Debug("no username file configured, skipping update")
		return
	}

	owners := make(map[tiktok.Username]struct{})
	for _, link := range result.Succeeded {
		if owner, err := link.Owner(); err == nil {
			owners[owner] = struct{}{}
		}
	}
	if len(owners) == 0 {
		return
	}
	users := make([]tiktok.Username, 0, len(owners))
	for owner := range owners {
		users = append(users, owner)
	}
	if err := history.UpdateUsernameFile(a.cfg.History.UsernameFile, users); err != nil {
		a.logger.Warn("updating username list", "error", err)
	}
}

// History returns the most recent download runs, newest first.
func (a *App) History(ctx context.Context, limit int) ([]history.Run, error) {
	return a.history.Runs(ctx, limit)
}

// Property is the closed set of user configuration fields the generic
// setter accepts. The ignore list is intentionally absent; it is only
// reachable through ToggleIgnore.
type Property string

const (
	PropertyNotBefore Property = "notbefore"
	PropertyComment   Property = "comment"
)

// ParseProperty maps a raw property name onto the closed Property set.
func ParseProperty(raw string) (Property, error) {
	switch p := Property(raw); p {
	case PropertyNotBefore, PropertyComment:
		return p, nil
	default:
		return "", fmt.Errorf("unknown property %q (expected notbefore or comment)", raw)
	}
}

// SetProperty sets a user's configuration property and persists the store.
func (a *App) SetProperty(user string, property Property, value string) error {
	switch property {
	case PropertyNotBefore:
		if err := a.policies.SetNotBefore(user, value); err != nil {
			return err
		}
	case PropertyComment:
		if err := a.policies.SetComment(user, value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown property %q (expected notbefore or comment)", property)
	}
	return a.savePolicies()
}

// ToggleIgnore flips a link in its owner's ignore set and persists the
// store. Returns true when the link is now ignored.
func (a *App) ToggleIgnore(link string) (bool, error) {
	added, err := a.policies.ToggleIgnoreLink(link)
	if err != nil {
		return false, err
	}
	return added, a.savePolicies()
}

// DeleteUser removes a user's configuration and persists the store.
func (a *App) DeleteUser(user string) error {
	if err := a.policies.DeleteUser(user); err != nil {
		return err
	}
	return a.savePolicies()
}

// ListUsers returns the configured usernames matching filter, sorted.
// An empty filter matches everything.
func (a *App) ListUsers(filter string) ([]tiktok.Username, error) {
	if filter == "" {
		filter = ".*"
	}
	return a.policies.Users(filter)
}

// ShowUser renders a user's configuration block.
func (a *App) ShowUser(user string) (string, error) {
	return a.policies.Render(user)
}

func (a *App) savePolicies() error {
	if err := a.policies.Save(a.cfg.PolicyPath); err != nil {
		return fmt.Errorf("saving user config: %w", err)
	}
	return nil
}

// Close releases the history store and the log file.
func (a *App) Close() error {
	var firstErr error

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = fmt.Errorf("closing history store: %w", err)
		}
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}
