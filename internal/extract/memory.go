package extract

import (
	"context"
	"sync"

	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

// MemoryExtractor records downloads in memory instead of touching the
// network. Used for the "test" extractor type and in tests.
type MemoryExtractor struct {
	mu        sync.Mutex
	downloads map[tiktok.Link]tiktok.ExtractOptions
}

// NewMemoryExtractor creates an in-memory extractor.
func NewMemoryExtractor() *MemoryExtractor {
	return &MemoryExtractor{
		downloads: make(map[tiktok.Link]tiktok.ExtractOptions),
	}
}

// Download records the link and the options it was requested with.
func (m *MemoryExtractor) Download(_ context.Context, link tiktok.Link, opts tiktok.ExtractOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[link] = opts
	return nil
}

// Downloaded reports whether link has been downloaded.
func (m *MemoryExtractor) Downloaded(link tiktok.Link) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.downloads[link]
	return ok
}

// Count returns the number of recorded downloads.
func (m *MemoryExtractor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.downloads)
}

// Options returns the options the link was downloaded with.
func (m *MemoryExtractor) Options(link tiktok.Link) (tiktok.ExtractOptions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opts, ok := m.downloads[link]
	return opts, ok
}
