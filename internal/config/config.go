package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for tiktok-dl.
type Config struct {
	BaseDir     string          `toml:"base_dir"`
	PolicyPath  string          `toml:"policy_path"`
	DownloadDir string          `toml:"download_dir"`
	LogDir      string          `toml:"log_dir"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Extractor   ExtractorConfig `toml:"extractor"`
	History     HistoryConfig   `toml:"history"`
}

// ScraperConfig represents configuration for the user page scraper.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ScraperConfig struct {
	Type string `toml:"type"` // "html", "ytdlp", or "none"

	// HTML-specific fields (only used when Type == "html")
	UserAgent         string `toml:"user_agent,omitempty"`
	RequestsPerMinute int    `toml:"requests_per_minute,omitempty"`

	// yt-dlp-specific fields (only used when Type == "ytdlp")
	YtdlpPath string `toml:"ytdlp_path,omitempty"`

	TimeoutSeconds int `toml:"timeout_seconds"`
}

// ExtractorConfig represents configuration for the video extractor.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ExtractorConfig struct {
	Type string `toml:"type"` // "ytdlp" or "test"

	// yt-dlp-specific fields (only used when Type == "ytdlp")
	YtdlpPath      string `toml:"ytdlp_path,omitempty"`
	OutputTemplate string `toml:"output_template,omitempty"`

	TimeoutSeconds int `toml:"timeout_seconds"`
}

// HistoryConfig represents configuration for run history storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type         string `toml:"type"`                    // "sqlite" or "memory"
	DataDir      string `toml:"data_dir,omitempty"`      // only used for type=sqlite
	UsernameFile string `toml:"username_file,omitempty"` // path of the downloaded-usernames list
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		PolicyPath:  filepath.Join(baseDir, "config.json"),
		DownloadDir: filepath.Join(baseDir, "videos"),
		LogDir:      filepath.Join(baseDir, "log"),
		Scraper: ScraperConfig{
			Type:           "html",
			TimeoutSeconds: 60,
		},
		Extractor: ExtractorConfig{
			Type:           "ytdlp",
			TimeoutSeconds: 600,
		},
		History: HistoryConfig{
			Type:         "sqlite",
			DataDir:      filepath.Join(baseDir, "db"),
			UsernameFile: filepath.Join(baseDir, "usernames.txt"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
