package extract

import (
	"fmt"
	"time"

	"github.com/CasualYT31/tiktok-dl/internal/config"
	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

// NewExtractorFromConfig creates an Extractor implementation based on the
// extractor config type.
func NewExtractorFromConfig(cfg config.ExtractorConfig, logger tiktok.Logger) (tiktok.Extractor, error) {
	switch cfg.Type {
	case "", "ytdlp":
		extractor := NewYtdlpExtractor()
		if cfg.YtdlpPath != "" {
			extractor.Path = cfg.YtdlpPath
		}
		if cfg.OutputTemplate != "" {
			extractor.OutputTemplate = cfg.OutputTemplate
		}
		if cfg.TimeoutSeconds > 0 {
			extractor.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		if logger != nil {
			extractor.Logger = logger
		}
		return extractor, nil
	case "test":
		return NewMemoryExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extractor type: %s", cfg.Type)
	}
}
