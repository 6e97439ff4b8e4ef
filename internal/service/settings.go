package service

import (
	"github.com/clio-labs/chronotex/internal/config"
)

// Settings is the client-facing view of the server configuration: corpus
// bounds, retrieval defaults, and the models a client may request.
type Settings struct {
	CorpusStartYear int   `json:"corpus_start_year"`
	CorpusEndYear   int   `json:"corpus_end_year"`
	ChunkSizes      []int `json:"chunk_sizes"`

	DefaultTopK   int `json:"default_top_k"`
	MaxTopK       int `json:"max_top_k"`
	MaxWindowSize int `json:"max_window_size"`

	DefaultModel string `json:"default_model"`
	RerankModel  string `json:"rerank_model"`

	KeywordExpansion bool `json:"keyword_expansion"`
	ObjectStorage    bool `json:"object_storage"`
}

// SettingsService exposes the server configuration to clients
type SettingsService struct {
	cfg *config.Config
}

// NewSettingsService creates a new SettingsService instance
func NewSettingsService(cfg *config.Config) *SettingsService {
	return &SettingsService{cfg: cfg}
}

// Get returns the client-facing settings
func (s *SettingsService) Get() Settings {
	return Settings{
		CorpusStartYear:  s.cfg.CorpusStartYear,
		CorpusEndYear:    s.cfg.CorpusEndYear,
		ChunkSizes:       s.cfg.AvailableLengths,
		DefaultTopK:      s.cfg.DefaultTopK,
		MaxTopK:          s.cfg.MaxTopK,
		MaxWindowSize:    s.cfg.MaxWindowSize,
		DefaultModel:     s.cfg.DefaultModel,
		RerankModel:      s.cfg.RerankModel,
		KeywordExpansion: s.cfg.HasWordVec(),
		ObjectStorage:    s.cfg.HasS3(),
	}
}
