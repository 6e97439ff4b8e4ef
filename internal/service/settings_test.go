package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clio-labs/chronotex/internal/config"
)

func TestSettingsService_Get(t *testing.T) {
	cfg := testConfig()
	cfg.AvailableLengths = []int{500, 2000, 3000}
	cfg.WordVecURL = "http://wordvec:8000"

	settings := NewSettingsService(cfg).Get()

	assert.Equal(t, 1948, settings.CorpusStartYear)
	assert.Equal(t, 1979, settings.CorpusEndYear)
	assert.Equal(t, []int{500, 2000, 3000}, settings.ChunkSizes)
	assert.Equal(t, 10, settings.DefaultTopK)
	assert.Equal(t, 100, settings.MaxTopK)
	assert.Equal(t, "gpt-4o", settings.DefaultModel)
	assert.Equal(t, "gpt-4o-mini", settings.RerankModel)
	assert.True(t, settings.KeywordExpansion)
	assert.False(t, settings.ObjectStorage)
}

func TestSettingsService_Get_ObjectStorageConfigured(t *testing.T) {
	cfg := &config.Config{
		S3Endpoint:  "http://minio:9000",
		S3AccessKey: "access",
		S3SecretKey: "secret",
	}

	settings := NewSettingsService(cfg).Get()

	assert.True(t, settings.ObjectStorage)
	assert.False(t, settings.KeywordExpansion)
}
