package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Dialects.Target = "sqlite"
	cfg.Processing.Concurrency = 0
	cfg.DataQuality.SimilarityThreshold = 1.5
	cfg.Output.Format = "xml"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), `unsupported dialect "sqlite"`)
}

func TestValidate_DisabledInferenceSkipsOracleChecks(t *testing.T) {
	cfg := Default()
	cfg.Inference.Enabled = false
	cfg.Inference.Endpoint = ""
	cfg.Inference.RetryAttempts = 0
	assert.NoError(t, cfg.Validate())
}

func TestIsExcluded(t *testing.T) {
	cfg := Default()
	cfg.DataQuality.ExcludeColumns = []string{"updated_at"}
	assert.True(t, cfg.IsExcluded("UPDATED_AT"))
	assert.False(t, cfg.IsExcluded("created_at"))
}

func TestValues(t *testing.T) {
	values := Default().Values()
	assert.Equal(t, 20, values["processing.sample_size"])
	assert.Equal(t, 0.8, values["data_quality.similarity_threshold"])
	assert.Equal(t, 3, values["inference.retry_attempts"])
}
