package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config is the immutable run configuration. It is passed by value to every
// component; workers never read global state.
type Config struct {
	Dialects    Dialects    `mapstructure:"dialects" yaml:"dialects"`
	Processing  Processing  `mapstructure:"processing" yaml:"processing"`
	DataQuality DataQuality `mapstructure:"data_quality" yaml:"data_quality"`
	Inference   Inference   `mapstructure:"inference" yaml:"inference"`
	Output      Output      `mapstructure:"output" yaml:"output"`
}

type Dialects struct {
	Source string `mapstructure:"source" yaml:"source"`
	Target string `mapstructure:"target" yaml:"target"`
}

type Processing struct {
	SampleSize  int      `mapstructure:"sample_size" yaml:"sample_size"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	Extensions  []string `mapstructure:"extensions" yaml:"extensions"`
}

type DataQuality struct {
	SimilarityThreshold float64  `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	FuzzyRowCeiling     int      `mapstructure:"fuzzy_row_ceiling" yaml:"fuzzy_row_ceiling"`
	ExcludeColumns      []string `mapstructure:"exclude_columns" yaml:"exclude_columns"`
}

// Inference configures the optional oracle; Endpoint is any OpenAI compatible
// chat completion API, such as a local Ollama server.
type Inference struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint      string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model         string        `mapstructure:"model" yaml:"model"`
	APIKey        string        `mapstructure:"api_key" yaml:"-"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	Backoff       time.Duration `mapstructure:"backoff" yaml:"backoff"`
	MaxTokens     int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature   float32       `mapstructure:"temperature" yaml:"temperature"`
}

type Output struct {
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Dialects: Dialects{Source: "postgres", Target: "oracle"},
		Processing: Processing{
			SampleSize:  20,
			Concurrency: 4,
			Extensions:  []string{".sql", ".txt"},
		},
		DataQuality: DataQuality{
			SimilarityThreshold: 0.8,
			FuzzyRowCeiling:     5000,
		},
		Inference: Inference{
			Enabled:       true,
			Endpoint:      "http://localhost:11434/v1",
			Model:         "llama3:8b",
			Timeout:       10 * time.Minute,
			RetryAttempts: 3,
			Backoff:       2 * time.Second,
			MaxTokens:     16384,
			Temperature:   0.1,
		},
		Output: Output{Format: "json"},
	}
}

// Values flattens Default into viper style keys.
func (c Config) Values() map[string]interface{} {
	return map[string]interface{}{
		"dialects.source":                   c.Dialects.Source,
		"dialects.target":                   c.Dialects.Target,
		"processing.sample_size":            c.Processing.SampleSize,
		"processing.concurrency":            c.Processing.Concurrency,
		"processing.extensions":             c.Processing.Extensions,
		"data_quality.similarity_threshold": c.DataQuality.SimilarityThreshold,
		"data_quality.fuzzy_row_ceiling":    c.DataQuality.FuzzyRowCeiling,
		"data_quality.exclude_columns":      c.DataQuality.ExcludeColumns,
		"inference.enabled":                 c.Inference.Enabled,
		"inference.endpoint":                c.Inference.Endpoint,
		"inference.model":                   c.Inference.Model,
		"inference.api_key":                 c.Inference.APIKey,
		"inference.timeout":                 c.Inference.Timeout,
		"inference.retry_attempts":          c.Inference.RetryAttempts,
		"inference.backoff":                 c.Inference.Backoff,
		"inference.max_tokens":              c.Inference.MaxTokens,
		"inference.temperature":             c.Inference.Temperature,
		"output.format":                     c.Output.Format,
	}
}

var dialects = []string{"postgres", "oracle", "mysql", "mssql"}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var err error
	for _, d := range []struct{ name, value string }{{"dialects.source", c.Dialects.Source}, {"dialects.target", c.Dialects.Target}} {
		if !knownDialect(d.value) {
			err = multierr.Append(err, fmt.Errorf("%s: unsupported dialect %q (want one of %s)", d.name, d.value, strings.Join(dialects, ", ")))
		}
	}
	if c.Processing.SampleSize < 1 {
		err = multierr.Append(err, fmt.Errorf("processing.sample_size must be positive, got %d", c.Processing.SampleSize))
	}
	if c.Processing.Concurrency < 1 {
		err = multierr.Append(err, fmt.Errorf("processing.concurrency must be positive, got %d", c.Processing.Concurrency))
	}
	if t := c.DataQuality.SimilarityThreshold; t <= 0 || t > 1 {
		err = multierr.Append(err, fmt.Errorf("data_quality.similarity_threshold must be in (0, 1], got %v", t))
	}
	if c.DataQuality.FuzzyRowCeiling < 0 {
		err = multierr.Append(err, fmt.Errorf("data_quality.fuzzy_row_ceiling must not be negative, got %d", c.DataQuality.FuzzyRowCeiling))
	}
	if c.Inference.Enabled {
		if c.Inference.RetryAttempts < 1 {
			err = multierr.Append(err, fmt.Errorf("inference.retry_attempts must be positive, got %d", c.Inference.RetryAttempts))
		}
		if c.Inference.Timeout <= 0 {
			err = multierr.Append(err, fmt.Errorf("inference.timeout must be positive, got %s", c.Inference.Timeout))
		}
		if c.Inference.Endpoint == "" {
			err = multierr.Append(err, fmt.Errorf("inference.endpoint is required when inference is enabled"))
		}
	}
	switch c.Output.Format {
	case "json", "yaml":
	default:
		err = multierr.Append(err, fmt.Errorf("output.format: unsupported format %q (want json or yaml)", c.Output.Format))
	}
	return err
}

func knownDialect(name string) bool {
	for _, d := range dialects {
		if d == name {
			return true
		}
	}
	return false
}

// IsExcluded reports whether column is on the comparison exclusion list.
func (c Config) IsExcluded(column string) bool {
	for _, excluded := range c.DataQuality.ExcludeColumns {
		if strings.EqualFold(excluded, column) {
			return true
		}
	}
	return false
}
