// Package config loads eventflow settings from defaults, an optional YAML file
// and EVENTFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/Lllllllleong/clinicaleventflow/internal/chunker"
	"github.com/Lllllllleong/clinicaleventflow/internal/stitch"
)

// EnvPrefix is prepended to every environment variable, e.g. EVENTFLOW_GCP_PROJECT_ID.
const EnvPrefix = "EVENTFLOW"

type Config struct {
	GCP      GCPConfig      `mapstructure:"gcp" yaml:"gcp"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Service  ServiceConfig  `mapstructure:"service" yaml:"service"`
}

// GCPConfig locates the project. Location is the Document AI multi-region
// ("us" or "eu"); Region hosts the Vertex AI model.
type GCPConfig struct {
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
	Location  string `mapstructure:"location" yaml:"location"`
	Region    string `mapstructure:"region" yaml:"region"`
}

type OCRConfig struct {
	ProcessorID       string  `mapstructure:"processor_id" yaml:"processor_id"`
	PageLimit         int     `mapstructure:"page_limit" yaml:"page_limit"`
	Concurrency       int     `mapstructure:"concurrency" yaml:"concurrency"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ModelConfig selects the Gemini model. DirectiveFile optionally replaces the
// built-in extraction prompt.
type ModelConfig struct {
	Name          string `mapstructure:"name" yaml:"name"`
	DirectiveFile string `mapstructure:"directive_file" yaml:"directive_file"`
}

type PipelineConfig struct {
	Policy    string        `mapstructure:"policy" yaml:"policy"`
	Separator string        `mapstructure:"separator" yaml:"separator"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServiceConfig is only read by the cloud function.
type ServiceConfig struct {
	OutputBucket     string `mapstructure:"output_bucket" yaml:"output_bucket"`
	Collection       string `mapstructure:"collection" yaml:"collection"`
	WorkflowID       string `mapstructure:"workflow_id" yaml:"workflow_id"`
	WorkflowLocation string `mapstructure:"workflow_location" yaml:"workflow_location"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		GCP: GCPConfig{
			Location: "us",
			Region:   "us-central1",
		},
		OCR: OCRConfig{
			PageLimit:   chunker.DefaultPageLimit,
			Concurrency: 4,
		},
		Model: ModelConfig{
			Name: "gemini-1.5-pro",
		},
		Pipeline: PipelineConfig{
			Policy:    string(stitch.PolicyGapMarker),
			Separator: stitch.DefaultSeparator,
			Timeout:   10 * time.Minute,
		},
		Service: ServiceConfig{
			Collection:       "extraction_jobs",
			WorkflowLocation: "us-central1",
		},
	}
}

// Load reads cfgFile, or eventflow.yaml from . or $HOME/.eventflow when cfgFile
// is empty. A missing default file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("eventflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.eventflow")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("gcp.project_id", d.GCP.ProjectID)
	v.SetDefault("gcp.location", d.GCP.Location)
	v.SetDefault("gcp.region", d.GCP.Region)
	v.SetDefault("ocr.processor_id", d.OCR.ProcessorID)
	v.SetDefault("ocr.page_limit", d.OCR.PageLimit)
	v.SetDefault("ocr.concurrency", d.OCR.Concurrency)
	v.SetDefault("ocr.requests_per_minute", d.OCR.RequestsPerMinute)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.directive_file", d.Model.DirectiveFile)
	v.SetDefault("pipeline.policy", d.Pipeline.Policy)
	v.SetDefault("pipeline.separator", d.Pipeline.Separator)
	v.SetDefault("pipeline.timeout", d.Pipeline.Timeout)
	v.SetDefault("service.output_bucket", d.Service.OutputBucket)
	v.SetDefault("service.collection", d.Service.Collection)
	v.SetDefault("service.workflow_id", d.Service.WorkflowID)
	v.SetDefault("service.workflow_location", d.Service.WorkflowLocation)
}

// Validate checks the settings needed to run the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.GCP.ProjectID == "" {
		errs = append(errs, errors.New("gcp.project_id is required"))
	}
	if c.GCP.Location == "" || c.GCP.Region == "" {
		errs = append(errs, errors.New("gcp.location and gcp.region are required"))
	}
	if c.OCR.ProcessorID == "" {
		errs = append(errs, errors.New("ocr.processor_id is required"))
	}
	if c.OCR.PageLimit < 1 || c.OCR.PageLimit > chunker.DefaultPageLimit {
		errs = append(errs, fmt.Errorf("ocr.page_limit must be between 1 and %d, got %d", chunker.DefaultPageLimit, c.OCR.PageLimit))
	}
	if c.OCR.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("ocr.concurrency must be at least 1, got %d", c.OCR.Concurrency))
	}
	if c.OCR.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ocr.requests_per_minute must not be negative"))
	}
	if _, err := stitch.ParsePolicy(c.Pipeline.Policy); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.policy: %w", err))
	}
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.timeout must be positive, got %s", c.Pipeline.Timeout))
	}
	return errors.Join(errs...)
}

// ValidateService additionally checks the cloud function settings.
func (c *Config) ValidateService() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Service.OutputBucket == "" {
		errs = append(errs, errors.New("service.output_bucket is required"))
	}
	if c.Service.Collection == "" {
		errs = append(errs, errors.New("service.collection is required"))
	}
	return errors.Join(errs...)
}

// Directive returns the contents of Model.DirectiveFile, or "" when unset.
func (c *Config) Directive() (string, error) {
	if c.Model.DirectiveFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Model.DirectiveFile)
	if err != nil {
		return "", fmt.Errorf("failed to read directive file: %w", err)
	}
	return string(data), nil
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# eventflow configuration
# Every key can be overridden by an environment variable, for example
# EVENTFLOW_GCP_PROJECT_ID or EVENTFLOW_OCR_PROCESSOR_ID.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
