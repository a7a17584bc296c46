// Package config loads the inspection Lambda configuration from the
// environment. Values are resolved in priority order:
//
//	OS environment -> .env file -> SSM Parameter Store (via NAME_SSM_PARAM)
//
// Defaults reproduce the values the diecast pipeline has always run with,
// so an empty environment yields a working production configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// localEnv is the APP_ENV value that skips SSM resolution.
const localEnv = "local"

// Config is populated once at cold start and never modified afterwards.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"required,oneof=local dev prod"`

	// LogLevel is applied with logging.SetLevel, which falls back to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Inference InferenceConfig
	Report    ReportConfig
	Pipeline  PipelineConfig
}

// InferenceConfig describes the SageMaker endpoint used for classification.
type InferenceConfig struct {
	EndpointName string        `envconfig:"INFERENCE_ENDPOINT_NAME" default:"team3-endpoint2" validate:"required"`
	ContentType  string        `envconfig:"INFERENCE_CONTENT_TYPE" default:"application/x-image" validate:"required"`
	Timeout      time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"10s" validate:"gt=0"`
}

// ReportConfig describes the diecast reporting service.
type ReportConfig struct {
	BaseURL string        `envconfig:"REPORT_BASE_URL" default:"http://18.205.110.55:8080" validate:"required,url"`
	Timeout time.Duration `envconfig:"REPORT_TIMEOUT" default:"10s" validate:"gt=0"`

	// Crop corners sent with every photo. No cropping is performed, these are
	// the placeholder coordinates the reporting service expects.
	CropLT string `envconfig:"PHOTO_CROP_LT" default:"1.1" validate:"required"`
	CropRB string `envconfig:"PHOTO_CROP_RB" default:"8.8" validate:"required"`

	// FailureFatal turns a failed per-photo report into a 500 result.
	FailureFatal bool `envconfig:"REPORT_FAILURE_FATAL" default:"false"`
}

// PipelineConfig holds per-invocation processing knobs.
type PipelineConfig struct {
	GroupSize        int           `envconfig:"GROUP_SIZE" default:"5" validate:"min=1"`
	DownloadTimeout  time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"10s" validate:"gt=0"`
	ScratchDir       string        `envconfig:"SCRATCH_DIR" default:"/tmp" validate:"required"`
	MetricsNamespace string        `envconfig:"METRICS_NAMESPACE" default:"DiecastInspection" validate:"required"`
}

// ConfigError wraps a loading failure with the stage that produced it.
type ConfigError struct {
	Stage string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads .env (if present), resolves *_SSM_PARAM indirections through
// params unless APP_ENV=local, then processes and validates the struct.
// params may be nil when no SSM indirection is configured.
func Load(ctx context.Context, params ParameterGetter) (*Config, error) {
	_ = godotenv.Load()

	if os.Getenv("APP_ENV") != localEnv {
		if err := resolveSSMParams(ctx, params, osEnv{}); err != nil {
			return nil, &ConfigError{Stage: "ssm", Err: err}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Stage: "parse", Err: err}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Stage: "validate", Err: err}
	}
	return &cfg, nil
}
