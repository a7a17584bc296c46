// Package lambdaboot holds the cold-start wiring shared by the inspection
// entry points: AWS config, SDK clients and the startup log.
//
// Outbound calls are single-attempt by contract, so every client built here
// uses aws.NopRetryer instead of the SDK's default retry policy.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/team3/diecast-inspect/internal/logging"
)

// AWSClients holds the SDK clients used by the inspection pipeline.
type AWSClients struct {
	Config    aws.Config
	S3        *s3.Client
	SSM       *ssm.Client
	Inference *sagemakerruntime.Client
}

// LoadAWSConfig loads the default AWS config with retries disabled.
func LoadAWSConfig(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
}

// InitAWS loads the AWS config and creates all clients. Fatals on error.
func InitAWS() AWSClients {
	cfg, err := LoadAWSConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return NewClients(cfg)
}

// NewClients creates the pipeline's SDK clients from cfg.
func NewClients(cfg aws.Config) AWSClients {
	return AWSClients{
		Config:    cfg,
		S3:        s3.NewFromConfig(cfg),
		SSM:       ssm.NewFromConfig(cfg),
		Inference: sagemakerruntime.NewFromConfig(cfg),
	}
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
