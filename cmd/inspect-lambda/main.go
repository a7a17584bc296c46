// Package main is the Lambda entry point for diecast photo inspection.
//
// Triggered by S3 ObjectCreated events on the photo bucket. Each frame is
// classified on the SageMaker endpoint and reported to the diecast service;
// see internal/ingest for the pipeline.
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/team3/diecast-inspect/internal/config"
	"github.com/team3/diecast-inspect/internal/ingest"
	"github.com/team3/diecast-inspect/internal/lambdaboot"
	"github.com/team3/diecast-inspect/internal/logging"
)

var (
	handler   *ingest.Handler
	coldStart = true
)

func init() {
	initStart := time.Now()
	logging.Init()

	clients := lambdaboot.InitAWS()
	cfg, err := config.Load(context.Background(), clients.SSM)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.SetLevel(cfg.LogLevel)

	pipeline := lambdaboot.NewPipeline(clients, cfg, nil)
	handler = pipeline.Handler

	startup := lambdaboot.StartupLog("inspect-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Endpoint("inference", pipeline.Classifier.EndpointName()).
		Endpoint("report", pipeline.Reporter.BaseURL()).
		Feature("reportFailureFatal", cfg.Report.FailureFatal).
		Config("groupSize", strconv.Itoa(cfg.Pipeline.GroupSize)).
		Config("scratchDir", cfg.Pipeline.ScratchDir).
		Config("environment", cfg.Environment)
	if p := os.Getenv("REPORT_BASE_URL_SSM_PARAM"); p != "" {
		startup.SSMParam("REPORT_BASE_URL", p)
	}
	startup.Log()
}

func handle(ctx context.Context, event events.S3Event) (ingest.Result, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "inspect-lambda").Msg("Cold start, first invocation")
	}
	return handler.Handle(ctx, event)
}

func main() {
	lambda.Start(handle)
}
