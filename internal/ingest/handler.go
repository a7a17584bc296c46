// Package ingest runs the inspection pipeline for one uploaded diecast photo.
//
// For each S3 ObjectCreated notification the handler, strictly in order:
//
//  1. derives entity id, position and sequence from the object name
//  2. signals batch-save when the frame opens a group
//  3. downloads the object into invocation-scoped scratch storage
//  4. classifies the image on the inference endpoint
//  5. reports the photo and its NG flag for the entity
//  6. signals finalize when the frame closes a group
//
// Download and inference failures end the invocation with a 500 result.
// Group signals and the photo report only log their failures, unless
// Options.ReportFailureFatal makes a failed photo report a 500 as well.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/team3/diecast-inspect/internal/inference"
	"github.com/team3/diecast-inspect/internal/metrics"
	"github.com/team3/diecast-inspect/internal/photoname"
	"github.com/team3/diecast-inspect/internal/reporting"
	"github.com/team3/diecast-inspect/internal/s3util"
)

// ErrNoRecords is returned for a notification without any record.
var ErrNoRecords = errors.New("notification contains no records")

// Classifier classifies one image payload.
type Classifier interface {
	Classify(ctx context.Context, payload []byte) (inference.Class, error)
}

// Reporter is the reporting service surface used by the pipeline.
type Reporter interface {
	SaveBatch(ctx context.Context) (reporting.Response, error)
	SubmitPhoto(ctx context.Context, entityID string, p reporting.Photo) (reporting.Response, error)
	Finalize(ctx context.Context, entityID string) (reporting.Response, error)
}

// Deps are the handler's collaborators.
type Deps struct {
	Objects    s3util.ObjectGetter
	Classifier Classifier
	Reporter   Reporter
	// MetricsOut receives one EMF line per invocation; stdout when nil.
	MetricsOut io.Writer
}

// Options tune the pipeline. Zero values fall back to defaults.
type Options struct {
	ScratchDir         string
	GroupSize          int
	DownloadTimeout    time.Duration
	ReportFailureFatal bool
	MetricsNamespace   string
}

const (
	defaultGroupSize       = 5
	defaultDownloadTimeout = 10 * time.Second
	defaultNamespace       = "DiecastInspection"
)

// Result is returned to the Lambda host.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Notification is the bucket and key of the object that triggered us.
type Notification struct {
	Bucket string
	Key    string
}

// NotificationFromEvent takes the first record of an S3 event. The decoded
// key is preferred because S3 URL-encodes keys in notifications.
func NotificationFromEvent(e events.S3Event) (Notification, error) {
	if len(e.Records) == 0 {
		return Notification{}, ErrNoRecords
	}
	rec := e.Records[0].S3
	key := rec.Object.URLDecodedKey
	if key == "" {
		key = rec.Object.Key
	}
	return Notification{Bucket: rec.Bucket.Name, Key: key}, nil
}

// Handler processes one notification per call. It holds no per-invocation
// state and is safe for concurrent use.
type Handler struct {
	deps Deps
	opts Options
}

// New creates a Handler.
func New(deps Deps, opts Options) *Handler {
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.GroupSize <= 0 {
		opts.GroupSize = defaultGroupSize
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTimeout
	}
	if opts.MetricsNamespace == "" {
		opts.MetricsNamespace = defaultNamespace
	}
	return &Handler{deps: deps, opts: opts}
}

// Handle is the Lambda entry point. The error is always nil: every failure
// is reported through Result.
func (h *Handler) Handle(ctx context.Context, event events.S3Event) (Result, error) {
	log.Debug().Interface("event", event).Msg("Received event")

	n, err := NotificationFromEvent(event)
	if err != nil {
		log.Error().Err(err).Msg("Error processing event")
		return failure(err), nil
	}
	return h.Process(ctx, n), nil
}

// Process runs the pipeline for one object.
func (h *Handler) Process(ctx context.Context, n Notification) (res Result) {
	start := time.Now()
	rec := metrics.New(h.opts.MetricsNamespace, h.deps.MetricsOut)
	defer rec.Flush()

	logger := log.With().Str("bucket", n.Bucket).Str("key", n.Key).Logger()
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With().Str("requestId", lc.AwsRequestID).Logger()
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error().Err(err).Msg("Error processing event")
			rec.Dimension("Outcome", "failed").Count("Failed")
			res = failure(err)
		}
	}()

	name, err := h.run(ctx, n, logger, rec)
	rec.Duration("DurationMs", time.Since(start))
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Error processing event")
		rec.Dimension("Outcome", "failed").Count("Failed")
		return failure(err)
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("File processed")
	rec.Dimension("Outcome", "processed").Count("Processed")
	return Result{StatusCode: 200, Body: "Processed file: " + name}
}

func failure(err error) Result {
	return Result{StatusCode: 500, Body: "Error: " + err.Error()}
}

func (h *Handler) run(ctx context.Context, n Notification, logger zerolog.Logger, rec *metrics.Recorder) (string, error) {
	meta := photoname.Parse(n.Key)
	if !meta.EntityID.Present {
		logger.Warn().Str("file", meta.DisplayName).Msg("Entity id not found in file name, using default")
	}
	if !meta.Position.Present {
		logger.Warn().Str("file", meta.DisplayName).Msg("Photo position not found in file name, using default")
	}
	entityID := meta.EntityID.OrDefault()
	position := meta.Position.OrDefault()
	rec.Property("entityId", entityID).Property("file", meta.DisplayName)

	logger = logger.With().Str("entityId", entityID).Str("position", position).Logger()
	logger.Info().Str("file", meta.DisplayName).Msg("Processing file")

	if !meta.HasSequence() {
		logger.Warn().Err(meta.SequenceErr).Msg("No sequence number in file name, skipping group signals")
	} else if meta.OpensGroup(h.opts.GroupSize) {
		h.signal(logger, rec, "batch-save", func() (reporting.Response, error) {
			return h.deps.Reporter.SaveBatch(ctx)
		})
	}

	dir, cleanup, err := s3util.NewScratchDir(h.opts.ScratchDir)
	if err != nil {
		return "", err
	}
	defer cleanup()

	dlStart := time.Now()
	dlCtx, cancel := context.WithTimeout(ctx, h.opts.DownloadTimeout)
	localPath, err := s3util.DownloadToDir(dlCtx, h.deps.Objects, n.Bucket, n.Key, dir, meta.DisplayName)
	cancel()
	if err != nil {
		return "", fmt.Errorf("download s3://%s/%s: %w", n.Bucket, n.Key, err)
	}
	rec.Duration("DownloadMs", time.Since(dlStart))

	payload, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", localPath, err)
	}
	rec.Metric("PayloadBytes", float64(len(payload)), metrics.UnitBytes)

	infStart := time.Now()
	class, err := h.deps.Classifier.Classify(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("classify %s: %w", meta.DisplayName, err)
	}
	rec.Duration("InferenceLatencyMs", time.Since(infStart))
	ngFlag := class.NgFlag()
	logger.Info().Stringer("class", class).Int("ngFlag", ngFlag).Msg("Photo classified")

	resp, err := h.deps.Reporter.SubmitPhoto(ctx, entityID, reporting.Photo{
		FileName: meta.DisplayName,
		Data:     payload,
		Position: position,
		NgFlag:   ngFlag,
	})
	switch {
	case err != nil:
		rec.Count("ReportFailures")
		logger.Warn().Err(err).Msg("Photo report failed")
		if h.opts.ReportFailureFatal {
			return "", fmt.Errorf("report %s: %w", meta.DisplayName, err)
		}
	case !resp.OK():
		rec.Count("ReportFailures")
		logger.Warn().Int("statusCode", resp.StatusCode).Str("body", resp.Body).Msg("Photo report rejected")
		if h.opts.ReportFailureFatal {
			return "", fmt.Errorf("report %s: status %d", meta.DisplayName, resp.StatusCode)
		}
	default:
		logger.Info().Int("statusCode", resp.StatusCode).Str("body", resp.Body).Msg("Photo report completed")
	}

	if meta.ClosesGroup(h.opts.GroupSize) {
		h.signal(logger, rec, "finalize", func() (reporting.Response, error) {
			return h.deps.Reporter.Finalize(ctx, entityID)
		})
	}

	return meta.DisplayName, nil
}

// signal sends a group signal whose outcome is only logged.
func (h *Handler) signal(logger zerolog.Logger, rec *metrics.Recorder, name string, call func() (reporting.Response, error)) {
	resp, err := call()
	if err != nil {
		rec.Count("SignalFailures")
		logger.Warn().Err(err).Str("signal", name).Msg("Group signal failed")
		return
	}
	logger.Info().
		Str("signal", name).
		Int("statusCode", resp.StatusCode).
		Str("body", resp.Body).
		Msg("Group signal completed")
}
