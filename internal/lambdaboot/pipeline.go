package lambdaboot

import (
	"io"

	"github.com/team3/diecast-inspect/internal/config"
	"github.com/team3/diecast-inspect/internal/inference"
	"github.com/team3/diecast-inspect/internal/ingest"
	"github.com/team3/diecast-inspect/internal/reporting"
)

// Pipeline is the wired inspection handler plus the clients behind it,
// kept so entry points can log where they point.
type Pipeline struct {
	Handler    *ingest.Handler
	Classifier *inference.Client
	Reporter   *reporting.Client
}

// NewPipeline wires the handler from SDK clients and configuration.
// metricsOut nil means stdout.
func NewPipeline(clients AWSClients, cfg *config.Config, metricsOut io.Writer) Pipeline {
	classifier := inference.NewClient(clients.Inference, cfg.Inference.EndpointName, cfg.Inference.ContentType, cfg.Inference.Timeout)
	reporter := reporting.NewClient(reporting.Options{
		BaseURL: cfg.Report.BaseURL,
		Timeout: cfg.Report.Timeout,
		CropLT:  cfg.Report.CropLT,
		CropRB:  cfg.Report.CropRB,
	})
	handler := ingest.New(ingest.Deps{
		Objects:    clients.S3,
		Classifier: classifier,
		Reporter:   reporter,
		MetricsOut: metricsOut,
	}, ingest.Options{
		ScratchDir:         cfg.Pipeline.ScratchDir,
		GroupSize:          cfg.Pipeline.GroupSize,
		DownloadTimeout:    cfg.Pipeline.DownloadTimeout,
		ReportFailureFatal: cfg.Report.FailureFatal,
		MetricsNamespace:   cfg.Pipeline.MetricsNamespace,
	})
	return Pipeline{Handler: handler, Classifier: classifier, Reporter: reporter}
}
