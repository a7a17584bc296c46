// Package main is an operator CLI for the inspection pipeline.
//
//	inspect-cli parse uploads/frame_3_2_006.jpg
//	inspect-cli invoke --event testdata/event.json
//	inspect-cli invoke --bucket photos --key uploads/frame_3_2_006.jpg
//
// parse works offline. invoke runs the real handler with the local AWS
// credentials and the same environment configuration as the Lambda.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/team3/diecast-inspect/internal/config"
	"github.com/team3/diecast-inspect/internal/ingest"
	"github.com/team3/diecast-inspect/internal/lambdaboot"
	"github.com/team3/diecast-inspect/internal/logging"
	"github.com/team3/diecast-inspect/internal/photoname"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "inspect-cli",
		Short:        "Inspect and replay diecast photo uploads",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init()
		},
	}
	root.AddCommand(newParseCmd(), newInvokeCmd())
	return root
}

func newParseCmd() *cobra.Command {
	var groupSize int
	cmd := &cobra.Command{
		Use:   "parse KEY...",
		Short: "Show the metadata and group signals derived from object keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range args {
				printMetadata(cmd.OutOrStdout(), photoname.Parse(key), groupSize)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&groupSize, "group-size", 5, "Frames per group")
	return cmd
}

func printMetadata(w io.Writer, m photoname.Metadata, groupSize int) {
	seq := "-"
	if m.HasSequence() {
		seq = fmt.Sprint(m.Sequence)
	}
	fmt.Fprintf(w, "%s\tentity=%s position=%s sequence=%s batchSave=%t finalize=%t\n",
		m.DisplayName,
		m.EntityID.OrDefault(),
		m.Position.OrDefault(),
		seq,
		m.OpensGroup(groupSize),
		m.ClosesGroup(groupSize),
	)
}

func newInvokeCmd() *cobra.Command {
	var eventPath, bucket, key string
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run the inspection handler locally for one object",
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := loadEvent(eventPath, bucket, key)
			if err != nil {
				return err
			}

			ctx := context.Background()
			h, err := buildHandler(ctx)
			if err != nil {
				return err
			}

			start := time.Now()
			res, _ := h.Handle(ctx, event)
			log.Info().Dur("duration", time.Since(start)).Int("statusCode", res.StatusCode).Msg("Invocation finished")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.StatusCode != 200 {
				return fmt.Errorf("handler returned %d", res.StatusCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&eventPath, "event", "e", "", "Path to an S3 event JSON file")
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Bucket name (with --key)")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Object key (with --bucket)")
	return cmd
}

// loadEvent reads an S3 event file, or synthesizes a single-record event
// from bucket and key.
func loadEvent(path, bucket, key string) (events.S3Event, error) {
	var event events.S3Event
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return event, fmt.Errorf("read event: %w", err)
		}
		if err := json.Unmarshal(data, &event); err != nil {
			return event, fmt.Errorf("parse event: %w", err)
		}
	case bucket != "" && key != "":
		event.Records = []events.S3EventRecord{{
			EventSource: "aws:s3",
			EventName:   "ObjectCreated:Put",
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: key, URLDecodedKey: key},
			},
		}}
	default:
		return event, fmt.Errorf("either --event or both --bucket and --key are required")
	}
	return event, nil
}

func buildHandler(ctx context.Context) (*ingest.Handler, error) {
	awsCfg, err := lambdaboot.LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	clients := lambdaboot.NewClients(awsCfg)

	cfg, err := config.Load(ctx, clients.SSM)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.LogLevel)

	return lambdaboot.NewPipeline(clients, cfg, io.Discard).Handler, nil
}
