// Command log-explorer retrieves application logs from Kubernetes or
// Prometheus, aggregates them and asks a Bedrock model for a structured
// incident analysis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheralamHF/log-explorer/internal/config"
	"github.com/sheralamHF/log-explorer/internal/inference"
	"github.com/sheralamHF/log-explorer/internal/models"
	"github.com/sheralamHF/log-explorer/internal/pipeline"
	"github.com/sheralamHF/log-explorer/internal/pkg/logger"
	"github.com/sheralamHF/log-explorer/internal/report"
	"github.com/sheralamHF/log-explorer/internal/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		app         string
		timeRange   time.Duration
		message     string
		logType     string
		sourceKind  string
		region      string
		profileARN  string
		noSSLVerify bool
	)

	cmd := &cobra.Command{
		Use:          "log-explorer",
		Short:        "Explore and analyze application logs from Kubernetes or Prometheus",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if region != "" {
				cfg.Region = region
			}
			if profileARN != "" {
				cfg.InferenceProfileARN = profileARN
			}
			if noSSLVerify {
				cfg.DisableSSLVerify = true
			}

			level, ok := models.ParseLevel(logType)
			if !ok {
				return fmt.Errorf("invalid log type %q (want error, warning, info or debug)", logType)
			}

			filter := models.QueryFilter{
				AppName:         app,
				TimeRange:       timeRange,
				MessageContains: message,
				Level:           level,
				Source:          models.Source(sourceKind),
				MaxRecords:      cfg.MaxRecords,
			}
			if filter.Source != models.SourceKubernetes && filter.Source != models.SourcePrometheus {
				return fmt.Errorf("unknown log source %q (want kubernetes or prometheus)", sourceKind)
			}

			return run(cmd.Context(), cfg, filter)
		},
	}

	cmd.Flags().StringVarP(&app, "app", "a", "", "application name to search for (required)")
	cmd.Flags().DurationVarP(&timeRange, "time-range", "t", time.Hour, "time range to search (e.g. 10m, 1h, 48h)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "only include logs containing this message")
	cmd.Flags().StringVarP(&logType, "log-type", "l", "", "filter by log level (error, warning, info, debug)")
	cmd.Flags().StringVarP(&sourceKind, "source", "s", "kubernetes", "log source (kubernetes or prometheus)")
	cmd.Flags().StringVarP(&region, "region", "r", "", "AWS region for Bedrock (overrides config)")
	cmd.Flags().StringVarP(&profileARN, "profile", "p", "", "Bedrock inference profile ARN (overrides config)")
	cmd.Flags().BoolVar(&noSSLVerify, "no-ssl-verify", false, "disable TLS certificate verification for outbound calls")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, filter models.QueryFilter) error {
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		FilePath: cfg.LogFilePath,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := buildSource(cfg, filter, log)
	if err != nil {
		return err
	}

	invoker, err := inference.New(ctx, inference.Config{
		Region:              cfg.Region,
		ModelID:             cfg.ModelID,
		InferenceProfileARN: cfg.InferenceProfileARN,
		MaxTokens:           cfg.MaxTokens,
		MaxAttempts:         cfg.InvokeAttempts,
		DisableSSLVerify:    cfg.DisableSSLVerify,
	}, log)
	if err != nil {
		return err
	}

	p := pipeline.New(src, invoker, pipeline.Options{
		PromptBudget:      cfg.PromptBudget,
		SamplesPerPattern: cfg.SamplesPerPattern,
	}, log)

	rep, err := p.Run(ctx, filter)
	if err != nil {
		return err
	}

	rendered := report.Markdown(rep)
	fmt.Println("\n===== LOG ANALYSIS =====")
	fmt.Println(rendered)
	fmt.Println("========================")

	return persist(cfg.ReportDir, rep, rendered, log)
}

func buildSource(cfg *config.Config, filter models.QueryFilter, log *zap.Logger) (source.Adapter, error) {
	shardTimeout := time.Duration(cfg.ShardTimeoutSec) * time.Second
	switch filter.Source {
	case models.SourcePrometheus:
		return source.NewPrometheus(source.PrometheusOptions{
			BaseURL:               cfg.PrometheusURL,
			InsecureSkipTLSVerify: cfg.DisableSSLVerify,
			QueryTimeout:          shardTimeout,
		}, log)
	default:
		return source.NewKubernetes(source.KubernetesOptions{
			KubeconfigPath:        cfg.KubeconfigPath,
			Namespace:             cfg.Namespace,
			MaxPods:               cfg.MaxPods,
			ShardTimeout:          shardTimeout,
			InsecureSkipTLSVerify: cfg.DisableSSLVerify,
		}, log)
	}
}

func persist(dir string, rep *models.Report, rendered string, log *zap.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.md", rep.App, rep.GeneratedAt.Format("20060102_150405")))
	if err := os.WriteFile(filename, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	log.Info("analysis saved", zap.String("path", filename))
	return nil
}
