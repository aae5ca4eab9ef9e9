package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/ipfsprobe/internal/config"
	"github.com/nao1215/ipfsprobe/internal/database"
	"github.com/nao1215/ipfsprobe/internal/gateway"
	"github.com/nao1215/ipfsprobe/internal/log"
	"github.com/nao1215/ipfsprobe/internal/measure"
	"github.com/nao1215/ipfsprobe/internal/metrics"
	"github.com/nao1215/ipfsprobe/internal/model"
	"github.com/nao1215/ipfsprobe/internal/prober"
	"github.com/nao1215/ipfsprobe/internal/report"
)

// setupLogger creates the process logger on stderr and installs it as the
// slog default.
func setupLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if cfg.LogJSON {
		logger = log.NewJSONLogger(os.Stderr, cfg.Verbose)
	} else {
		logger = log.NewLogger(os.Stderr, cfg.Verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// newKubo creates the daemon-backed gateway client.
func newKubo(cfg *config.Config, logger *slog.Logger) *gateway.Kubo {
	return gateway.NewKubo(
		gateway.WithBinary(cfg.IPFSBinary),
		gateway.WithFetchTimeout(cfg.FetchTimeout),
		gateway.WithCallTimeout(cfg.CallTimeout),
		gateway.WithMaxBodySize(cfg.MaxBodySize),
		gateway.WithUserAgent(cfg.UserAgent),
		gateway.WithLogger(logger),
	)
}

// newGateway wraps the kubo client with rate limiting and metrics.
func newGateway(cfg *config.Config, mt *metrics.Metrics, logger *slog.Logger) gateway.Gateway {
	var gw gateway.Gateway = newKubo(cfg, logger)
	if limiter := gateway.NewLimiter(cfg.RateLimit); limiter != nil {
		gw = gateway.RateLimited(gw, limiter)
	}
	return gateway.Instrumented(gw, mt)
}

func newDaemon(cfg *config.Config, logger *slog.Logger) *gateway.Daemon {
	return gateway.NewDaemon(
		gateway.WithAPIAddr(cfg.APIAddr),
		gateway.WithDaemonBinary(cfg.IPFSBinary),
		gateway.WithStartupWait(cfg.StartupWait),
		gateway.WithDaemonLogger(logger),
	)
}

func newExporter(cfg *config.Config, logger *slog.Logger) *report.Exporter {
	return report.NewExporter(cfg.OutputDir,
		report.WithCleanedOutput(cfg.CleanedOutput),
		report.WithJSONOutput(cfg.SaveJSON),
		report.WithMarkdownOutput(cfg.SaveMarkdown),
		report.WithXLSXOutput(cfg.SaveXLSX),
		report.WithExportVersion(getVersion()),
		report.WithExportLogger(logger),
	)
}

// openStore opens the measurement database when enabled. The returned
// database is nil when SaveToDB is off.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.MeasurementDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())
	return db, nil
}

// newRunner assembles a measure.Runner from the config.
func newRunner(cfg *config.Config, gw gateway.Gateway, db *database.MeasurementDB, mt *metrics.Metrics, logger *slog.Logger) *measure.Runner {
	opts := []measure.RunnerOption{
		measure.WithExporter(newExporter(cfg, logger)),
		measure.WithMetrics(mt),
		measure.WithLogger(logger),
		measure.WithConcurrency(cfg.ItemConcurrency, cfg.PeerConcurrency),
		measure.WithMaxJitter(cfg.MaxJitter),
		measure.WithProberOptions(
			prober.WithWebsiteAttempts(cfg.WebsiteAttempts),
			prober.WithProviderAttempts(cfg.ProviderAttempts),
			prober.WithPeerAttempts(cfg.PeerAttempts),
			prober.WithScheme(cfg.Scheme),
			prober.WithRetryOnEmpty(cfg.RetryOnEmpty),
		),
	}
	if db != nil {
		opts = append(opts, measure.WithStore(db))
	}
	return measure.NewRunner(gw, opts...)
}

// openReportOutput returns the destination of the summary report. The
// close function must always be called.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// summaryWriter returns the report writer selected by the config.
func summaryWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// historyWriter writes history points in the format selected by the config.
type historyWriter interface {
	WriteHistory(points []model.HistoryPoint) (int, error)
}

func newHistoryWriter(cfg *config.Config, w io.Writer) historyWriter {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w)
	}
}
