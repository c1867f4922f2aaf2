package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mlaurent/spreadwright/internal/config"
	"github.com/mlaurent/spreadwright/internal/dashboard"
	"github.com/mlaurent/spreadwright/internal/indicators"
	"github.com/mlaurent/spreadwright/internal/marketdata"
	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/scanner"
	"github.com/mlaurent/spreadwright/internal/strategy"
)

// rescanInterval is how often serve mode refreshes the dashboard
// snapshot.
const rescanInterval = 15 * time.Minute

func main() {
	var (
		configPath string
		mode       string
		ticker     string
		bias       string
		budget     float64
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&mode, "mode", "analyze", "Run mode: analyze | scan | serve")
	flag.StringVar(&ticker, "ticker", "SPY", "Ticker to analyze (analyze mode)")
	flag.StringVar(&bias, "bias", string(models.Neutral), "Directional bias: Neutral | Bullish | Bearish")
	flag.Float64Var(&budget, "budget", 0, "Max risk budget in dollars (0 = configured scan budget)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger := setupLogger(cfg.Environment)
	provider := buildProvider(cfg, logger)
	sc := scanner.New(cfg, provider, logger)

	if budget == 0 {
		budget = cfg.Scan.Budget
	}

	switch mode {
	case "analyze":
		runAnalyze(sc, logger, ticker, models.Bias(bias), budget)
	case "scan":
		runScan(sc, logger)
	case "serve":
		runServe(cfg, sc, logger)
	default:
		logger.Fatalf("Unknown mode %q (want analyze, scan, or serve)", mode)
	}
}

func setupLogger(env config.EnvironmentConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(env.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if env.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   env.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
	return logger
}

func buildProvider(cfg *config.Config, logger *logrus.Logger) marketdata.Provider {
	switch cfg.MarketData.Provider {
	case "http":
		client := marketdata.NewClient(cfg.MarketData.APIEndpoint, cfg.MarketData.APIKey, cfg.VolIndexes)
		if cfg.Strategy.ShortTermDTE > 0 {
			client.ShortTermDTE = cfg.Strategy.ShortTermDTE
		}
		if cfg.Strategy.LeapsMinDTE > 0 {
			client.LeapsMinDTE = cfg.Strategy.LeapsMinDTE
		}
		return marketdata.NewRetryProvider(
			client,
			stdlog.New(logger.Writer(), "", 0),
			marketdata.RetryConfig{
				MaxRetries:     cfg.MarketData.MaxRetries,
				InitialBackoff: cfg.MarketData.InitialBackoffDuration(),
				MaxBackoff:     cfg.MarketData.MaxBackoffDuration(),
			},
		)
	default:
		logger.Info("Using synthetic market data (demo mode)")
		return marketdata.NewSynthetic(100, 0.22)
	}
}

func runAnalyze(sc *scanner.Scanner, logger *logrus.Logger, ticker string, bias models.Bias, budget float64) {
	if !bias.Valid() {
		logger.Fatalf("Invalid bias %q (want Neutral, Bullish, or Bearish)", bias)
	}

	res := sc.Analyze(ticker, bias, budget)
	if res.Err != nil {
		if rej, ok := strategy.AsRejection(res.Err); ok {
			logger.WithField("gate", rej.Category).Warnf("No recommendation: %s", rej.Reason)
			os.Exit(0)
		}
		logger.Fatalf("Analysis failed: %v", res.Err)
	}

	logger.Info(res.Strategy.Summary())
	printJSON(logger, analyzeView{Strategy: res.Strategy, Quality: res.Quality})
}

func runScan(sc *scanner.Scanner, logger *logrus.Logger) {
	results, err := sc.Scan(context.Background())
	if err != nil {
		logger.Fatalf("Scan failed: %v", err)
	}
	best := scanner.Best(results)
	if len(best) == 0 {
		logger.Warn("No viable strategies in the configured universe")
		return
	}
	strategies := make([]*models.Strategy, 0, len(best))
	for _, r := range best {
		strategies = append(strategies, r.Strategy)
	}
	printJSON(logger, strategies)
}

func runServe(cfg *config.Config, sc *scanner.Scanner, logger *logrus.Logger) {
	server := dashboard.NewServer(cfg.Dashboard, logger)

	refresh := func(ctx context.Context) {
		results, err := sc.Scan(ctx)
		if err != nil {
			logger.WithError(err).Error("Scan failed, keeping previous results")
			return
		}
		server.SetResults(results)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refresh(ctx)

	go func() {
		t := time.NewTicker(rescanInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				refresh(ctx)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received %s, shutting down", sig)
	case err := <-errCh:
		logger.Fatalf("Server error: %v", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown incomplete")
	}
	logger.Info("Server stopped")
}

type analyzeView struct {
	Strategy *models.Strategy    `json:"strategy"`
	Quality  *indicators.Quality `json:"quality,omitempty"`
}

func printJSON(logger *logrus.Logger, v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("Failed to render output: %v", err)
	}
	fmt.Println(string(out))
}
