package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/pipeline"
	"github.com/aluiziolira/go-books-catalog/scraper"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var errRunFailed = errors.New("run produced no records")

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "scraper",
		Short:         "Catalogue scraper for books.toscrape.com",
		Long:          "Walks a single book, one category or the whole site, writing one CSV row per book and saving cover images per category.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(siteCmd())
	rootCmd.AddCommand(categoryCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func siteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "site",
		Short: "Scrape every category linked from the home page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScope(cmd, models.ModeSite, "")
		},
	}
}

func categoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "category <url>",
		Short: "Scrape one category, following its pager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScope(cmd, models.ModeCategory, args[0])
		},
	}
}

func bookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "book <url>",
		Short: "Scrape a single book detail page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScope(cmd, models.ModeBook, args[0])
		},
	}
}

func runScope(cmd *cobra.Command, mode models.Mode, target string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.SetDefault(newLogger(cfg.Verbose))

	scope := models.Scope{Mode: mode, URL: target}
	if mode == models.ModeSite {
		scope.URL = cfg.BaseURL
	}

	slog.Info("starting scrape",
		slog.String("mode", string(scope.Mode)),
		slog.String("url", scope.URL),
		slog.Int("pages", cfg.MaxPages),
		slog.String("output", cfg.OutputFile),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		writer.Close()
		return fmt.Errorf("creating pipeline: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)

	result, runErr := s.Run(ctx, scope, p)
	closeErr := p.Close()
	stopMetricsServer(metricsServer)

	if runErr != nil {
		return fmt.Errorf("scraping failed: %w", runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("writing output: %w", closeErr)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printSummary(result, cfg, p.GetMetrics())

	if result.TotalCount == 0 && result.ErrorCount > 0 {
		slog.Error("no records scraped", slog.Int("errors", result.ErrorCount))
		return errRunFailed
	}
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		return pipeline.NewDualWriter(filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.RunResult, cfg *config.Config, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Mode:          %s\n", result.Scope.Mode)
	fmt.Printf("  Books:         %d\n", result.TotalCount)
	fmt.Printf("  Images:        %d\n", result.ImageCount)
	fmt.Printf("  Listing pages: %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	duration := result.Duration()
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if duration.Seconds() > 0 {
		fmt.Printf("  Books/sec:     %.2f\n", float64(result.TotalCount)/duration.Seconds())
	}
	fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	if !cfg.SkipImages {
		fmt.Printf("  Images dir:    %s\n", cfg.ImagesDir)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) *slog.Logger {
	level, charmLevel := slog.LevelInfo, log.InfoLevel
	if verbose {
		level, charmLevel = slog.LevelDebug, log.DebugLevel
	}

	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Level:           charmLevel,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
