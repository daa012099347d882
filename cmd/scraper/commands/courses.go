package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aggieschedule/registrar-scraper/config"
	"github.com/aggieschedule/registrar-scraper/models"
	"github.com/aggieschedule/registrar-scraper/pipeline"
	"github.com/aggieschedule/registrar-scraper/registrar"
	"github.com/aggieschedule/registrar-scraper/scraper"
)

var coursesOpts struct {
	departments     string
	departmentLimit int
	page            int
	pageSize        int
	delay           time.Duration
	randomDelay     time.Duration
	descriptions    bool
	outputFile      string
	outputFormat    string
}

func init() {
	defaults := config.DefaultConfig()
	flags := coursesCmd.Flags()
	flags.StringVar(&coursesOpts.departments, "departments", "", "Comma separated subject codes (default: every department)")
	flags.IntVar(&coursesOpts.departmentLimit, "department-limit", defaults.DepartmentLimit, "Maximum departments to list when --departments is empty")
	flags.IntVar(&coursesOpts.page, "page", defaults.Page, "1-based results page to fetch per department")
	flags.IntVar(&coursesOpts.pageSize, "page-size", defaults.PageSize, "Sections per page")
	flags.DurationVar(&coursesOpts.delay, "delay", defaults.Delay, "Delay between description requests")
	flags.DurationVar(&coursesOpts.randomDelay, "random-delay", defaults.RandomDelay, "Random jitter added to delay")
	flags.BoolVar(&coursesOpts.descriptions, "descriptions", defaults.FetchDescriptions, "Fetch catalog descriptions for every section")
	flags.StringVar(&coursesOpts.outputFile, "output", defaults.OutputFile, "Output file path")
	flags.StringVar(&coursesOpts.outputFormat, "format", defaults.OutputFormat, "Output format: csv, json, or dual")
	rootCmd.AddCommand(coursesCmd)
}

var coursesCmd = &cobra.Command{
	Use:   "courses [--departments CSCE,MATH] [--output path]",
	Short: "Scrapes course sections for the term and writes them to a file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("departments") {
			cfg.Departments = config.SplitList(coursesOpts.departments)
		}
		if flags.Changed("department-limit") {
			cfg.DepartmentLimit = coursesOpts.departmentLimit
		}
		if flags.Changed("page") {
			cfg.Page = coursesOpts.page
		}
		if flags.Changed("page-size") {
			cfg.PageSize = coursesOpts.pageSize
		}
		if flags.Changed("delay") {
			cfg.Delay = coursesOpts.delay
		}
		if flags.Changed("random-delay") {
			cfg.RandomDelay = coursesOpts.randomDelay
		}
		if flags.Changed("descriptions") {
			cfg.FetchDescriptions = coursesOpts.descriptions
		}
		if flags.Changed("output") {
			cfg.OutputFile = coursesOpts.outputFile
		}
		if flags.Changed("format") {
			cfg.OutputFormat = strings.ToLower(coursesOpts.outputFormat)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return runCourses(cmd.Context(), cfg)
	},
}

func runCourses(ctx context.Context, cfg *config.Config) error {
	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	stopMetrics := serveMetrics(cfg.MetricsAddr, s.Metrics)
	defer stopMetrics()

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.String("term", s.Client().Term().String()),
		slog.Int("workers", cfg.Parallelism),
	)

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if closeErr := p.Close(); closeErr != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", closeErr))
		if err == nil {
			return closeErr
		}
	}
	if err != nil {
		if result != nil {
			printSummary(result, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
		}
		return fmt.Errorf("scraping failed: %w", err)
	}

	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
	return nil
}

// serveMetrics exposes metrics on addr until the returned func is called.
func serveMetrics(addr string, metrics *registrar.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
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

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.ScraperResult, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Scrape complete: term %s\n", result.Term)

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}
	perSec := 0.0
	if duration.Seconds() > 0 {
		perSec = float64(written) / duration.Seconds()
	}

	fmt.Printf("  Departments:   %d\n", result.Departments)
	fmt.Printf("  Sections:      %d fetched, %d written\n", result.TotalCount, written)
	if result.Descriptions > 0 {
		fmt.Printf("  Descriptions:  %d\n", result.Descriptions)
	}
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Renewals:      %d\n", result.SessionRenewals)
	if len(result.FailedDepartments) > 0 {
		fmt.Printf("  Failed:        %s\n", strings.Join(result.FailedDepartments, ", "))
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Sections/sec:  %.2f\n", perSec)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}
