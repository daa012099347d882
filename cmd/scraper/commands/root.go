package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aggieschedule/registrar-scraper/config"
)

type rootOptions struct {
	configPath        string
	baseURL           string
	year              string
	semester          string
	location          string
	parallelism       int
	timeout           time.Duration
	maxRetries        int
	retryBackoff      time.Duration
	retryBackoffMax   time.Duration
	requestsPerSecond float64
	userAgent         string
	metricsAddr       string
	verbose           bool
}

var opts rootOptions

var rootCmd = &cobra.Command{
	Use:   "scraper",
	Short: "scraper pulls departments and course sections from a Banner registrar.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger, level := newLogger(opts.verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
	},
	SilenceUsage: true,
}

func init() {
	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "TOML config file")
	flags.StringVar(&opts.baseURL, "base-url", defaults.BaseURL, "Registrar base URL (ends in /StudentRegistrationSsb/ssb/)")
	flags.StringVar(&opts.year, "year", defaults.Year, "Four digit term year")
	flags.StringVar(&opts.semester, "semester", defaults.Semester, "Semester: spring, summer, or fall")
	flags.StringVar(&opts.location, "location", defaults.Location, "Campus: college_station, galveston, or qatar")
	flags.IntVar(&opts.parallelism, "parallel", defaults.Parallelism, "Number of concurrent requests")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	flags.IntVar(&opts.maxRetries, "max-retries", defaults.MaxRetries, "Retry attempts for transport failures, 429 and 5xx (0 disables)")
	flags.DurationVar(&opts.retryBackoff, "retry-backoff", defaults.RetryBackoff, "Initial retry backoff")
	flags.DurationVar(&opts.retryBackoffMax, "retry-backoff-max", defaults.RetryBackoffMax, "Maximum retry backoff")
	flags.Float64Var(&opts.requestsPerSecond, "rps", defaults.RequestsPerSecond, "Request rate cap (0 disables)")
	flags.StringVar(&opts.userAgent, "user-agent", defaults.UserAgent, "User-Agent header")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
}

// ExecuteContext runs the root command and exits non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, REGISTRAR_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		if err := cfg.LoadFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = opts.baseURL
	}
	if flags.Changed("year") {
		cfg.Year = opts.year
	}
	if flags.Changed("semester") {
		cfg.Semester = strings.ToLower(opts.semester)
	}
	if flags.Changed("location") {
		cfg.Location = strings.ToLower(opts.location)
	}
	if flags.Changed("parallel") {
		cfg.Parallelism = opts.parallelism
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = opts.maxRetries
	}
	if flags.Changed("retry-backoff") {
		cfg.RetryBackoff = opts.retryBackoff
	}
	if flags.Changed("retry-backoff-max") {
		cfg.RetryBackoffMax = opts.retryBackoffMax
	}
	if flags.Changed("rps") {
		cfg.RequestsPerSecond = opts.requestsPerSecond
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = opts.userAgent
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	cfg.Verbose = opts.verbose
	return cfg, nil
}
