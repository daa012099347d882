package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aggieschedule/registrar-scraper/term"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL            string
	Year               string
	Semester           string
	Location           string
	Departments        []string
	DepartmentLimit    int
	Page               int
	PageSize           int
	Parallelism        int
	RequestsPerSecond  float64
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	FetchDescriptions  bool
	DescriptionCache   int
	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int
	OutputFile         string
	OutputFormat       string // csv, json, or dual
	UserAgent          string
	Verbose            bool
	MetricsAddr        string
}

// DefaultConfig returns conservative defaults for the registrar.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://compass-ssb.tamu.edu/StudentRegistrationSsb/ssb/",
		Year:               "2019",
		Semester:           string(term.Fall),
		Location:           string(term.CollegeStation),
		DepartmentLimit:    500,
		Page:               1,
		PageSize:           500,
		Parallelism:        5,
		RequestsPerSecond:  0,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            20 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		FetchDescriptions:  false,
		DescriptionCache:   4096,
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      100000,
		OutputFile:         "output/courses.csv",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:            false,
		MetricsAddr:        "",
	}
}

// Term resolves the configured year, semester and location.
func (c *Config) Term() (term.Term, error) {
	semester, err := term.ParseSemester(c.Semester)
	if err != nil {
		return term.Term{}, err
	}
	location, err := term.ParseLocation(c.Location)
	if err != nil {
		return term.Term{}, err
	}
	return term.New(c.Year, semester, location)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if _, err := c.Term(); err != nil {
		return fmt.Errorf("invalid term: %w", err)
	}
	for _, dept := range c.Departments {
		if strings.TrimSpace(dept) == "" {
			return fmt.Errorf("departments cannot contain empty codes")
		}
	}
	if c.DepartmentLimit <= 0 {
		return fmt.Errorf("department limit must be positive")
	}
	if c.Page <= 0 {
		return fmt.Errorf("page must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.FetchDescriptions && c.DescriptionCache <= 0 {
		return fmt.Errorf("description cache size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
