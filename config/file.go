package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for TOML decoding. Unset keys leave the current value alone.
type fileConfig struct {
	BaseURL           *string  `toml:"base_url"`
	Year              *string  `toml:"year"`
	Semester          *string  `toml:"semester"`
	Location          *string  `toml:"location"`
	Departments       []string `toml:"departments"`
	DepartmentLimit   *int     `toml:"department_limit"`
	Page              *int     `toml:"page"`
	PageSize          *int     `toml:"page_size"`
	Parallelism       *int     `toml:"parallelism"`
	RequestsPerSecond *float64 `toml:"requests_per_second"`
	Timeout           *string  `toml:"timeout"`
	MaxRetries        *int     `toml:"max_retries"`
	RetryBackoff      *string  `toml:"retry_backoff"`
	RetryBackoffMax   *string  `toml:"retry_backoff_max"`
	FetchDescriptions *bool    `toml:"descriptions"`
	OutputFile        *string  `toml:"output"`
	OutputFormat      *string  `toml:"format"`
	UserAgent         *string  `toml:"user_agent"`
	MetricsAddr       *string  `toml:"metrics_addr"`
}

// LoadFile overlays the TOML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	setString(&c.BaseURL, fc.BaseURL)
	setString(&c.Year, fc.Year)
	setString(&c.Semester, fc.Semester)
	setString(&c.Location, fc.Location)
	if fc.Departments != nil {
		c.Departments = nil
		for _, dept := range fc.Departments {
			c.Departments = append(c.Departments, SplitList(dept)...)
		}
	}
	setInt(&c.DepartmentLimit, fc.DepartmentLimit)
	setInt(&c.Page, fc.Page)
	setInt(&c.PageSize, fc.PageSize)
	setInt(&c.Parallelism, fc.Parallelism)
	if fc.RequestsPerSecond != nil {
		c.RequestsPerSecond = *fc.RequestsPerSecond
	}
	setInt(&c.MaxRetries, fc.MaxRetries)
	if fc.FetchDescriptions != nil {
		c.FetchDescriptions = *fc.FetchDescriptions
	}
	setString(&c.OutputFile, fc.OutputFile)
	setString(&c.OutputFormat, fc.OutputFormat)
	setString(&c.UserAgent, fc.UserAgent)
	setString(&c.MetricsAddr, fc.MetricsAddr)

	durations := []struct {
		name  string
		raw   *string
		value *time.Duration
	}{
		{"timeout", fc.Timeout, &c.Timeout},
		{"retry_backoff", fc.RetryBackoff, &c.RetryBackoff},
		{"retry_backoff_max", fc.RetryBackoffMax, &c.RetryBackoffMax},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("config file %s: %s: %w", path, d.name, err)
		}
		*d.value = parsed
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
