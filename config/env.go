package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvString returns the trimmed value of key and whether it was set to something non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// EnvInt parses key as an integer. ok is false when the variable is unset.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvList splits a comma separated variable into trimmed, upper-cased entries.
func EnvList(key string) ([]string, bool) {
	raw, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	return SplitList(raw), true
}

// SplitList splits "csce, math,ECEN" into ["CSCE" "MATH" "ECEN"].
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ApplyEnv overlays REGISTRAR_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("REGISTRAR_BASE_URL"); ok {
		c.BaseURL = value
	}
	if value, ok := EnvString("REGISTRAR_YEAR"); ok {
		c.Year = value
	}
	if value, ok := EnvString("REGISTRAR_SEMESTER"); ok {
		c.Semester = value
	}
	if value, ok := EnvString("REGISTRAR_LOCATION"); ok {
		c.Location = value
	}
	if value, ok := EnvList("REGISTRAR_DEPARTMENTS"); ok {
		c.Departments = value
	}
	if value, ok, err := EnvInt("REGISTRAR_PARALLEL"); err != nil {
		return err
	} else if ok {
		c.Parallelism = value
	}
	if value, ok, err := EnvInt("REGISTRAR_PAGE_SIZE"); err != nil {
		return err
	} else if ok {
		c.PageSize = value
	}
	if value, ok := EnvString("REGISTRAR_OUTPUT"); ok {
		c.OutputFile = value
	}
	if value, ok := EnvString("REGISTRAR_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	return nil
}
