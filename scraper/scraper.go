// Package scraper runs a full registrar scrape: it fans course searches out
// across departments under one session and streams the results into a pipeline.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aggieschedule/registrar-scraper/catalog"
	"github.com/aggieschedule/registrar-scraper/config"
	"github.com/aggieschedule/registrar-scraper/models"
	"github.com/aggieschedule/registrar-scraper/pipeline"
	"github.com/aggieschedule/registrar-scraper/registrar"
)

var tracer = otel.Tracer("scraper")

// Scraper orchestrates one term's scrape.
type Scraper struct {
	cfg          *config.Config
	client       *registrar.Client
	descriptions *catalog.Scraper
	Metrics      *registrar.Metrics
}

// NewScraper builds a scraper for the term configured in cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	t, err := cfg.Term()
	if err != nil {
		return nil, fmt.Errorf("resolve term: %w", err)
	}
	client, err := registrar.NewClient(cfg, t)
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		cfg:     cfg,
		client:  client,
		Metrics: client.Metrics,
	}
	if cfg.FetchDescriptions {
		s.descriptions, err = catalog.NewScraper(cfg, client.Metrics)
		if err != nil {
			return nil, fmt.Errorf("description scraper: %w", err)
		}
	}
	return s, nil
}

// WithTransport routes every request of the scraper through rt, mainly for tests.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.client.WithTransport(rt)
	if s.descriptions != nil {
		s.descriptions.WithTransport(rt)
	}
}

// Client returns the underlying registrar client.
func (s *Scraper) Client() *registrar.Client {
	return s.client
}

// Search fetches page of every department under one session. The result is
// index-aligned with departments; a department that failed carries its error
// instead of courses. A session that cannot be established aborts the search.
func (s *Scraper) Search(ctx context.Context, departments []string, page int) (models.SearchResult, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", registrar.ErrInvalidArgument, page)
	}
	if len(departments) == 0 {
		return models.SearchResult{}, nil
	}

	ctx, span := tracer.Start(ctx, "scraper:Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("term", s.client.Term().Code()),
		attribute.Int("departments", len(departments)),
		attribute.Int("page", page),
	)

	token, err := s.client.CreateSession(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session establishment failed")
		return nil, fmt.Errorf("create session: %w", err)
	}
	session := s.client.NewSession(token)

	result := make(models.SearchResult, len(departments))
	dispatched := make([]bool, len(departments))
	for i, dept := range departments {
		result[i].Department = strings.ToUpper(strings.TrimSpace(dept))
	}

	workers := s.cfg.Parallelism
	if workers <= 0 {
		workers = 1
	}
	if workers > len(departments) {
		workers = len(departments)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result[i].Courses, result[i].Err = s.fetchDepartment(ctx, session, result[i].Department, page)
			}
		}()
	}

dispatch:
	for i := range departments {
		select {
		case jobs <- i:
			dispatched[i] = true
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range result {
			if !dispatched[i] {
				result[i].Err = err
			}
		}
		span.SetStatus(codes.Error, "search cancelled")
		return result, err
	}

	if failed := result.Failed(); len(failed) > 0 {
		span.SetAttributes(attribute.StringSlice("failed_departments", failed))
	}
	span.SetAttributes(attribute.Int("courses", result.CourseCount()))
	return result, nil
}

func (s *Scraper) fetchDepartment(ctx context.Context, session *registrar.Session, dept string, page int) ([]models.CourseRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	courses, err := session.Courses(ctx, dept, page)
	if err != nil {
		slog.Warn("department fetch failed",
			slog.String("department", dept),
			slog.String("category", registrar.ErrorType(err)),
			slog.Any("error", err),
		)
		return nil, err
	}
	slog.Debug("department fetched",
		slog.String("department", dept),
		slog.Int("courses", len(courses)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return courses, nil
}

// Departments returns the configured department list or, when none is
// configured, up to cfg.DepartmentLimit codes from the registrar.
func (s *Scraper) Departments(ctx context.Context) ([]string, error) {
	if len(s.cfg.Departments) > 0 {
		return s.cfg.Departments, nil
	}
	records, err := s.client.GetDepartments(ctx, s.cfg.DepartmentLimit)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Code)
	}
	return out, nil
}

// Run scrapes the configured page of every department and streams the courses
// into p. Per-department failures are reported in the result; the returned
// error is reserved for failures that stop the whole run.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "scraper:Run")
	defer span.End()

	start := time.Now()
	result := &models.ScraperResult{
		Term:         s.client.Term().Code(),
		StartTime:    start,
		ErrorsByType: make(map[string]int),
	}
	defer s.fillCounters(result)

	departments, err := s.Departments(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "department listing failed")
		return nil, err
	}
	result.Departments = len(departments)
	slog.Info("scraping term",
		slog.String("term", result.Term),
		slog.Int("departments", len(departments)),
		slog.Int("page", s.cfg.Page),
	)

	search, err := s.Search(ctx, departments, s.cfg.Page)
	if search == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}

	courses := make([]*models.CourseRecord, 0, search.CourseCount())
	for i := range search {
		d := &search[i]
		if d.Err != nil {
			result.ErrorCount++
			result.FailedDepartments = append(result.FailedDepartments, d.Department)
			result.ErrorsByType[registrar.ErrorType(d.Err)]++
			continue
		}
		for j := range d.Courses {
			courses = append(courses, &d.Courses[j])
		}
	}

	if s.descriptions != nil && err == nil && len(courses) > 0 {
		filled, descErr := s.descriptions.Describe(ctx, courses)
		result.Descriptions = filled
		for label, n := range s.descriptions.ErrorsByType() {
			result.ErrorsByType[label] += n
			result.ErrorCount += n
		}
		if descErr != nil {
			err = descErr
		}
	}

	if perr := p.Process(courses...); perr != nil && !errors.Is(perr, pipeline.ErrPipelineClosed) {
		slog.Error("pipeline process error", slog.Any("error", perr))
		if err == nil {
			err = perr
		}
	}
	result.TotalCount = len(courses)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run interrupted")
		return result, err
	}
	return result, nil
}

func (s *Scraper) fillCounters(result *models.ScraperResult) {
	result.EndTime = time.Now()
	result.RequestCount = s.client.RequestCount()
	result.RetryCount = s.client.RetryCount()
	result.SessionRenewals = s.client.RenewalCount()
	if s.descriptions != nil {
		result.RequestCount += s.descriptions.RequestCount()
		result.RetryCount += s.descriptions.RetryCount()
	}
}
