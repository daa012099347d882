package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aggieschedule/registrar-scraper/config"
	"github.com/aggieschedule/registrar-scraper/models"
	"github.com/aggieschedule/registrar-scraper/pipeline"
	"github.com/aggieschedule/registrar-scraper/registrar"
	"github.com/aggieschedule/registrar-scraper/registrar/registrartest"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = registrartest.BaseURL
	cfg.Parallelism = 3
	cfg.MaxRetries = 0
	cfg.PipelineBufferSize = 16
	cfg.BatchSize = 8
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, srv *registrartest.Server) *Scraper {
	t.Helper()
	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.WithTransport(srv.Transport)
	return s
}

func addSections(srv *registrartest.Server, dept string, n int) {
	for i := 0; i < n; i++ {
		srv.AddCourses(dept, models.CourseRecord{
			Term:                  "201931",
			CourseReferenceNumber: fmt.Sprintf("%s%03d", dept, i),
			Subject:               dept,
			CourseNumber:          strconv.Itoa(100 + i),
			CourseTitle:           dept + " COURSE",
		})
	}
}

func TestSearchPreservesDepartmentOrder(t *testing.T) {
	srv := registrartest.New()
	depts := []string{"ACCT", "CSCE", "MATH"}
	for i, d := range depts {
		addSections(srv, d, i+1)
	}
	// The first department finishes last.
	srv.Delay("ACCT", 100*time.Millisecond)

	s := newTestScraper(t, testConfig(), srv)
	result, err := s.Search(context.Background(), depts, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(result) != len(depts) {
		t.Fatalf("result length = %d, want %d", len(result), len(depts))
	}
	for i, d := range depts {
		if result[i].Department != d {
			t.Fatalf("result[%d].Department = %q, want %q", i, result[i].Department, d)
		}
		if result[i].Err != nil {
			t.Fatalf("result[%d] error: %v", i, result[i].Err)
		}
		if len(result[i].Courses) != i+1 {
			t.Fatalf("result[%d] courses = %d, want %d", i, len(result[i].Courses), i+1)
		}
		for _, c := range result[i].Courses {
			if c.Subject != d {
				t.Fatalf("result[%d] has subject %q, want %q", i, c.Subject, d)
			}
		}
	}
	if got := srv.Handshakes(); got != 1 {
		t.Fatalf("handshakes = %d, want 1", got)
	}
}

func TestSearchIsolatesDepartmentFailure(t *testing.T) {
	srv := registrartest.New()
	addSections(srv, "ACCT", 2)
	addSections(srv, "MATH", 3)
	srv.Fail("CSCE", http.StatusInternalServerError)

	s := newTestScraper(t, testConfig(), srv)
	result, err := s.Search(context.Background(), []string{"ACCT", "CSCE", "MATH", "PHYS"}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if result[1].Err == nil || !registrar.IsTransport(result[1].Err) {
		t.Fatalf("CSCE error = %v, want transport error", result[1].Err)
	}
	if len(result[0].Courses) != 2 || len(result[2].Courses) != 3 {
		t.Fatalf("sibling departments lost results: %d/%d", len(result[0].Courses), len(result[2].Courses))
	}
	if result[3].Err != nil || result[3].Courses == nil || len(result[3].Courses) != 0 {
		t.Fatalf("empty department should succeed with no courses, got %v/%v", result[3].Courses, result[3].Err)
	}
	if failed := result.Failed(); len(failed) != 1 || failed[0] != "CSCE" {
		t.Fatalf("failed = %v, want [CSCE]", failed)
	}
}

func TestSearchSessionFailureAborts(t *testing.T) {
	srv := registrartest.New()
	addSections(srv, "ACCT", 1)
	srv.OmitFwdURL()

	s := newTestScraper(t, testConfig(), srv)
	result, err := s.Search(context.Background(), []string{"ACCT"}, 1)

	var establishment registrar.ErrSessionEstablishment
	if !errors.As(err, &establishment) {
		t.Fatalf("expected session establishment error, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result, got %v", result)
	}
	if got := srv.CourseRequests("ACCT"); got != 0 {
		t.Fatalf("course requests = %d, want 0", got)
	}
}

func TestSearchRenewsExpiredSessionOnce(t *testing.T) {
	for _, status := range []int{0, http.StatusUnauthorized} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			srv := registrartest.New()
			depts := []string{"ACCT", "CSCE", "MATH", "PHYS", "STAT"}
			for _, d := range depts {
				addSections(srv, d, 1)
			}
			srv.ExpireNextSession(status)

			s := newTestScraper(t, testConfig(), srv)
			result, err := s.Search(context.Background(), depts, 1)
			if err != nil {
				t.Fatalf("search: %v", err)
			}

			if got := srv.Handshakes(); got != 2 {
				t.Fatalf("handshakes = %d, want 2", got)
			}
			if got := s.Client().RenewalCount(); got != 1 {
				t.Fatalf("renewals = %d, want 1", got)
			}
			succeeded := 0
			for i, d := range depts {
				if result[i].Department != d {
					t.Fatalf("result[%d].Department = %q, want %q", i, result[i].Department, d)
				}
				if err := result[i].Err; err != nil {
					if !errors.Is(err, registrar.ErrSessionExpired) {
						t.Fatalf("%s: %v, want success or session expired", d, err)
					}
					continue
				}
				if len(result[i].Courses) != 1 {
					t.Fatalf("%s courses = %d, want 1", d, len(result[i].Courses))
				}
				succeeded++
			}
			if succeeded == 0 {
				t.Fatalf("no department succeeded after renewal")
			}
		})
	}
}

func TestSearchValidation(t *testing.T) {
	srv := registrartest.New()
	s := newTestScraper(t, testConfig(), srv)

	if _, err := s.Search(context.Background(), []string{"ACCT"}, 0); !errors.Is(err, registrar.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	result, err := s.Search(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("empty search: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Fatalf("expected empty result, got %v", result)
	}
	if got := srv.Handshakes(); got != 0 {
		t.Fatalf("handshakes = %d, want 0", got)
	}
}

func TestSearchCancelled(t *testing.T) {
	srv := registrartest.New()
	depts := []string{"ACCT", "AERO", "CSCE", "MATH", "PHYS", "STAT"}
	for _, d := range depts {
		addSections(srv, d, 1)
		srv.Delay(d, time.Second)
	}

	cfg := testConfig()
	cfg.Parallelism = 2
	s := newTestScraper(t, cfg, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := s.Search(ctx, depts, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("search took %v after cancellation", elapsed)
	}
	if len(result) != len(depts) {
		t.Fatalf("result length = %d, want %d", len(result), len(depts))
	}
	for i, d := range result {
		if d.Err == nil {
			t.Fatalf("result[%d] (%s) should carry an error", i, d.Department)
		}
	}
	if got := srv.CourseRequests("STAT"); got != 0 {
		t.Fatalf("undispatched department was requested %d times", got)
	}
}

type collectingWriter struct {
	mu      sync.Mutex
	courses []*models.CourseRecord
}

func (cw *collectingWriter) Write(courses []*models.CourseRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.courses = append(cw.courses, courses...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.courses)
}

func (cw *collectingWriter) All() []*models.CourseRecord {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]*models.CourseRecord, len(cw.courses))
	copy(out, cw.courses)
	return out
}

func TestScraper_Integration(t *testing.T) {
	srv := registrartest.New()
	srv.SetDepartments(
		models.DepartmentRecord{Code: "ACCT", Description: "Accounting"},
		models.DepartmentRecord{Code: "CSCE", Description: "Computer Sci &amp; Engr"},
		models.DepartmentRecord{Code: "MATH", Description: "Mathematics"},
	)
	addSections(srv, "ACCT", 20)
	addSections(srv, "CSCE", 25)
	addSections(srv, "MATH", 15)
	srv.Fail("MATH", http.StatusTooManyRequests)
	srv.SetDescription("CSCE000", "Programming fundamentals.")

	cfg := testConfig()
	cfg.FetchDescriptions = true
	s := newTestScraper(t, cfg, srv)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	result, err := s.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if got := writer.Count(); got != 45 {
		t.Fatalf("courses=%d, want 45 (requests=%d errors=%d failed=%v)", got, result.RequestCount, result.ErrorCount, result.FailedDepartments)
	}
	if result.Term != "201931" || result.Departments != 3 || result.TotalCount != 45 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.FailedDepartments) != 1 || result.FailedDepartments[0] != "MATH" {
		t.Fatalf("failed departments = %v, want [MATH]", result.FailedDepartments)
	}
	if result.ErrorsByType["rate_limited"] != 1 {
		t.Fatalf("errors by type = %v, want one rate_limited", result.ErrorsByType)
	}
	if result.Descriptions != 1 {
		t.Fatalf("descriptions = %d, want 1", result.Descriptions)
	}

	var sample *models.CourseRecord
	for _, c := range writer.All() {
		if c.CourseReferenceNumber == "CSCE000" {
			sample = c
			break
		}
	}
	if sample == nil {
		t.Fatalf("expected course CSCE000")
	}
	if sample.Description != "Programming fundamentals." {
		t.Fatalf("description=%q", sample.Description)
	}
}

func TestScraperConfiguredDepartments(t *testing.T) {
	srv := registrartest.New()
	addSections(srv, "CSCE", 3)

	cfg := testConfig()
	cfg.Departments = []string{"CSCE"}
	s := newTestScraper(t, cfg, srv)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	result, err := s.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}
	if writer.Count() != 3 || result.ErrorCount != 0 {
		t.Fatalf("courses=%d errors=%d, want 3/0", writer.Count(), result.ErrorCount)
	}
	if result.RequestCount != 2 {
		t.Fatalf("requests=%d, want handshake plus one search", result.RequestCount)
	}
}

type benchWriter struct {
	mu    sync.Mutex
	count int
}

func (bw *benchWriter) Write(courses []*models.CourseRecord) error {
	bw.mu.Lock()
	bw.count += len(courses)
	bw.mu.Unlock()
	return nil
}

func (bw *benchWriter) Close() error {
	return nil
}

func (bw *benchWriter) Validate() error {
	return nil
}

func BenchmarkPipeline_Throughput(b *testing.B) {
	cfg := config.DefaultConfig()
	cfg.PipelineBufferSize = 1024
	cfg.BatchSize = 64
	cfg.DedupeMaxSize = 5000000

	for _, workers := range []int{4, 8, 16, 32} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			writer := &benchWriter{}
			p := pipeline.NewPipeline(context.Background(), writer, cfg)
			p.Start(workers)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				course := &models.CourseRecord{
					Term:                  "201931",
					CourseReferenceNumber: strconv.Itoa(i),
					Subject:               "CSCE",
					CourseNumber:          "121",
					CourseTitle:           "Benchmark Course",
				}
				if err := p.Process(course); err != nil {
					b.Fatalf("process: %v", err)
				}
			}
			b.StopTimer()
			if err := p.Close(); err != nil {
				b.Fatalf("close: %v", err)
			}
			elapsed := b.Elapsed().Seconds()
			if elapsed > 0 {
				b.ReportMetric(float64(b.N)/elapsed, "items/sec")
			}
		})
	}
}
