// Package catalog scrapes the course catalog descriptions that the section
// search omits.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aggieschedule/registrar-scraper/config"
	"github.com/aggieschedule/registrar-scraper/models"
	"github.com/aggieschedule/registrar-scraper/parser"
	"github.com/aggieschedule/registrar-scraper/registrar"
)

const (
	endpointDescription = "description"
	descriptionPath     = "/searchResults/getCourseDescription"
	cacheTTL            = 6 * time.Hour
)

// ErrNoDescription is recorded when the registrar page has no description section.
var ErrNoDescription = errors.New("catalog: description section missing")

// Scraper fetches catalog descriptions by CRN with a colly collector.
type Scraper struct {
	cfg       *config.Config
	endpoint  string
	collector *colly.Collector
	retry     *retryManager
	cache     *expirable.LRU[string, string]
	Metrics   *registrar.Metrics

	requestCount int64

	mu           sync.Mutex
	found        map[string]string
	failed       map[string]error
	errorsByType map[string]int
}

// NewScraper builds a description scraper for the registrar at cfg.BaseURL.
// metrics may be shared with the registrar client; nil disables them.
func NewScraper(cfg *config.Config, metrics *registrar.Metrics) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	size := cfg.DescriptionCache
	if size <= 0 {
		size = 1024
	}

	s := &Scraper{
		cfg:          cfg,
		endpoint:     strings.TrimSuffix(cfg.BaseURL, "/") + descriptionPath,
		collector:    collector,
		cache:        expirable.NewLRU[string, string](size, nil, cacheTTL),
		Metrics:      metrics,
		found:        make(map[string]string),
		failed:       make(map[string]error),
		errorsByType: make(map[string]int),
	}
	s.retry = newRetryManager(cfg, metrics)
	s.configureHandlers()
	return s, nil
}

// WithTransport replaces the collector's HTTP transport, mainly for tests.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Describe fills Description on every course it can and returns how many it
// filled. Lookups that fail leave the course untouched; only ctx ends the call
// early. A Scraper must not run Describe concurrently with itself.
func (s *Scraper) Describe(ctx context.Context, courses []*models.CourseRecord) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.Reset(ctx)
	s.reset()

	filled := 0
	pending := make(map[string][]*models.CourseRecord)
	for _, c := range courses {
		if c == nil || c.CourseReferenceNumber == "" {
			continue
		}
		key := cacheKey(c.Term, c.CourseReferenceNumber)
		if text, ok := s.cache.Get(key); ok {
			c.Description = text
			filled++
			continue
		}
		pending[key] = append(pending[key], c)
	}

	for key, group := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := s.submit(ctx, group[0].Term, group[0].CourseReferenceNumber); err != nil {
			s.recordFailure(key, registrar.ErrTransport{Op: endpointDescription, Err: err})
		}
	}
	s.wait()

	s.mu.Lock()
	for key, group := range pending {
		text, ok := s.found[key]
		if !ok {
			continue
		}
		s.cache.Add(key, text)
		for _, c := range group {
			c.Description = text
		}
		filled += len(group)
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return filled, err
	}
	return filled, nil
}

// Failed returns the lookups that failed in the last Describe, keyed by "term:crn".
func (s *Scraper) Failed() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]error, len(s.failed))
	for k, v := range s.failed {
		out[k] = v
	}
	return out
}

// ErrorsByType returns failure counts of the last Describe by error label.
func (s *Scraper) ErrorsByType() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// RetryCount returns the number of retries made so far.
func (s *Scraper) RetryCount() int {
	return s.retry.TotalRetries()
}

// RequestCount returns the number of description requests sent so far.
func (s *Scraper) RequestCount() int {
	return int(atomic.LoadInt64(&s.requestCount))
}

func (s *Scraper) submit(ctx context.Context, term, crn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	form := url.Values{}
	form.Set("term", term)
	form.Set("courseReferenceNumber", crn)

	reqCtx := colly.NewContext()
	reqCtx.Put("term", term)
	reqCtx.Put("crn", crn)

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.collector.Request(http.MethodPost, s.endpoint, strings.NewReader(form.Encode()), reqCtx, hdr)
}

// wait drains the collector, then resubmits the retries its failures
// queued, until nothing is left or the run is cancelled.
func (s *Scraper) wait() {
	for {
		s.collector.Wait()
		tasks := s.retry.Next()
		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			if err := task.resubmit(); err != nil {
				s.recordFailure(task.key, registrar.ErrTransport{Op: endpointDescription, Err: err})
			}
		}
	}
}

func (s *Scraper) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.found = make(map[string]string)
	s.failed = make(map[string]error)
	s.errorsByType = make(map[string]int)
}

func (s *Scraper) configureHandlers() {
	s.collector.OnRequest(func(r *colly.Request) {
		if s.retry.Context().Err() != nil {
			r.Abort()
			return
		}
		r.Ctx.Put("start", time.Now())
		atomic.AddInt64(&s.requestCount, 1)
		s.Metrics.IncRequest(endpointDescription)
	})

	s.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(endpointDescription, time.Since(start))
		}
		key := cacheKey(r.Ctx.Get("term"), r.Ctx.Get("crn"))

		text, err := ExtractDescription(r.Body)
		if err != nil {
			s.recordFailure(key, registrar.ErrUnexpectedResponse{Op: endpointDescription, Err: err})
			return
		}
		s.mu.Lock()
		s.found[key] = text
		s.mu.Unlock()
		s.Metrics.AddRecords("description", 1)
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		term, crn := "", ""
		if r != nil {
			statusCode = r.StatusCode
			term, crn = r.Ctx.Get("term"), r.Ctx.Get("crn")
		}
		// colly reports a non-2xx status as an error carrying only the status text.
		var classified error
		if statusCode != 0 {
			classified = registrar.ClassifyError(endpointDescription, nil, statusCode)
		} else {
			classified = registrar.ClassifyError(endpointDescription, err, 0)
		}
		if classified == nil {
			classified = registrar.ErrTransport{Op: endpointDescription, Err: err}
		}
		key := cacheKey(term, crn)

		if crn != "" && retryable(statusCode, err) && s.retry.Schedule(key, func() error {
			return s.submit(s.retry.Context(), term, crn)
		}) {
			slog.Debug("retrying description lookup",
				slog.String("crn", crn),
				slog.String("category", registrar.ErrorType(classified)),
			)
			return
		}
		s.recordFailure(key, classified)
	})
}

func (s *Scraper) recordFailure(key string, err error) {
	category := registrar.ErrorType(err)
	s.Metrics.IncError(category)

	s.mu.Lock()
	s.failed[key] = err
	s.errorsByType[category]++
	s.mu.Unlock()

	slog.Warn("description lookup failed",
		slog.String("section", key),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

// ExtractDescription returns the normalized text of the first <section> in body.
func ExtractDescription(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse description html: %w", err)
	}
	section := doc.Find("section").First()
	if section.Length() == 0 {
		return "", ErrNoDescription
	}
	section.Find("br").ReplaceWithHtml(" ")
	return parser.NormalizeText(section.Text()), nil
}

func retryable(statusCode int, err error) bool {
	if statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError {
		return true
	}
	return statusCode == 0 && err != nil && !errors.Is(err, context.Canceled)
}

func cacheKey(term, crn string) string {
	return term + ":" + crn
}
