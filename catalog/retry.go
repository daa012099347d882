package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/aggieschedule/registrar-scraper/config"
	"github.com/aggieschedule/registrar-scraper/registrar"
)

// retryTask is a failed lookup waiting for its backoff to pass.
type retryTask struct {
	key      string
	due      time.Time
	resubmit func() error
}

// retryManager queues failed collector requests for resubmission after an
// exponential backoff. Requests are keyed by "term:crn" because a POST body
// cannot be replayed from the URL alone. Tasks are only handed out by Next,
// so resubmits happen on the caller's goroutine and never while the
// collector is being waited on.
type retryManager struct {
	cfg     *config.Config
	metrics *registrar.Metrics

	mu           sync.Mutex
	ctx          context.Context
	attempts     map[string]int
	queue        []retryTask
	totalRetries int
}

func newRetryManager(cfg *config.Config, metrics *registrar.Metrics) *retryManager {
	return &retryManager{
		cfg:      cfg,
		metrics:  metrics,
		attempts: make(map[string]int),
		ctx:      context.Background(),
	}
}

// Reset binds the manager to ctx and forgets the attempts and queue of any
// previous run. TotalRetries keeps accumulating.
func (rm *retryManager) Reset(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.ctx = ctx
	rm.attempts = make(map[string]int)
	rm.queue = nil
}

// Schedule queues resubmit to run after a backoff. It reports false once key
// has used up its retries or the run's context is done.
func (rm *retryManager) Schedule(key string, resubmit func() error) bool {
	if rm.cfg.MaxRetries <= 0 {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.ctx.Err() != nil {
		return false
	}

	attempt := rm.attempts[key]
	if attempt >= rm.cfg.MaxRetries {
		return false
	}

	attempt++
	rm.attempts[key] = attempt
	rm.totalRetries++
	rm.metrics.IncRetries()

	rm.queue = append(rm.queue, retryTask{
		key:      key,
		due:      time.Now().Add(rm.backoff(attempt)),
		resubmit: resubmit,
	})
	return true
}

// Next blocks until the earliest queued retry is due and returns every task
// that is due by then. It returns nil when the queue is empty or the run's
// context is done; a cancelled run drops its queue.
func (rm *retryManager) Next() []retryTask {
	rm.mu.Lock()
	ctx := rm.ctx
	if len(rm.queue) == 0 || ctx.Err() != nil {
		rm.queue = nil
		rm.mu.Unlock()
		return nil
	}
	earliest := rm.queue[0].due
	for _, task := range rm.queue[1:] {
		if task.due.Before(earliest) {
			earliest = task.due
		}
	}
	rm.mu.Unlock()

	if wait := time.Until(earliest); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			rm.mu.Lock()
			rm.queue = nil
			rm.mu.Unlock()
			return nil
		}
	}

	now := time.Now()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	var due []retryTask
	rest := rm.queue[:0]
	for _, task := range rm.queue {
		if task.due.After(now) {
			rest = append(rest, task)
			continue
		}
		due = append(due, task)
	}
	rm.queue = rest
	return due
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if limit := rm.cfg.RetryBackoffMax; limit > 0 && delay > limit {
		delay = limit
	}
	return delay
}

// Pending returns the number of queued retries.
func (rm *retryManager) Pending() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.queue)
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) Context() context.Context {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.ctx
}
