package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aggieschedule/registrar-scraper/models"
)

// SessionToken correlates requests to one activated term-scoped session.
// It is a plain value: callers own it and pass it to every dependent call.
type SessionToken struct {
	Term    string
	ID      string
	Cookies []*http.Cookie
}

// IsZero reports whether the token was never issued.
func (t SessionToken) IsZero() bool {
	return t.ID == ""
}

type handshakeResponse struct {
	FwdURL string `json:"fwdURL"`
}

// CreateSession performs the term/search handshake that activates a session
// for the client's term and returns its token.
func (c *Client) CreateSession(ctx context.Context) (SessionToken, error) {
	ctx, span := tracer.Start(ctx, "registrar:CreateSession")
	defer span.End()
	span.SetAttributes(attribute.String("term", c.term.Code()))

	id, err := NewSessionID()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate session id")
		return SessionToken{}, ErrSessionEstablishment{Err: err}
	}

	res, err := c.do(ctx, endpointSession, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("mode", "search").
			SetFormData(map[string]string{
				"term":            c.term.Code(),
				"uniqueSessionId": id,
				"dataType":        "json",
			}).
			Post("/term/search")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handshake request failed")
		return SessionToken{}, err
	}
	if err := ClassifyError(endpointSession, nil, res.StatusCode()); err != nil {
		span.SetStatus(codes.Error, "handshake returned non-2xx status")
		return SessionToken{}, c.fail(err)
	}

	var body handshakeResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		span.SetStatus(codes.Error, "failed to decode handshake response")
		return SessionToken{}, c.fail(ErrSessionEstablishment{Err: fmt.Errorf("decode handshake response: %w", err)})
	}
	if body.FwdURL == "" {
		span.SetStatus(codes.Error, "handshake response missing fwdURL")
		return SessionToken{}, c.fail(ErrSessionEstablishment{Err: errors.New("handshake response missing fwdURL")})
	}

	token := SessionToken{
		Term:    c.term.Code(),
		ID:      id,
		Cookies: res.Cookies(),
	}
	slog.Debug("registrar session created",
		slog.String("term", token.Term),
		slog.String("session_id", token.ID),
		slog.Int("cookies", len(token.Cookies)),
	)
	return token, nil
}

// Session shares one token between concurrent fetchers of a run and renews it
// at most once when the registrar reports it expired.
type Session struct {
	client *Client

	mu      sync.Mutex
	token   SessionToken
	renewed bool
}

// NewSession wraps an issued token.
func (c *Client) NewSession(token SessionToken) *Session {
	return &Session{client: c, token: token}
}

// Token returns the current token.
func (s *Session) Token() SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Courses fetches one page of department courses, re-creating the session once
// if the current token has expired.
func (s *Session) Courses(ctx context.Context, department string, page int) ([]models.CourseRecord, error) {
	token := s.Token()
	records, err := s.client.fetchCourses(ctx, token, department, page)
	if !errors.Is(err, ErrSessionExpired) {
		return records, err
	}

	fresh, renewErr := s.renew(ctx, token)
	if renewErr != nil {
		if errors.Is(renewErr, ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("renew expired session: %w", renewErr)
	}
	return s.client.fetchCourses(ctx, fresh, department, page)
}

// renew replaces stale with a new token. Callers holding a token that was
// already replaced get the current one without another handshake.
func (s *Session) renew(ctx context.Context, stale SessionToken) (SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.ID != stale.ID {
		return s.token, nil
	}
	if s.renewed {
		return SessionToken{}, ErrSessionExpired
	}
	s.renewed = true

	slog.Info("registrar session expired, re-authenticating", slog.String("term", stale.Term))
	fresh, err := s.client.CreateSession(ctx)
	if err != nil {
		return SessionToken{}, err
	}
	atomic.AddInt64(&s.client.renewalCount, 1)
	s.client.Metrics.IncRenewals()
	s.token = fresh
	return fresh, nil
}
