package registrar

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aggieschedule/registrar-scraper/models"
	"github.com/aggieschedule/registrar-scraper/parser"
)

// GetDepartments returns up to limit subject codes for the client's term in the
// registrar's own order. It does not need a session.
func (c *Client) GetDepartments(ctx context.Context, limit int) ([]models.DepartmentRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	ctx, span := tracer.Start(ctx, "registrar:GetDepartments")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	var departments []models.DepartmentRecord
	err := c.getList(ctx, endpointDepartments, "/classSearch/get_subject", map[string]string{
		"searchTerm": "",
		"term":       c.term.Code(),
		"offset":     "1",
		"max":        strconv.Itoa(limit),
	}, &departments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "department listing failed")
		return nil, err
	}

	for i := range departments {
		if departments[i].Code == "" {
			return nil, c.fail(ErrUnexpectedResponse{Op: endpointDepartments, Err: fmt.Errorf("department %d has no code", i)})
		}
		departments[i].Description = parser.NormalizeText(departments[i].Description)
	}
	if len(departments) > limit {
		departments = departments[:limit]
	}
	c.Metrics.AddRecords("department", len(departments))
	return departments, nil
}

// GetTerms returns up to limit terms the registrar offers, newest first.
func (c *Client) GetTerms(ctx context.Context, limit int) ([]models.TermRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	ctx, span := tracer.Start(ctx, "registrar:GetTerms")
	defer span.End()

	var terms []models.TermRecord
	err := c.getList(ctx, endpointTerms, "/classSearch/getTerms", map[string]string{
		"searchTerm": "",
		"offset":     "1",
		"max":        strconv.Itoa(limit),
	}, &terms)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "term listing failed")
		return nil, err
	}

	for i := range terms {
		if terms[i].Code == "" {
			return nil, c.fail(ErrUnexpectedResponse{Op: endpointTerms, Err: fmt.Errorf("term %d has no code", i)})
		}
		terms[i].Description = parser.NormalizeText(terms[i].Description)
	}
	if len(terms) > limit {
		terms = terms[:limit]
	}
	c.Metrics.AddRecords("term", len(terms))
	return terms, nil
}

// getList issues a session-independent GET and decodes a JSON array into dst.
func (c *Client) getList(ctx context.Context, endpoint, path string, params map[string]string, dst any) error {
	res, err := c.do(ctx, endpoint, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(params).Get(path)
	})
	if err != nil {
		return err
	}
	if err := ClassifyError(endpoint, nil, res.StatusCode()); err != nil {
		return c.fail(err)
	}
	if err := json.Unmarshal(res.Body(), dst); err != nil {
		return c.fail(ErrUnexpectedResponse{Op: endpoint, Err: fmt.Errorf("decode %s: %w", path, err)})
	}
	return nil
}
