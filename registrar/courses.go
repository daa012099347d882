package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aggieschedule/registrar-scraper/models"
)

type searchResponse struct {
	Success              bool                  `json:"success"`
	TotalCount           int                   `json:"totalCount"`
	PageOffset           int                   `json:"pageOffset"`
	PageMaxSize          int                   `json:"pageMaxSize"`
	SectionsFetchedCount int                   `json:"sectionsFetchedCount"`
	Data                 []models.CourseRecord `json:"data"`
}

// GetCourses returns one page (1-based) of sections for department. If token
// has expired the session is re-created once before ErrSessionExpired surfaces.
func (c *Client) GetCourses(ctx context.Context, token SessionToken, department string, page int) ([]models.CourseRecord, error) {
	return c.NewSession(token).Courses(ctx, department, page)
}

func (c *Client) fetchCourses(ctx context.Context, token SessionToken, department string, page int) ([]models.CourseRecord, error) {
	department = strings.ToUpper(strings.TrimSpace(department))
	if department == "" {
		return nil, fmt.Errorf("%w: department is required", ErrInvalidArgument)
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidArgument, page)
	}
	if token.IsZero() {
		return nil, fmt.Errorf("%w: session token is required", ErrInvalidArgument)
	}

	ctx, span := tracer.Start(ctx, "registrar:GetCourses")
	defer span.End()
	span.SetAttributes(
		attribute.String("department", department),
		attribute.Int("page", page),
	)

	pageSize := c.cfg.PageSize
	res, err := c.do(ctx, endpointCourses, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetCookies(token.Cookies).
			SetQueryParams(map[string]string{
				"txt_subject":     department,
				"txt_term":        token.Term,
				"pageOffset":      strconv.Itoa((page - 1) * pageSize),
				"pageMaxSize":     strconv.Itoa(pageSize),
				"uniqueSessionId": token.ID,
				"sortColumn":      "subjectDescription",
				"sortDirection":   "asc",
			}).
			Get("/searchResults/searchResults")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course request failed")
		return nil, err
	}

	if res.StatusCode() == http.StatusUnauthorized {
		span.SetStatus(codes.Error, "session rejected")
		return nil, c.fail(fmt.Errorf("%w: %s returned 401", ErrSessionExpired, department))
	}
	if err := ClassifyError(endpointCourses, nil, res.StatusCode()); err != nil {
		span.SetStatus(codes.Error, "course request returned non-2xx status")
		return nil, c.fail(err)
	}

	body := bytes.TrimSpace(res.Body())
	if bytes.HasPrefix(body, []byte("<")) {
		// An expired session is redirected to the HTML login page.
		span.SetStatus(codes.Error, "session redirected to login")
		return nil, c.fail(fmt.Errorf("%w: %s returned an html page", ErrSessionExpired, department))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.SetStatus(codes.Error, "failed to decode course response")
		return nil, c.fail(ErrUnexpectedResponse{Op: endpointCourses, Err: fmt.Errorf("decode %s page %d: %w", department, page, err)})
	}
	if !parsed.Success {
		span.SetStatus(codes.Error, "registrar reported success=false")
		return nil, c.fail(fmt.Errorf("%w: %s search was not accepted", ErrSessionExpired, department))
	}

	for i := range parsed.Data {
		if subject := parsed.Data[i].Subject; subject != department {
			span.SetStatus(codes.Error, "subject mismatch")
			return nil, c.fail(ErrUnexpectedResponse{
				Op:  endpointCourses,
				Err: fmt.Errorf("record %d (crn %s) has subject %q, want %q", i, parsed.Data[i].CourseReferenceNumber, subject, department),
			})
		}
	}

	records := parsed.Data
	if records == nil {
		records = []models.CourseRecord{}
	}
	c.Metrics.AddRecords("course", len(records))
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}
