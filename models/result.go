package models

import "time"

// DepartmentResult is the outcome of fetching one department's page of courses.
// Err is nil on success; an empty Courses slice with a nil Err means the
// department has no courses on that page.
type DepartmentResult struct {
	Department string
	Courses    []CourseRecord
	Err        error
}

// SearchResult is index-aligned with the departments passed to a search.
type SearchResult []DepartmentResult

// Failed returns the departments whose fetch failed, in input order.
func (r SearchResult) Failed() []string {
	var out []string
	for _, d := range r {
		if d.Err != nil {
			out = append(out, d.Department)
		}
	}
	return out
}

// CourseCount returns the number of records across all successful departments.
func (r SearchResult) CourseCount() int {
	total := 0
	for _, d := range r {
		total += len(d.Courses)
	}
	return total
}

// ScraperResult holds the overall result of a scraping run.
type ScraperResult struct {
	Term              string
	StartTime         time.Time
	EndTime           time.Time
	Departments       int
	TotalCount        int
	ErrorCount        int
	FailedDepartments []string
	ErrorsByType      map[string]int
	RetryCount        int
	RequestCount      int
	SessionRenewals   int
	Descriptions      int
}
