package parser

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/aggieschedule/registrar-scraper/models"
)

// ValidateCourse ensures the registrar returned the fields the catalog keys on.
func ValidateCourse(c *models.CourseRecord) error {
	if c == nil {
		return fmt.Errorf("course is nil")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("course missing subject")
	}
	if strings.TrimSpace(c.CourseNumber) == "" {
		return fmt.Errorf("course missing number for %s", c.Subject)
	}
	if strings.TrimSpace(c.CourseReferenceNumber) == "" {
		return fmt.Errorf("course missing crn for %s %s", c.Subject, c.CourseNumber)
	}
	if len(strings.TrimSpace(c.Term)) != 6 {
		return fmt.Errorf("course %s %s has invalid term %q", c.Subject, c.CourseNumber, c.Term)
	}
	return nil
}

// CourseID builds the stable catalog identifier, e.g. "CSCE121-201931".
func CourseID(dept, courseNum, term string) string {
	return strings.Join([]string{dept, courseNum, "-", term}, "")
}

// NormalizeText unescapes the HTML entities the registrar embeds in titles and
// descriptions and collapses runs of whitespace.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

// NormalizeCourse cleans the free-text fields of c in place.
func NormalizeCourse(c *models.CourseRecord) {
	c.Subject = strings.ToUpper(strings.TrimSpace(c.Subject))
	c.CourseNumber = strings.TrimSpace(c.CourseNumber)
	c.CourseTitle = NormalizeText(c.CourseTitle)
	c.SubjectDescription = NormalizeText(c.SubjectDescription)
	c.Description = NormalizeText(c.Description)
}

// CreditHoursText renders the credit hours of c, using the low-high range for
// variable credit sections.
func CreditHoursText(c *models.CourseRecord) string {
	if c.CreditHours != nil {
		return formatHours(*c.CreditHours)
	}
	if c.CreditHourLow != nil && c.CreditHourHigh != nil {
		return formatHours(*c.CreditHourLow) + "-" + formatHours(*c.CreditHourHigh)
	}
	if c.CreditHourLow != nil {
		return formatHours(*c.CreditHourLow)
	}
	return ""
}

// MeetingDays renders the days of a meeting as "MTWRFSU" letters.
func MeetingDays(m models.MeetingTime) string {
	var b strings.Builder
	days := []struct {
		on     bool
		letter byte
	}{
		{m.Monday, 'M'},
		{m.Tuesday, 'T'},
		{m.Wednesday, 'W'},
		{m.Thursday, 'R'},
		{m.Friday, 'F'},
		{m.Saturday, 'S'},
		{m.Sunday, 'U'},
	}
	for _, d := range days {
		if d.on {
			b.WriteByte(d.letter)
		}
	}
	return b.String()
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
