// Package term encodes academic terms into the registrar's 6-character term codes.
package term

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidYearFormat is returned when a year is not exactly four digits.
	ErrInvalidYearFormat = errors.New("term: year must be exactly 4 digits")
	// ErrUnsupportedTermCombination is returned for a semester/location pair the
	// registrar does not issue term codes for.
	ErrUnsupportedTermCombination = errors.New("term: unsupported semester/location combination")
	// ErrInvalidCode is returned when a term code cannot be decoded.
	ErrInvalidCode = errors.New("term: invalid term code")
)

// Semester is the academic period within a year.
type Semester string

const (
	Spring Semester = "spring"
	Summer Semester = "summer"
	Fall   Semester = "fall"
)

// Location is the campus a term is offered at.
type Location string

const (
	CollegeStation Location = "college_station"
	Galveston      Location = "galveston"
	Qatar          Location = "qatar"
)

type key struct {
	semester Semester
	location Location
}

// suffixes holds the last two characters of a term code: the first digit is the
// semester, the second the campus.
var suffixes = map[key]string{
	{Spring, CollegeStation}: "11",
	{Spring, Galveston}:      "12",
	{Spring, Qatar}:          "13",
	{Summer, CollegeStation}: "21",
	{Summer, Galveston}:      "22",
	{Summer, Qatar}:          "23",
	{Fall, CollegeStation}:   "31",
	{Fall, Galveston}:        "32",
	{Fall, Qatar}:            "33",
}

// Term is an immutable (year, semester, location) triple and its code.
type Term struct {
	year     string
	semester Semester
	location Location
	code     string
}

// New validates the inputs and builds a Term.
func New(year string, semester Semester, location Location) (Term, error) {
	code, err := Resolve(year, semester, location)
	if err != nil {
		return Term{}, err
	}
	return Term{year: year, semester: semester, location: location, code: code}, nil
}

// Resolve maps a year, semester and location to the registrar term code.
func Resolve(year string, semester Semester, location Location) (string, error) {
	if err := validateYear(year); err != nil {
		return "", err
	}
	suffix, ok := suffixes[key{semester, location}]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedTermCombination, semester, location)
	}
	return year + suffix, nil
}

// Parse decodes a 6-character term code such as "201931".
func Parse(code string) (Term, error) {
	if len(code) != 6 {
		return Term{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	year, suffix := code[:4], code[4:]
	if err := validateYear(year); err != nil {
		return Term{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for k, v := range suffixes {
		if v == suffix {
			return Term{year: year, semester: k.semester, location: k.location, code: code}, nil
		}
	}
	return Term{}, fmt.Errorf("%w: %q", ErrInvalidCode, code)
}

// ParseSemester accepts a case-insensitive semester name.
func ParseSemester(s string) (Semester, error) {
	switch sem := Semester(normalize(s)); sem {
	case Spring, Summer, Fall:
		return sem, nil
	}
	return "", fmt.Errorf("unknown semester %q", s)
}

// ParseLocation accepts a campus name such as "college station" or "galveston".
func ParseLocation(s string) (Location, error) {
	switch loc := Location(normalize(s)); loc {
	case CollegeStation, Galveston, Qatar:
		return loc, nil
	}
	return "", fmt.Errorf("unknown location %q", s)
}

// Code returns the registrar term code.
func (t Term) Code() string { return t.code }

// Year returns the 4-digit year.
func (t Term) Year() string { return t.year }

// Semester returns the term's semester.
func (t Term) Semester() Semester { return t.semester }

// Location returns the term's campus.
func (t Term) Location() Location { return t.location }

// IsZero reports whether t was never constructed.
func (t Term) IsZero() bool { return t.code == "" }

// String renders the term the way the registrar describes it, e.g. "Fall 2019 - College Station".
func (t Term) String() string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s %s - %s", title(string(t.semester)), t.year, title(string(t.location)))
}

func validateYear(year string) error {
	if len(year) != 4 {
		return fmt.Errorf("%w: %q", ErrInvalidYearFormat, year)
	}
	for _, r := range year {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidYearFormat, year)
		}
	}
	return nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

func title(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
