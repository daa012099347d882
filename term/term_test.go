package term

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		year       string
		semester   Semester
		location   Location
		wantSuffix string
	}{
		{name: "fall college station", year: "2019", semester: Fall, location: CollegeStation, wantSuffix: "31"},
		{name: "spring galveston", year: "2019", semester: Spring, location: Galveston, wantSuffix: "12"},
		{name: "summer college station", year: "2020", semester: Summer, location: CollegeStation, wantSuffix: "21"},
		{name: "fall qatar", year: "2021", semester: Fall, location: Qatar, wantSuffix: "33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Resolve(tt.year, tt.semester, tt.location)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(code) != 6 {
				t.Fatalf("code %q length = %d, want 6", code, len(code))
			}
			if code[:4] != tt.year || code[4:] != tt.wantSuffix {
				t.Fatalf("code = %q, want %s%s", code, tt.year, tt.wantSuffix)
			}
		})
	}
}

func TestResolveInvalidYear(t *testing.T) {
	for _, year := range []string{"9", "", "201", "20190", "20a9"} {
		t.Run(year, func(t *testing.T) {
			_, err := Resolve(year, Fall, CollegeStation)
			if !errors.Is(err, ErrInvalidYearFormat) {
				t.Fatalf("Resolve(%q) error = %v, want ErrInvalidYearFormat", year, err)
			}
		})
	}
}

func TestResolveUnsupportedCombination(t *testing.T) {
	_, err := Resolve("2019", Semester("winter"), CollegeStation)
	if !errors.Is(err, ErrUnsupportedTermCombination) {
		t.Fatalf("error = %v, want ErrUnsupportedTermCombination", err)
	}
	_, err = Resolve("2019", Fall, Location("mcallen"))
	if !errors.Is(err, ErrUnsupportedTermCombination) {
		t.Fatalf("error = %v, want ErrUnsupportedTermCombination", err)
	}
}

func TestNewAndParseRoundTrip(t *testing.T) {
	built, err := New("2019", Fall, CollegeStation)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if built.Code() != "201931" {
		t.Fatalf("Code() = %q, want 201931", built.Code())
	}
	if built.String() != "Fall 2019 - College Station" {
		t.Fatalf("String() = %q", built.String())
	}

	parsed, err := Parse("201912")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Semester() != Spring || parsed.Location() != Galveston || parsed.Year() != "2019" {
		t.Fatalf("Parse(201912) = %+v", parsed)
	}

	if _, err := Parse("2019"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("Parse(short) error = %v, want ErrInvalidCode", err)
	}
	if _, err := Parse("201999"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("Parse(unknown suffix) error = %v, want ErrInvalidCode", err)
	}
}

func TestParseSemesterAndLocation(t *testing.T) {
	if sem, err := ParseSemester(" Fall "); err != nil || sem != Fall {
		t.Fatalf("ParseSemester = %q, %v", sem, err)
	}
	if _, err := ParseSemester("winter"); err == nil {
		t.Fatalf("expected error for winter")
	}
	if loc, err := ParseLocation("College Station"); err != nil || loc != CollegeStation {
		t.Fatalf("ParseLocation = %q, %v", loc, err)
	}
	if loc, err := ParseLocation("galveston"); err != nil || loc != Galveston {
		t.Fatalf("ParseLocation = %q, %v", loc, err)
	}
	if _, err := ParseLocation("austin"); err == nil {
		t.Fatalf("expected error for austin")
	}
}
