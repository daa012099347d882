// Package models defines the records exchanged with the registrar service.
package models

// CourseRecord is one section as returned by the registrar's searchResults endpoint.
// Fields the service may send as null are pointers; unknown fields are ignored.
type CourseRecord struct {
	ID                      int              `json:"id"`
	Term                    string           `json:"term"`
	TermDesc                string           `json:"termDesc"`
	CourseReferenceNumber   string           `json:"courseReferenceNumber"`
	PartOfTerm              string           `json:"partOfTerm"`
	CourseNumber            string           `json:"courseNumber"`
	Subject                 string           `json:"subject"`
	SubjectDescription      string           `json:"subjectDescription"`
	SequenceNumber          string           `json:"sequenceNumber"`
	CampusDescription       string           `json:"campusDescription"`
	ScheduleTypeDescription string           `json:"scheduleTypeDescription"`
	CourseTitle             string           `json:"courseTitle"`
	CreditHours             *float64         `json:"creditHours"`
	CreditHourLow           *float64         `json:"creditHourLow"`
	CreditHourHigh          *float64         `json:"creditHourHigh"`
	CreditHourIndicator     *string          `json:"creditHourIndicator"`
	MaximumEnrollment       int              `json:"maximumEnrollment"`
	Enrollment              int              `json:"enrollment"`
	SeatsAvailable          int              `json:"seatsAvailable"`
	WaitCapacity            int              `json:"waitCapacity"`
	WaitCount               int              `json:"waitCount"`
	WaitAvailable           int              `json:"waitAvailable"`
	OpenSection             bool             `json:"openSection"`
	IsSectionLinked         bool             `json:"isSectionLinked"`
	LinkIdentifier          *string          `json:"linkIdentifier"`
	SubjectCourse           string           `json:"subjectCourse"`
	Faculty                 []Faculty        `json:"faculty"`
	MeetingsFaculty         []MeetingFaculty `json:"meetingsFaculty"`

	// Description is filled in by the catalog scraper; the search endpoint never sends it.
	Description string `json:"description,omitempty"`
}

// Key identifies a section uniquely across terms.
func (c *CourseRecord) Key() string {
	return c.Term + ":" + c.CourseReferenceNumber
}

// PrimaryInstructor returns the display name of the primary faculty member, if any.
func (c *CourseRecord) PrimaryInstructor() string {
	for _, f := range c.Faculty {
		if f.PrimaryIndicator {
			return f.DisplayName
		}
	}
	if len(c.Faculty) > 0 {
		return c.Faculty[0].DisplayName
	}
	return ""
}

// Faculty is an instructor assigned to a section.
type Faculty struct {
	BannerID              string  `json:"bannerId"`
	Category              *string `json:"category"`
	CourseReferenceNumber string  `json:"courseReferenceNumber"`
	DisplayName           string  `json:"displayName"`
	EmailAddress          *string `json:"emailAddress"`
	PrimaryIndicator      bool    `json:"primaryIndicator"`
	Term                  string  `json:"term"`
}

// MeetingFaculty pairs a meeting time with the faculty teaching it.
type MeetingFaculty struct {
	Category              string      `json:"category"`
	CourseReferenceNumber string      `json:"courseReferenceNumber"`
	Faculty               []Faculty   `json:"faculty"`
	MeetingTime           MeetingTime `json:"meetingTime"`
	Term                  string      `json:"term"`
}

// MeetingTime is one recurring meeting of a section.
type MeetingTime struct {
	BeginTime              *string  `json:"beginTime"`
	EndTime                *string  `json:"endTime"`
	StartDate              string   `json:"startDate"`
	EndDate                string   `json:"endDate"`
	Building               *string  `json:"building"`
	BuildingDescription    *string  `json:"buildingDescription"`
	Room                   *string  `json:"room"`
	Campus                 *string  `json:"campus"`
	CampusDescription      *string  `json:"campusDescription"`
	MeetingScheduleType    string   `json:"meetingScheduleType"`
	MeetingTypeDescription string   `json:"meetingTypeDescription"`
	HoursWeek              *float64 `json:"hoursWeek"`
	CreditHourSession      *float64 `json:"creditHourSession"`
	Monday                 bool     `json:"monday"`
	Tuesday                bool     `json:"tuesday"`
	Wednesday              bool     `json:"wednesday"`
	Thursday               bool     `json:"thursday"`
	Friday                 bool     `json:"friday"`
	Saturday               bool     `json:"saturday"`
	Sunday                 bool     `json:"sunday"`
}
