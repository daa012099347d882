// Package registrartest provides an in-memory registrar for tests. It answers
// the session handshake, course search, subject and term listings, and course
// descriptions over an httpmock transport.
package registrartest

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aggieschedule/registrar-scraper/models"
)

// BaseURL is the registrar root the fake answers for.
const BaseURL = "https://registrar.test/StudentRegistrationSsb/ssb/"

const sessionCookie = "JSESSIONID"

// Server is a fake registrar. Its zero value is not usable; call New.
type Server struct {
	Transport *httpmock.MockTransport

	mu              sync.Mutex
	sessions        map[string]string // uniqueSessionId -> cookie value
	handshakes      int
	handshakeStatus int
	omitFwdURL      bool
	expireNew       bool
	expireNext      bool
	expireStatus    int
	courseRequests  map[string]int
	courses         map[string][]models.CourseRecord
	delays          map[string]time.Duration
	failures        map[string]int
	foreignSubject  map[string]string
	departments     []models.DepartmentRecord
	terms           []models.TermRecord
	descriptions    map[string]string
	descriptionHits map[string]int
	descFailures    map[string]failure
}

type failure struct {
	status int
	times  int
}

// New returns a fake registrar with no data.
func New() *Server {
	s := &Server{
		Transport:       httpmock.NewMockTransport(),
		sessions:        make(map[string]string),
		handshakeStatus: http.StatusOK,
		courseRequests:  make(map[string]int),
		courses:         make(map[string][]models.CourseRecord),
		delays:          make(map[string]time.Duration),
		failures:        make(map[string]int),
		foreignSubject:  make(map[string]string),
		descriptions:    make(map[string]string),
		descriptionHits: make(map[string]int),
		descFailures:    make(map[string]failure),
	}
	s.Transport.RegisterRegexpResponder(http.MethodPost, regexp.MustCompile(`/term/search`), s.handshake)
	s.Transport.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/searchResults/searchResults`), s.search)
	s.Transport.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/classSearch/get_subject`), s.subjects)
	s.Transport.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/classSearch/getTerms`), s.listTerms)
	s.Transport.RegisterRegexpResponder(http.MethodPost, regexp.MustCompile(`/searchResults/getCourseDescription`), s.description)
	return s
}

// AddCourses appends sections to dept. Records without a subject get dept.
func (s *Server) AddCourses(dept string, records ...models.CourseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.Subject == "" {
			r.Subject = dept
		}
		s.courses[dept] = append(s.courses[dept], r)
	}
}

// Delay makes every search for dept wait d before answering.
func (s *Server) Delay(dept string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[dept] = d
}

// Fail makes every search for dept answer with status.
func (s *Server) Fail(dept string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[dept] = status
}

// MislabelSubject makes searches for dept return records tagged with subject.
func (s *Server) MislabelSubject(dept, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreignSubject[dept] = subject
}

// SetHandshakeStatus makes the handshake answer with status.
func (s *Server) SetHandshakeStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeStatus = status
}

// OmitFwdURL drops fwdURL from handshake responses.
func (s *Server) OmitFwdURL() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitFwdURL = true
}

// ExpireSessions invalidates every session issued so far. Searches with an
// expired session get the login page, or status when it is non-zero.
func (s *Server) ExpireSessions(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]string)
	s.expireStatus = status
}

// ExpireNewSessions makes every future session expire immediately.
func (s *Server) ExpireNewSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireNew = true
}

// ExpireNextSession makes the next session issued expire before its first
// search. Searches with it get the login page, or status when it is non-zero.
func (s *Server) ExpireNextSession(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireNext = true
	s.expireStatus = status
}

// SetDepartments replaces the subject list.
func (s *Server) SetDepartments(departments ...models.DepartmentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments = departments
}

// SetTerms replaces the term list.
func (s *Server) SetTerms(terms ...models.TermRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms = terms
}

// SetDescription sets the catalog text returned for crn.
func (s *Server) SetDescription(crn, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions[crn] = text
}

// FailDescription makes the next times description lookups for crn answer with status.
func (s *Server) FailDescription(crn string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descFailures[crn] = failure{status: status, times: times}
}

// Handshakes returns the number of handshakes answered.
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// CourseRequests returns the number of searches made for dept.
func (s *Server) CourseRequests(dept string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.courseRequests[dept]
}

// DescriptionRequests returns the number of description lookups for crn.
func (s *Server) DescriptionRequests(crn string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptionHits[crn]
}

func (s *Server) handshake(req *http.Request) (*http.Response, error) {
	if err := req.ParseForm(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakes++

	if s.handshakeStatus != http.StatusOK {
		return httpmock.NewStringResponse(s.handshakeStatus, "unavailable"), nil
	}
	if req.URL.Query().Get("mode") != "search" || req.PostForm.Get("dataType") != "json" {
		return httpmock.NewStringResponse(http.StatusBadRequest, "bad handshake"), nil
	}
	id := req.PostForm.Get("uniqueSessionId")
	if id == "" || req.PostForm.Get("term") == "" {
		return httpmock.NewStringResponse(http.StatusBadRequest, "missing term or session id"), nil
	}

	cookie := fmt.Sprintf("session-%d", s.handshakes)
	if !s.expireNew && !s.expireNext {
		s.sessions[id] = cookie
	}
	s.expireNext = false

	body := map[string]string{}
	if !s.omitFwdURL {
		body["fwdURL"] = "/StudentRegistrationSsb/ssb/classSearch/classSearch"
	}
	res, err := httpmock.NewJsonResponse(http.StatusOK, body)
	if err != nil {
		return nil, err
	}
	res.Header.Add("Set-Cookie", (&http.Cookie{Name: sessionCookie, Value: cookie, Path: "/"}).String())
	return res, nil
}

type searchBody struct {
	Success     bool                  `json:"success"`
	TotalCount  int                   `json:"totalCount"`
	PageOffset  int                   `json:"pageOffset"`
	PageMaxSize int                   `json:"pageMaxSize"`
	Data        []models.CourseRecord `json:"data"`
}

const loginPage = `<!DOCTYPE html><html><head><title>Login</title></head><body>Session expired</body></html>`

func (s *Server) search(req *http.Request) (*http.Response, error) {
	q := req.URL.Query()
	dept := q.Get("txt_subject")

	s.mu.Lock()
	s.courseRequests[dept]++
	delay := s.delays[dept]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.validSession(req, q.Get("uniqueSessionId")) {
		if s.expireStatus != 0 {
			return httpmock.NewStringResponse(s.expireStatus, ""), nil
		}
		res := httpmock.NewStringResponse(http.StatusOK, loginPage)
		res.Header.Set("Content-Type", "text/html")
		return res, nil
	}
	if status, ok := s.failures[dept]; ok {
		return httpmock.NewStringResponse(status, "error"), nil
	}

	offset, _ := strconv.Atoi(q.Get("pageOffset"))
	size, _ := strconv.Atoi(q.Get("pageMaxSize"))
	all := s.courses[dept]
	page := []models.CourseRecord{}
	if offset < len(all) {
		end := len(all)
		if size > 0 && offset+size < end {
			end = offset + size
		}
		page = append(page, all[offset:end]...)
	}
	if subject, ok := s.foreignSubject[dept]; ok {
		for i := range page {
			page[i].Subject = subject
		}
	}

	return httpmock.NewJsonResponse(http.StatusOK, searchBody{
		Success:     true,
		TotalCount:  len(all),
		PageOffset:  offset,
		PageMaxSize: size,
		Data:        page,
	})
}

// validSession must be called with s.mu held.
func (s *Server) validSession(req *http.Request, id string) bool {
	want, ok := s.sessions[id]
	if !ok {
		return false
	}
	cookie, err := req.Cookie(sessionCookie)
	return err == nil && cookie.Value == want
}

func (s *Server) subjects(req *http.Request) (*http.Response, error) {
	q := req.URL.Query()
	if q.Get("term") == "" {
		return httpmock.NewStringResponse(http.StatusBadRequest, "term required"), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return httpmock.NewJsonResponse(http.StatusOK, window(s.departments, q))
}

func (s *Server) listTerms(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return httpmock.NewJsonResponse(http.StatusOK, window(s.terms, req.URL.Query()))
}

// window applies the 1-based offset and max parameters of the listing endpoints.
func window[T any](all []T, q map[string][]string) []T {
	get := func(key string) int {
		if v, ok := q[key]; ok && len(v) > 0 {
			n, _ := strconv.Atoi(v[0])
			return n
		}
		return 0
	}
	offset, size := get("offset"), get("max")
	if offset < 1 {
		offset = 1
	}
	out := []T{}
	start := (offset - 1) * size
	if size <= 0 || start >= len(all) {
		return out
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return append(out, all[start:end]...)
}

func (s *Server) description(req *http.Request) (*http.Response, error) {
	if err := req.ParseForm(); err != nil {
		return nil, err
	}
	crn := req.PostForm.Get("courseReferenceNumber")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptionHits[crn]++
	if f := s.descFailures[crn]; f.times > 0 {
		f.times--
		s.descFailures[crn] = f
		return httpmock.NewStringResponse(f.status, ""), nil
	}
	text, ok := s.descriptions[crn]
	if !ok {
		return httpmock.NewStringResponse(http.StatusNotFound, ""), nil
	}
	res := httpmock.NewStringResponse(http.StatusOK,
		`<section aria-labelledby="courseDescription">`+text+`</section>`)
	res.Header.Set("Content-Type", "text/html")
	return res, nil
}
