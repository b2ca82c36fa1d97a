package devserver

import (
	"cmp"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/jwt"
)

type advisorRequest struct {
	AdvisorID string `json:"advisorId" validate:"required,notblank"`
}

var errStudentNotFound = echo.NewHTTPError(http.StatusNotFound, "student not found")

// sortedStudents returns copies ordered by student id. s.mu must be held.
func (s *Server) sortedStudents(keep func(*api.Student) bool) []api.Student {
	out := make([]api.Student, 0, len(s.students))
	for _, st := range s.students {
		if keep == nil || keep(st) {
			out = append(out, *st)
		}
	}
	slices.SortFunc(out, func(a, b api.Student) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// achievementsOf returns studentID's non-deleted achievements in creation
// order. s.mu must be held.
func (s *Server) achievementsOf(studentID string) []api.Achievement {
	var out []api.Achievement
	for _, id := range s.order {
		a := s.achievements[id]
		if a.StudentID == studentID && a.Status != api.StatusDeleted {
			out = append(out, *a)
		}
	}
	return out
}

func (s *Server) listStudents(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return success(c, http.StatusOK, s.sortedStudents(func(st *api.Student) bool {
		return s.canViewStudent(claims, st.ID)
	}))
}

func (s *Server) getStudent(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.students[c.Param("id")]
	if st == nil {
		return errStudentNotFound
	}
	if !s.canViewStudent(claims, st.ID) {
		return errForbidden
	}
	return success(c, http.StatusOK, *st)
}

func (s *Server) studentAchievements(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	if s.students[id] == nil {
		return errStudentNotFound
	}
	if !s.canViewStudent(claims, id) {
		return errForbidden
	}
	return success(c, http.StatusOK, s.achievementsOf(id))
}

func (s *Server) setAdvisor(c echo.Context) error {
	req := new(advisorRequest)
	if err := bind(c, req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.students[c.Param("id")]
	if st == nil {
		return errStudentNotFound
	}
	if s.lecturers[req.AdvisorID] == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "advisor not found")
	}
	st.AdvisorID = req.AdvisorID

	return success(c, http.StatusOK, *st)
}

func (s *Server) listLecturers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]api.Lecturer, 0, len(s.lecturers))
	for _, l := range s.lecturers {
		out = append(out, *l)
	}
	slices.SortFunc(out, func(a, b api.Lecturer) int { return cmp.Compare(a.ID, b.ID) })

	return success(c, http.StatusOK, out)
}

func (s *Server) lecturerAdvisees(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := c.Param("id")
	l := s.lecturers[id]
	if l == nil {
		return echo.NewHTTPError(http.StatusNotFound, "lecturer not found")
	}
	if claims.Role != jwt.RoleAdmin && l.UserID != claims.UserID() {
		return errForbidden
	}

	return success(c, http.StatusOK, s.sortedStudents(func(st *api.Student) bool {
		return st.AdvisorID == id
	}))
}

func (s *Server) statistics(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := api.Statistics{ByStatus: map[string]int{}, ByType: map[string]int{}}
	points := map[string]int{}
	for _, id := range s.order {
		a := s.achievements[id]
		if a.Status == api.StatusDeleted || !s.canViewStudent(claims, a.StudentID) {
			continue
		}
		stats.Total++
		stats.ByStatus[string(a.Status)]++
		stats.ByType[a.AchievementType]++
		if a.Status == api.StatusVerified {
			points[a.StudentID] += a.Points
		}
	}

	for studentID, p := range points {
		stats.TopStudents = append(stats.TopStudents, api.StudentPoints{
			StudentID: studentID,
			Name:      s.students[studentID].Name,
			Points:    p,
		})
	}
	slices.SortFunc(stats.TopStudents, func(a, b api.StudentPoints) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.StudentID, b.StudentID)
	})
	if len(stats.TopStudents) > 5 {
		stats.TopStudents = stats.TopStudents[:5]
	}

	return success(c, http.StatusOK, stats)
}

func (s *Server) studentReport(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.students[c.Param("id")]
	if st == nil {
		return errStudentNotFound
	}
	if !s.canViewStudent(claims, st.ID) {
		return errForbidden
	}

	report := api.StudentReport{
		Student:      *st,
		Achievements: s.achievementsOf(st.ID),
		ByStatus:     map[string]int{},
	}
	for _, a := range report.Achievements {
		report.ByStatus[string(a.Status)]++
		if a.Status == api.StatusVerified {
			report.TotalPoints += a.Points
		}
	}
	if report.Achievements == nil {
		report.Achievements = []api.Achievement{}
	}

	return success(c, http.StatusOK, report)
}
