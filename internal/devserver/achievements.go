package devserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/jwt"
)

type achievementRequest struct {
	AchievementType string         `json:"achievementType" validate:"required,oneof=competition publication organization certification academic other"`
	Title           string         `json:"title" validate:"required,notblank,max=200"`
	Description     string         `json:"description" validate:"max=2000"`
	Details         map[string]any `json:"details"`
	Tags            []string       `json:"tags" validate:"dive,notblank"`
	Points          int            `json:"points" validate:"gte=0,lte=1000"`
}

type rejectRequest struct {
	RejectionNote string `json:"rejectionNote" validate:"required,notblank"`
}

var (
	errAchievementNotFound = echo.NewHTTPError(http.StatusNotFound, "achievement not found")
	errNotDraft            = echo.NewHTTPError(http.StatusBadRequest, "only draft achievements can be changed")
	errNotSubmitted        = echo.NewHTTPError(http.StatusBadRequest, "only submitted achievements can be reviewed")
	errForbidden           = echo.NewHTTPError(http.StatusForbidden, "forbidden")
)

// studentOf returns the student record of a student account. s.mu must be held.
func (s *Server) studentOf(userID string) *api.Student {
	for _, st := range s.students {
		if st.UserID == userID {
			return st
		}
	}
	return nil
}

// lecturerOf returns the lecturer record of a lecturer account. s.mu must be held.
func (s *Server) lecturerOf(userID string) *api.Lecturer {
	for _, l := range s.lecturers {
		if l.UserID == userID {
			return l
		}
	}
	return nil
}

// canViewStudent reports whether the caller may read studentID's data. s.mu
// must be held.
func (s *Server) canViewStudent(claims *jwt.Claims, studentID string) bool {
	st := s.students[studentID]
	if st == nil {
		return false
	}
	switch claims.Role {
	case jwt.RoleAdmin:
		return true
	case jwt.RoleLecturer:
		l := s.lecturerOf(claims.UserID())
		return l != nil && st.AdvisorID == l.ID
	default:
		return st.UserID == claims.UserID()
	}
}

// visibleAchievement loads id for the caller. s.mu must be held.
func (s *Server) visibleAchievement(claims *jwt.Claims, id string) (*api.Achievement, error) {
	a := s.achievements[id]
	if a == nil || a.Status == api.StatusDeleted {
		return nil, errAchievementNotFound
	}
	if !s.canViewStudent(claims, a.StudentID) {
		return nil, errForbidden
	}
	return a, nil
}

// ownedDraft loads id for its owning student and requires draft status. s.mu
// must be held.
func (s *Server) ownedDraft(claims *jwt.Claims, id string) (*api.Achievement, error) {
	a, err := s.visibleAchievement(claims, id)
	if err != nil {
		return nil, err
	}
	if st := s.studentOf(claims.UserID()); st == nil || st.ID != a.StudentID {
		return nil, errForbidden
	}
	if a.Status != api.StatusDraft {
		return nil, errNotDraft
	}
	return a, nil
}

// record appends a history entry. s.mu must be held.
func (s *Server) record(a *api.Achievement, by, note string) {
	s.history[a.ID] = append(s.history[a.ID], api.HistoryEntry{
		Status:    a.Status,
		ChangedBy: by,
		Note:      note,
		ChangedAt: a.UpdatedAt,
	})
}

func (s *Server) listAchievements(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	page, limit := 1, 10
	if err := echo.QueryParamsBinder(c).Int("page", &page).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paging parameters")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	status := api.AchievementStatus(c.QueryParam("status"))
	studentID := c.QueryParam("studentId")
	kind := c.QueryParam("type")
	search := strings.ToLower(c.QueryParam("search"))

	s.mu.Lock()
	matched := make([]api.Achievement, 0, len(s.order))
	for _, id := range s.order {
		a := s.achievements[id]
		if a.Status == api.StatusDeleted || !s.canViewStudent(claims, a.StudentID) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		if studentID != "" && a.StudentID != studentID {
			continue
		}
		if kind != "" && a.AchievementType != kind {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Title), search) {
			continue
		}
		matched = append(matched, *a)
	}
	s.mu.Unlock()

	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))

	return success(c, http.StatusOK, api.Page[api.Achievement]{
		Items: matched[start:end],
		Page:  page,
		Limit: limit,
		Total: len(matched),
	})
}

func (s *Server) getAchievement(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.visibleAchievement(claims, c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, *a)
}

func (s *Server) createAchievement(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}
	req := new(achievementRequest)
	if err := bind(c, req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.studentOf(claims.UserID())
	if st == nil {
		return errForbidden
	}

	s.nextID++
	now := s.now().UTC()
	a := &api.Achievement{
		ID:              fmt.Sprintf("ach-%d", s.nextID),
		StudentID:       st.ID,
		AchievementType: req.AchievementType,
		Title:           req.Title,
		Description:     req.Description,
		Details:         req.Details,
		Tags:            req.Tags,
		Points:          req.Points,
		Status:          api.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.achievements[a.ID] = a
	s.order = append(s.order, a.ID)
	s.record(a, claims.UserID(), "")

	return success(c, http.StatusCreated, *a)
}

func (s *Server) updateAchievement(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}
	req := new(achievementRequest)
	if err := bind(c, req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownedDraft(claims, c.Param("id"))
	if err != nil {
		return err
	}
	a.AchievementType = req.AchievementType
	a.Title = req.Title
	a.Description = req.Description
	a.Details = req.Details
	a.Tags = req.Tags
	a.Points = req.Points
	a.UpdatedAt = s.now().UTC()

	return success(c, http.StatusOK, *a)
}

func (s *Server) deleteAchievement(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownedDraft(claims, c.Param("id"))
	if err != nil {
		return err
	}
	a.Status = api.StatusDeleted
	a.UpdatedAt = s.now().UTC()
	s.record(a, claims.UserID(), "")

	return success(c, http.StatusOK, nil)
}

func (s *Server) submitAchievement(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.ownedDraft(claims, c.Param("id"))
	if err != nil {
		return err
	}
	now := s.now().UTC()
	a.Status = api.StatusSubmitted
	a.SubmittedAt = &now
	a.UpdatedAt = now
	s.record(a, claims.UserID(), "")

	return success(c, http.StatusOK, *a)
}

func (s *Server) verifyAchievement(c echo.Context) error {
	return s.review(c, api.StatusVerified, "")
}

func (s *Server) rejectAchievement(c echo.Context) error {
	req := new(rejectRequest)
	if err := bind(c, req); err != nil {
		return err
	}
	return s.review(c, api.StatusRejected, req.RejectionNote)
}

// review moves a submitted achievement to verified or rejected.
func (s *Server) review(c echo.Context, to api.AchievementStatus, note string) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.visibleAchievement(claims, c.Param("id"))
	if err != nil {
		return err
	}
	if a.Status != api.StatusSubmitted {
		return errNotSubmitted
	}

	now := s.now().UTC()
	a.Status = to
	a.UpdatedAt = now
	a.RejectionNote = note
	if to == api.StatusVerified {
		a.VerifiedBy = claims.UserID()
		a.VerifiedAt = &now
	}
	s.record(a, claims.UserID(), note)

	return success(c, http.StatusOK, *a)
}

func (s *Server) achievementHistory(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.visibleAchievement(claims, c.Param("id"))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, append([]api.HistoryEntry(nil), s.history[a.ID]...))
}
