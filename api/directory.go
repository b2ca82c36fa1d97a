package api

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authclient"
)

// Students wraps the /students endpoints.
type Students struct {
	client *authclient.Client
}

func (s *Students) List(ctx context.Context) ([]Student, error) {
	return do[[]Student](ctx, s.client, call{method: http.MethodGet, path: "/students"})
}

func (s *Students) Get(ctx context.Context, id string) (Student, error) {
	return do[Student](ctx, s.client, call{method: http.MethodGet, path: "/students/" + escape(id)})
}

// Achievements lists the achievements of one student.
func (s *Students) Achievements(ctx context.Context, studentID string) ([]Achievement, error) {
	return do[[]Achievement](ctx, s.client, call{method: http.MethodGet, path: "/students/" + escape(studentID) + "/achievements"})
}

type advisorRequest struct {
	AdvisorID string `json:"advisorId"`
}

// SetAdvisor assigns lecturerID as the student's academic advisor. Admin only.
func (s *Students) SetAdvisor(ctx context.Context, studentID, lecturerID string) (Student, error) {
	return do[Student](ctx, s.client, call{
		method: http.MethodPut,
		path:   "/students/" + escape(studentID) + "/advisor",
		body:   advisorRequest{AdvisorID: lecturerID},
	})
}

// Lecturers wraps the /lecturers endpoints.
type Lecturers struct {
	client *authclient.Client
}

func (s *Lecturers) List(ctx context.Context) ([]Lecturer, error) {
	return do[[]Lecturer](ctx, s.client, call{method: http.MethodGet, path: "/lecturers"})
}

// Advisees lists the students advised by lecturerID.
func (s *Lecturers) Advisees(ctx context.Context, lecturerID string) ([]Student, error) {
	return do[[]Student](ctx, s.client, call{method: http.MethodGet, path: "/lecturers/" + escape(lecturerID) + "/advisees"})
}

// Reports wraps the /reports endpoints.
type Reports struct {
	client *authclient.Client
}

func (s *Reports) Statistics(ctx context.Context) (Statistics, error) {
	return do[Statistics](ctx, s.client, call{method: http.MethodGet, path: "/reports/statistics"})
}

func (s *Reports) StudentReport(ctx context.Context, studentID string) (StudentReport, error) {
	return do[StudentReport](ctx, s.client, call{method: http.MethodGet, path: "/reports/student/" + escape(studentID)})
}
