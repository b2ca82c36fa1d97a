package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrEthical07/authclient"
)

// Achievements wraps the /achievements endpoints.
type Achievements struct {
	client *authclient.Client
}

// ListOptions filters and pages List. Zero values are omitted.
type ListOptions struct {
	Page      int
	Limit     int
	Status    AchievementStatus
	StudentID string
	Type      string
	Search    string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Status != "" {
		q.Set("status", string(o.Status))
	}
	if o.StudentID != "" {
		q.Set("studentId", o.StudentID)
	}
	if o.Type != "" {
		q.Set("type", o.Type)
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	return q
}

func (s *Achievements) List(ctx context.Context, opts ListOptions) (Page[Achievement], error) {
	return do[Page[Achievement]](ctx, s.client, call{method: http.MethodGet, path: "/achievements", query: opts.values()})
}

func (s *Achievements) Get(ctx context.Context, id string) (Achievement, error) {
	return do[Achievement](ctx, s.client, call{method: http.MethodGet, path: "/achievements/" + escape(id)})
}

// Create stores a new draft achievement for the signed-in student.
func (s *Achievements) Create(ctx context.Context, in AchievementInput) (Achievement, error) {
	return do[Achievement](ctx, s.client, call{method: http.MethodPost, path: "/achievements", body: in})
}

// Update replaces the writable fields of a draft achievement.
func (s *Achievements) Update(ctx context.Context, id string, in AchievementInput) (Achievement, error) {
	return do[Achievement](ctx, s.client, call{method: http.MethodPut, path: "/achievements/" + escape(id), body: in})
}

// Delete removes a draft achievement. Every backend failure is returned as is.
func (s *Achievements) Delete(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, s.client, call{method: http.MethodDelete, path: "/achievements/" + escape(id)})
	return err
}

// Submit moves a draft to submitted.
func (s *Achievements) Submit(ctx context.Context, id string) (Achievement, error) {
	return do[Achievement](ctx, s.client, call{method: http.MethodPost, path: "/achievements/" + escape(id) + "/submit"})
}

// Verify marks a submitted achievement verified. Lecturers and admins only.
func (s *Achievements) Verify(ctx context.Context, id string) (Achievement, error) {
	return do[Achievement](ctx, s.client, call{method: http.MethodPost, path: "/achievements/" + escape(id) + "/verify"})
}

type rejectRequest struct {
	RejectionNote string `json:"rejectionNote"`
}

// Reject marks a submitted achievement rejected with note.
func (s *Achievements) Reject(ctx context.Context, id, note string) (Achievement, error) {
	return do[Achievement](ctx, s.client, call{
		method: http.MethodPost,
		path:   "/achievements/" + escape(id) + "/reject",
		body:   rejectRequest{RejectionNote: note},
	})
}

func (s *Achievements) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	return do[[]HistoryEntry](ctx, s.client, call{method: http.MethodGet, path: "/achievements/" + escape(id) + "/history"})
}
