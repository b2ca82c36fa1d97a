package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/internal/devserver"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/session"
	"github.com/MrEthical07/authclient/tokenstore"
)

type stack struct {
	server   *devserver.Server
	api      *api.API
	client   *authclient.Client
	sessions *session.Manager
	store    *tokenstore.Memory
	baseURL  string
}

func newStack(t *testing.T, username string) *stack {
	t.Helper()

	srv, err := devserver.New(devserver.Options{})
	if err != nil {
		t.Fatalf("new devserver: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	store := tokenstore.NewMemory()
	sessions, err := session.NewManager(store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	endpoint, err := refresh.NewEndpoint(refresh.Config{URL: ts.URL + "/api/v1/auth/refresh"})
	if err != nil {
		t.Fatalf("new refresh endpoint: %v", err)
	}
	client, err := authclient.New().
		WithBaseURL(ts.URL).
		WithTokenStore(store).
		WithRefreshEndpoint(endpoint).
		WithSessionTerminator(sessions).
		Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(client.Close)

	s := &stack{server: srv, api: api.New(client, sessions), client: client, sessions: sessions, store: store, baseURL: ts.URL}
	if username != "" {
		if _, err := s.api.Auth.Login(context.Background(), username, devserver.DefaultPassword); err != nil {
			t.Fatalf("login %s: %v", username, err)
		}
	}
	return s
}

// as returns a second API over the same server signed in as username.
func (s *stack) as(t *testing.T, username string) *api.API {
	t.Helper()

	pair, err := s.server.IssuePair(username)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	other := tokenstore.NewMemoryWith(pair)
	client, err := authclient.New().
		WithConfig(s.clientConfig()).
		WithTokenStore(other).
		WithRefreshEndpoint(authclient.RefreshFunc(func(context.Context, string) (authclient.TokenPair, error) {
			return authclient.TokenPair{}, errors.New("not used")
		})).
		WithSessionTerminator(authclient.SessionTerminatorFunc(func(context.Context) {})).
		Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(client.Close)
	return api.New(client, nil)
}

func (s *stack) clientConfig() authclient.Config {
	cfg := authclient.DefaultConfig()
	cfg.BaseURL = s.baseURL
	return cfg
}

func TestLoginPersistsSession(t *testing.T) {
	s := newStack(t, devserver.StudentUsername)

	if s.sessions.State() != session.StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", s.sessions.State())
	}
	user, ok := s.sessions.User()
	if !ok || user.Username != devserver.StudentUsername {
		t.Fatalf("unexpected user %+v", user)
	}
	if !s.store.Pair().Complete() {
		t.Fatalf("expected stored pair")
	}

	profile, err := s.api.Auth.Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.ID != user.ID || profile.Role != "student" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestLoginBadPasswordNeverRefreshes(t *testing.T) {
	s := newStack(t, "")

	_, err := s.api.Auth.Login(context.Background(), devserver.StudentUsername, "wrong")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if apiErr.Message != "invalid username or password" {
		t.Fatalf("expected backend message, got %q", apiErr.Message)
	}
	if !errors.Is(err, authclient.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized in chain")
	}
	if s.server.RefreshCalls() != 0 {
		t.Fatalf("login failure must not refresh")
	}
	if s.sessions.State() != session.StateAnonymous {
		t.Fatalf("expected anonymous after failed login")
	}
}

func TestAchievementWorkflow(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, devserver.StudentUsername)
	lecturer := s.as(t, devserver.LecturerUsername)

	created, err := s.api.Achievements.Create(ctx, api.AchievementInput{
		AchievementType: "competition",
		Title:           "Juara 1 Hackathon Nasional",
		Details:         map[string]any{"rank": 1, "level": "national"},
		Tags:            []string{"hackathon"},
		Points:          50,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != api.StatusDraft || created.StudentID != "s-1" {
		t.Fatalf("unexpected created %+v", created)
	}

	updated, err := s.api.Achievements.Update(ctx, created.ID, api.AchievementInput{
		AchievementType: "competition",
		Title:           "Juara 1 Hackathon Nasional 2024",
		Points:          60,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Juara 1 Hackathon Nasional 2024" || updated.Points != 60 {
		t.Fatalf("unexpected updated %+v", updated)
	}

	if _, err := s.api.Achievements.Submit(ctx, created.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	verified, err := lecturer.Achievements.Verify(ctx, created.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != api.StatusVerified || verified.VerifiedAt == nil {
		t.Fatalf("unexpected verified %+v", verified)
	}

	history, err := s.api.Achievements.History(ctx, created.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []api.AchievementStatus{api.StatusDraft, api.StatusSubmitted, api.StatusVerified}
	if len(history) != len(want) {
		t.Fatalf("expected %d history entries, got %d", len(want), len(history))
	}
	for i, h := range history {
		if h.Status != want[i] {
			t.Fatalf("history[%d]: expected %s, got %s", i, want[i], h.Status)
		}
	}

	got, err := s.api.Achievements.Get(ctx, created.ID)
	if err != nil || got.Status != api.StatusVerified {
		t.Fatalf("get after verify: %+v %v", got, err)
	}
}

func TestRejectRequiresNote(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, devserver.StudentUsername)
	lecturer := s.as(t, devserver.LecturerUsername)

	a, _ := s.api.Achievements.Create(ctx, api.AchievementInput{AchievementType: "publication", Title: "Paper"})
	_, _ = s.api.Achievements.Submit(ctx, a.ID)

	_, err := lecturer.Achievements.Reject(ctx, a.ID, "")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest || apiErr.Fields["rejectionNote"] == "" {
		t.Fatalf("expected field validation error, got %v", err)
	}

	rejected, err := lecturer.Achievements.Reject(ctx, a.ID, "bukti kurang lengkap")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != api.StatusRejected || rejected.RejectionNote != "bukti kurang lengkap" {
		t.Fatalf("unexpected rejected %+v", rejected)
	}
}

func TestDeleteReturnsBackendErrorUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, devserver.StudentUsername)

	draft, _ := s.api.Achievements.Create(ctx, api.AchievementInput{AchievementType: "other", Title: "Draft"})
	if err := s.api.Achievements.Delete(ctx, draft.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := s.api.Achievements.Get(ctx, draft.ID); err == nil {
		t.Fatalf("expected deleted achievement to be gone")
	}

	submitted, _ := s.api.Achievements.Create(ctx, api.AchievementInput{AchievementType: "other", Title: "Submitted"})
	_, _ = s.api.Achievements.Submit(ctx, submitted.ID)

	err := s.api.Achievements.Delete(ctx, submitted.ID)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if apiErr.Message != "only draft achievements can be changed" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}

func TestListOptionsFilter(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, devserver.StudentUsername)

	for _, title := range []string{"Lomba Debat", "Lomba Robotik", "Sertifikat AWS"} {
		if _, err := s.api.Achievements.Create(ctx, api.AchievementInput{AchievementType: "competition", Title: title}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	page, err := s.api.Achievements.List(ctx, api.ListOptions{Search: "lomba"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 matches, got %+v", page)
	}

	_, _ = s.api.Achievements.Submit(ctx, page.Items[0].ID)
	page, _ = s.api.Achievements.List(ctx, api.ListOptions{Status: api.StatusSubmitted})
	if page.Total != 1 {
		t.Fatalf("expected 1 submitted, got %d", page.Total)
	}

	page, _ = s.api.Achievements.List(ctx, api.ListOptions{Page: 2, Limit: 2})
	if page.Total != 3 || len(page.Items) != 1 || page.Page != 2 {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func TestExpiredTokenRefreshedTransparently(t *testing.T) {
	s := newStack(t, devserver.StudentUsername)
	before := s.store.Pair()

	s.server.ExpireAccessTokens()
	if _, err := s.api.Auth.Profile(context.Background()); err != nil {
		t.Fatalf("profile after expiry: %v", err)
	}

	if s.server.RefreshCalls() != 1 {
		t.Fatalf("expected 1 refresh, got %d", s.server.RefreshCalls())
	}
	after := s.store.Pair()
	if after.AccessToken == before.AccessToken || after.RefreshToken == before.RefreshToken {
		t.Fatalf("expected rotated pair in store")
	}
}

func TestConcurrentExpiryRefreshesOnce(t *testing.T) {
	s := newStack(t, devserver.StudentUsername)
	s.server.SetRefreshDelay(200 * time.Millisecond)
	s.server.ExpireAccessTokens()

	const n = 10
	var wg sync.WaitGroup
	var failures atomic.Int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.api.Achievements.List(context.Background(), api.ListOptions{}); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("expected all requests to succeed, %d failed", failures.Load())
	}
	if s.server.RefreshCalls() != 1 {
		t.Fatalf("expected single refresh, got %d", s.server.RefreshCalls())
	}
}

func TestRejectedRefreshTerminatesSession(t *testing.T) {
	s := newStack(t, devserver.StudentUsername)

	var unauthorized atomic.Int32
	s.client.OnUnauthorized(func() { unauthorized.Add(1) })

	s.server.SetRejectRefresh(true)
	s.server.ExpireAccessTokens()

	_, err := s.api.Auth.Profile(context.Background())
	if !errors.Is(err, authclient.ErrRefreshFailed) || !errors.Is(err, refresh.ErrRefreshRejected) {
		t.Fatalf("expected refresh rejection, got %v", err)
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("refresh failure must not be reported as APIError")
	}
	if s.sessions.State() != session.StateAnonymous {
		t.Fatalf("expected anonymous after termination, got %s", s.sessions.State())
	}
	if s.store.Pair().RefreshToken != "" {
		t.Fatalf("expected store cleared")
	}
	if unauthorized.Load() != 1 {
		t.Fatalf("expected one unauthorized signal, got %d", unauthorized.Load())
	}
}

func TestOutageIsBackendUnavailable(t *testing.T) {
	s := newStack(t, devserver.StudentUsername)

	var unavailable atomic.Int32
	s.client.OnBackendUnavailable(func() { unavailable.Add(1) })

	s.server.SetOutage(true)
	_, err := s.api.Reports.Statistics(context.Background())
	if !errors.Is(err, authclient.ErrBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if unavailable.Load() != 1 {
		t.Fatalf("expected one backend-unavailable signal, got %d", unavailable.Load())
	}
	if s.sessions.State() != session.StateAuthenticated || s.server.RefreshCalls() != 0 {
		t.Fatalf("outage must not refresh or terminate")
	}
}

func TestDirectoryAndReports(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, devserver.AdminUsername)
	student := s.as(t, devserver.Student2Username)
	lecturer := s.as(t, devserver.LecturerUsername)

	lecturers, err := s.api.Lecturers.List(ctx)
	if err != nil || len(lecturers) != 1 {
		t.Fatalf("list lecturers: %v %+v", err, lecturers)
	}

	updated, err := s.api.Students.SetAdvisor(ctx, "s-2", lecturers[0].ID)
	if err != nil || updated.AdvisorID != lecturers[0].ID {
		t.Fatalf("set advisor: %v %+v", err, updated)
	}
	advisees, err := lecturer.Lecturers.Advisees(ctx, lecturers[0].ID)
	if err != nil || len(advisees) != 2 {
		t.Fatalf("advisees: %v %+v", err, advisees)
	}

	a, _ := student.Achievements.Create(ctx, api.AchievementInput{AchievementType: "certification", Title: "CCNA", Points: 30})
	_, _ = student.Achievements.Submit(ctx, a.ID)
	if _, err := lecturer.Achievements.Verify(ctx, a.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	stats, err := s.api.Reports.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 1 || stats.ByStatus["verified"] != 1 || len(stats.TopStudents) != 1 || stats.TopStudents[0].Points != 30 {
		t.Fatalf("unexpected statistics %+v", stats)
	}

	report, err := s.api.Reports.StudentReport(ctx, "s-2")
	if err != nil || report.TotalPoints != 30 || report.Student.ID != "s-2" {
		t.Fatalf("student report: %v %+v", err, report)
	}

	list, err := s.api.Students.Achievements(ctx, "s-2")
	if err != nil || len(list) != 1 {
		t.Fatalf("student achievements: %v %+v", err, list)
	}
	if _, err := student.Students.Get(ctx, "s-1"); err == nil {
		t.Fatalf("expected student to be denied another student's record")
	}

	students, err := s.api.Students.List(ctx)
	if err != nil || len(students) != 2 {
		t.Fatalf("list students: %v %+v", err, students)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	s := newStack(t, devserver.StudentUsername)

	if err := s.api.Auth.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if s.sessions.State() != session.StateAnonymous || s.store.Pair().AccessToken != "" {
		t.Fatalf("expected cleared session")
	}
}
