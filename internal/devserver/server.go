// Package devserver is an in-memory fake of the achievement reporting API.
//
// It issues real JWTs, rotates refresh tokens and exposes knobs that let tests
// and the load-test command force token expiry, backend outages and refresh
// rejection.
package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/internal/envelope"
	"github.com/MrEthical07/authclient/jwt"
	"github.com/MrEthical07/authclient/middleware"
)

// Options configures a [Server].
type Options struct {
	// AccessTTL is the lifetime of issued access tokens. Defaults to 15m.
	AccessTTL time.Duration
	// SigningKey is the HS256 key. Defaults to a fixed development key.
	SigningKey []byte
	Logger     *slog.Logger
}

// Server is the fake backend. Use Handler to mount it.
type Server struct {
	echo     *echo.Echo
	tokens   *jwt.Manager
	validate *requestValidator
	logger   *slog.Logger
	now      func() time.Time

	accessTTL     atomic.Int64
	refreshCalls  atomic.Int64
	refreshDelay  atomic.Int64
	rejectRefresh atomic.Bool
	outage        atomic.Bool

	mu           sync.Mutex
	accounts     map[string]*account
	accountsByID map[string]*account
	liveAccess   map[string]struct{}
	refresh      map[string]string
	students     map[string]*api.Student
	lecturers    map[string]*api.Lecturer
	achievements map[string]*api.Achievement
	order        []string
	history      map[string][]api.HistoryEntry
	nextID       int
}

// New returns a seeded server.
func New(opts Options) (*Server, error) {
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte("authclient-devserver-signing-key")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     opts.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    opts.SigningKey,
		Issuer:        "prestasi-devserver",
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		tokens:       tokens,
		validate:     newRequestValidator(),
		logger:       opts.Logger.With("component", "devserver"),
		now:          time.Now,
		accounts:     make(map[string]*account),
		accountsByID: make(map[string]*account),
		liveAccess:   make(map[string]struct{}),
		refresh:      make(map[string]string),
		students:     make(map[string]*api.Student),
		lecturers:    make(map[string]*api.Lecturer),
		achievements: make(map[string]*api.Achievement),
		history:      make(map[string][]api.HistoryEntry),
	}
	s.accessTTL.Store(int64(opts.AccessTTL))
	s.seed()
	s.echo = s.routes()

	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// RefreshCalls returns how many refresh requests reached the server.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	clear(s.liveAccess)
	s.mu.Unlock()
}

// SetOutage makes every route answer 503 while on is true.
func (s *Server) SetOutage(on bool) {
	s.outage.Store(on)
}

// SetRejectRefresh makes the refresh route answer 401 while on is true.
func (s *Server) SetRejectRefresh(on bool) {
	s.rejectRefresh.Store(on)
}

// SetRefreshDelay delays every refresh response by d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// SetAccessTTL changes the lifetime of access tokens issued from now on.
func (s *Server) SetAccessTTL(d time.Duration) {
	s.accessTTL.Store(int64(d))
}

// Verify implements middleware.Verifier. Tokens must be signed by this server
// and not invalidated by ExpireAccessTokens.
func (s *Server) Verify(token string) (*jwt.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, live := s.liveAccess[claims.ID]
	s.mu.Unlock()
	if !live {
		return nil, errors.New("access token revoked")
	}
	return claims, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = s.validate
	e.HTTPErrorHandler = s.handleError

	e.Use(s.outageMiddleware)

	g := e.Group("/api/v1")
	g.POST("/auth/login", s.login)
	g.POST("/auth/refresh", s.refreshTokens)

	bearer := echo.WrapMiddleware(middleware.RequireBearer(s))
	staff := echo.WrapMiddleware(middleware.RequireRole(jwt.RoleLecturer, jwt.RoleAdmin))
	admin := echo.WrapMiddleware(middleware.RequireRole(jwt.RoleAdmin))
	student := echo.WrapMiddleware(middleware.RequireRole(jwt.RoleStudent))

	ag := g.Group("", bearer)
	ag.POST("/auth/logout", s.logout)
	ag.GET("/auth/profile", s.profile)

	ag.GET("/achievements", s.listAchievements)
	ag.POST("/achievements", s.createAchievement, student)
	ag.GET("/achievements/:id", s.getAchievement)
	ag.PUT("/achievements/:id", s.updateAchievement, student)
	ag.DELETE("/achievements/:id", s.deleteAchievement, student)
	ag.POST("/achievements/:id/submit", s.submitAchievement, student)
	ag.POST("/achievements/:id/verify", s.verifyAchievement, staff)
	ag.POST("/achievements/:id/reject", s.rejectAchievement, staff)
	ag.GET("/achievements/:id/history", s.achievementHistory)

	ag.GET("/students", s.listStudents, staff)
	ag.GET("/students/:id", s.getStudent)
	ag.GET("/students/:id/achievements", s.studentAchievements)
	ag.PUT("/students/:id/advisor", s.setAdvisor, admin)

	ag.GET("/lecturers", s.listLecturers)
	ag.GET("/lecturers/:id/advisees", s.lecturerAdvisees, staff)

	ag.GET("/reports/statistics", s.statistics)
	ag.GET("/reports/student/:id", s.studentReport)

	return e
}

func (s *Server) outageMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.outage.Load() {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
		}
		return next(c)
	}
}

// handleError writes every handler error as the API's error envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var fields map[string]string

	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		code = http.StatusBadRequest
		message = "validation failed"
		fields = s.validate.fieldErrors(validationErrs)
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	default:
		s.logger.Error("handler failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}

	if err := c.JSON(code, envelope.Envelope[any]{Status: envelope.StatusError, Message: message, Errors: fields}); err != nil {
		s.logger.Error("write error response failed", "error", err)
	}
}

func success(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope.Envelope[any]{Status: envelope.StatusSuccess, Data: data})
}

// bind decodes and validates the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(v)
}

func callerClaims(c echo.Context) (*jwt.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return claims, nil
}
