package devserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/api"
	"github.com/MrEthical07/authclient/jwt"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// IssuePair signs in username without a password and returns its tokens.
func (s *Server) IssuePair(username string) (authclient.TokenPair, error) {
	s.mu.Lock()
	a, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok {
		return authclient.TokenPair{}, echo.NewHTTPError(http.StatusNotFound, "unknown user")
	}
	return s.issue(a, "")
}

// issue signs a new access token for a and rotates previous out of the
// refresh table.
func (s *Server) issue(a *account, previous string) (authclient.TokenPair, error) {
	access, err := s.tokens.IssueWithTTL(a.identity(), time.Duration(s.accessTTL.Load()))
	if err != nil {
		return authclient.TokenPair{}, err
	}
	claims, err := jwt.Inspect(access)
	if err != nil {
		return authclient.TokenPair{}, err
	}

	refresh := uuid.NewString()

	s.mu.Lock()
	s.liveAccess[claims.ID] = struct{}{}
	if previous != "" {
		delete(s.refresh, previous)
	}
	s.refresh[refresh] = a.id
	s.mu.Unlock()

	return authclient.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) login(c echo.Context) error {
	req := new(loginRequest)
	if err := bind(c, req); err != nil {
		return err
	}

	s.mu.Lock()
	a, ok := s.accounts[req.Username]
	s.mu.Unlock()
	if !ok || a.password != req.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}

	pair, err := s.issue(a, "")
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, api.LoginResult{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         a.profile(),
	})
}

func (s *Server) refreshTokens(c echo.Context) error {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	req := new(refreshRequest)
	if err := bind(c, req); err != nil {
		return err
	}
	if s.rejectRefresh.Load() {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token rejected")
	}

	s.mu.Lock()
	userID, ok := s.refresh[req.RefreshToken]
	a := s.accountsByID[userID]
	s.mu.Unlock()
	if !ok || a == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	pair, err := s.issue(a, req.RefreshToken)
	if err != nil {
		return err
	}
	s.logger.Debug("tokens refreshed", "user_id", a.id)

	return success(c, http.StatusOK, pair)
}

func (s *Server) logout(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for token, userID := range s.refresh {
		if userID == claims.UserID() {
			delete(s.refresh, token)
		}
	}
	delete(s.liveAccess, claims.ID)
	s.mu.Unlock()

	return success(c, http.StatusOK, nil)
}

func (s *Server) profile(c echo.Context) error {
	claims, err := callerClaims(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	a := s.accountsByID[claims.UserID()]
	s.mu.Unlock()
	if a == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return success(c, http.StatusOK, a.profile())
}
