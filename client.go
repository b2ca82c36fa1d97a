package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client issues bearer-authenticated HTTP requests and recovers from expired
// access tokens with a single shared refresh per failure storm.
//
// Client is safe for concurrent use after [Builder.Build].
type Client struct {
	config      Config
	http        *http.Client
	tokens      TokenStore
	refresher   RefreshEndpoint
	terminator  SessionTerminator
	observer    RefreshObserver
	coordinator *RefreshCoordinator
	notifier    *notifier
	metrics     *Metrics
	audit       *auditDispatcher
	logger      *slog.Logger
}

// attempt is the per-call state of one logical request.
// attempt carries one logical request across its send and replay. generation
// and token record the refresh generation and the access token of the first
// send.
type attempt struct {
	req        *Request
	method     string
	target     string
	retried    bool
	generation uint64
	token      string
}

type rawResponse struct {
	status int
	header http.Header
	body   []byte
}

// Close flushes the audit dispatcher.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.audit != nil {
		c.audit.Close()
	}
}

// Coordinator exposes the refresh coordinator owned by this client.
func (c *Client) Coordinator() *RefreshCoordinator {
	if c == nil {
		return nil
	}
	return c.coordinator
}

// TokenStore returns the store the client reads credentials from.
func (c *Client) TokenStore() TokenStore {
	if c == nil {
		return nil
	}
	return c.tokens
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot copies the client's counters and latency histograms. Maps are
// never nil, and the call is safe alongside in-flight requests.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return c.metrics.Snapshot()
}

// OnUnauthorized registers handler for [SignalUnauthorized] and returns a
// function that removes it.
func (c *Client) OnUnauthorized(handler func()) (unsubscribe func()) {
	return c.notifier.subscribe(SignalUnauthorized, handler)
}

// OnBackendUnavailable registers handler for [SignalBackendUnavailable] and
// returns a function that removes it.
func (c *Client) OnBackendUnavailable(handler func()) (unsubscribe func()) {
	return c.notifier.subscribe(SignalBackendUnavailable, handler)
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) emitAudit(ctx context.Context, event AuditEvent) {
	if c.audit == nil {
		return
	}
	c.audit.Emit(ctx, event)
}

// Get issues a GET to path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST to path with a raw body.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT to path with a raw body.
func (c *Client) Put(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH to path with a raw body.
func (c *Client) Patch(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// DoJSON encodes in (when non-nil) as the request body and decodes a 2xx body
// into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, req *Request, in, out any) (*Response, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		cp := *req
		cp.Body = body
		req = &cp
	}

	res, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if out != nil && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, out); err != nil {
			return res, fmt.Errorf("decode response body: %w", err)
		}
	}
	return res, nil
}

// Do issues req and returns its 2xx response.
//
// A 401 on a refreshable request opens or joins a refresh cycle; on success the
// request is replayed once with the new access token, on failure the cycle's
// error is returned and the session has been terminated. Transport failures and
// 5xx responses are returned as [ErrBackendUnavailable]. Any other non-2xx is
// returned as *[StatusError] without retry.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c == nil || c.http == nil {
		return nil, ErrClientNotReady
	}
	if req == nil {
		return nil, ErrInvalidRequest
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := c.resolveURL(req)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	c.metricInc(MetricRequest)
	start := time.Now()
	defer func() {
		c.metrics.Observe(MetricRequestLatency, time.Since(start))
	}()

	a := &attempt{req: req, method: method, target: target}
	a.generation = c.coordinator.Generation()

	token, err := c.accessToken(ctx, req)
	if err != nil {
		return nil, err
	}
	a.token = token

	raw, err := c.send(ctx, a, token)
	if err != nil {
		return nil, c.connectivityFailure(ctx, a, err)
	}
	if !c.isAuthFailure(a, raw) {
		return c.finish(ctx, a, raw)
	}

	c.metricInc(MetricAuthFailure)
	a.retried = true

	token, err = c.recoverToken(ctx, a)
	if err != nil {
		return nil, err
	}

	c.metricInc(MetricRequestRetried)
	raw, err = c.send(ctx, a, token)
	if err != nil {
		return nil, c.connectivityFailure(ctx, a, err)
	}
	return c.finish(ctx, a, raw)
}

func (c *Client) resolveURL(req *Request) (string, error) {
	if req.URL != "" {
		return req.URL, nil
	}
	if c.config.BaseURL == "" {
		if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
			return req.Path, nil
		}
		return "", fmt.Errorf("%w: relative path %q without BaseURL", ErrInvalidRequest, req.Path)
	}
	base := strings.TrimRight(c.config.BaseURL, "/")
	if req.Path == "" {
		return base, nil
	}
	return base + "/" + strings.TrimLeft(req.Path, "/"), nil
}

func (c *Client) accessToken(ctx context.Context, req *Request) (string, error) {
	if req.SkipAuth {
		return "", nil
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: read access token: %w", ErrTokenStore, err)
	}
	return token, nil
}

func (c *Client) isAuthEndpoint(target string) bool {
	for _, marker := range c.config.Auth.EndpointMarkers {
		if strings.Contains(target, marker) {
			return true
		}
	}
	return false
}

// isAuthFailure classifies raw as a refreshable authentication failure.
func (c *Client) isAuthFailure(a *attempt, raw *rawResponse) bool {
	return raw.status == http.StatusUnauthorized &&
		!a.retried &&
		!a.req.SkipAuth &&
		!a.req.SkipRefresh &&
		!c.isAuthEndpoint(a.target)
}

func (c *Client) send(ctx context.Context, a *attempt, token string) (*rawResponse, error) {
	var body io.Reader
	if len(a.req.Body) > 0 {
		body = bytes.NewReader(a.req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, a.method, a.target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for k, values := range a.req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if ua := c.config.Transport.UserAgent; ua != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", ua)
	}
	if h := c.config.Transport.RequestIDHeader; h != "" && httpReq.Header.Get(h) == "" {
		httpReq.Header.Set(h, uuid.NewString())
	}
	if !a.req.SkipAuth {
		httpReq.Header.Del(c.config.Auth.HeaderName)
		if token != "" {
			httpReq.Header.Set(c.config.Auth.HeaderName, c.config.Auth.Scheme+" "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.config.Transport.MaxResponseBytes))
	if err != nil {
		return nil, err
	}

	return &rawResponse{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) finish(ctx context.Context, a *attempt, raw *rawResponse) (*Response, error) {
	if raw.status >= 200 && raw.status < 300 {
		return &Response{
			StatusCode: raw.status,
			Header:     raw.header,
			Body:       raw.body,
			Retried:    a.retried,
		}, nil
	}

	statusErr := &StatusError{
		StatusCode: raw.status,
		Method:     a.method,
		URL:        a.target,
		Body:       raw.body,
	}
	if raw.status >= http.StatusInternalServerError {
		c.signalBackendUnavailable(ctx, a, statusErr)
		return nil, statusErr
	}

	c.metricInc(MetricRequestFailure)
	return nil, statusErr
}

// connectivityFailure converts a transport error. Caller cancellation is
// returned as-is and does not count as an outage.
func (c *Client) connectivityFailure(ctx context.Context, a *attempt, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrInvalidRequest) {
		return err
	}
	wrapped := &connectivityError{cause: err}
	c.signalBackendUnavailable(ctx, a, wrapped)
	return wrapped
}

func (c *Client) signalBackendUnavailable(ctx context.Context, a *attempt, cause error) {
	if c.isAuthEndpoint(a.target) {
		return
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil || token == "" {
		return
	}

	c.metricInc(MetricBackendUnavailable)
	c.logger.Warn("backend unavailable", "method", a.method, "url", a.target, "error", cause)
	c.emitAudit(ctx, AuditEvent{
		EventType: AuditBackendUnavailable,
		Method:    a.method,
		URL:       a.target,
		Success:   false,
		Error:     cause.Error(),
	})
	c.notifier.publish(SignalBackendUnavailable)
}

// recoverToken returns the access token to replay a with.
//
// A token stored since a was sent is used as is. Otherwise a cycle settled
// after the send supplies its outcome, an open cycle is joined, and only a
// request that saw neither leads a new cycle.
func (c *Client) recoverToken(ctx context.Context, a *attempt) (string, error) {
	if current, err := c.tokens.AccessToken(ctx); err == nil && current != "" && current != a.token {
		c.logger.Debug("replaying with newer stored token", "method", a.method, "url", a.target)
		return current, nil
	}

	leader, wait := c.coordinator.Join(a.generation)
	if !leader {
		c.metricInc(MetricRefreshQueued)
		select {
		case out := <-wait:
			return out.AccessToken, out.Err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.runRefresh(ctx, a)
}

// runRefresh performs the cycle led by the caller. The refresh call is detached
// from the caller's cancellation so that one abandoned request cannot fail the
// whole storm; it is still bounded by the request timeout.
func (c *Client) runRefresh(ctx context.Context, a *attempt) (string, error) {
	cycleID := uuid.NewString()
	c.metricInc(MetricRefreshStarted)
	start := time.Now()
	defer func() {
		c.metrics.Observe(MetricRefreshLatency, time.Since(start))
	}()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Transport.RequestTimeout)
	defer cancel()

	log := c.logger.With("cycle_id", cycleID)
	log.Debug("token refresh started", "method", a.method, "url", a.target)

	refreshToken, err := c.tokens.RefreshToken(rctx)
	if err != nil {
		err = wrapRefreshError(fmt.Errorf("%w: read refresh token: %w", ErrTokenStore, err))
		c.metricInc(MetricRefreshFailure)
		return "", c.failCycle(rctx, cycleID, AuditRefreshFailure, err)
	}
	if refreshToken == "" {
		c.metricInc(MetricRefreshMissingToken)
		return "", c.failCycle(rctx, cycleID, AuditRefreshMissingToken, ErrNoRefreshToken)
	}

	pair, err := c.refresher.Refresh(rctx, refreshToken)
	if err == nil && pair.AccessToken == "" {
		err = errors.New("refresh endpoint returned empty access token")
	}
	if err == nil {
		if pair.RefreshToken == "" {
			pair.RefreshToken = refreshToken
		}
		if storeErr := c.tokens.SetTokens(rctx, pair); storeErr != nil {
			err = fmt.Errorf("%w: persist tokens: %w", ErrTokenStore, storeErr)
		}
	}
	if err != nil {
		c.metricInc(MetricRefreshFailure)
		return "", c.failCycle(rctx, cycleID, AuditRefreshFailure, wrapRefreshError(err))
	}

	if c.observer != nil {
		c.observer.Refreshed(rctx, pair)
	}
	served := c.coordinator.Settle(Outcome{AccessToken: pair.AccessToken})
	c.metricInc(MetricRefreshSuccess)
	log.Debug("token refresh succeeded", "waiters", served)
	c.emitAudit(rctx, AuditEvent{
		EventType: AuditRefreshSuccess,
		CycleID:   cycleID,
		Method:    a.method,
		URL:       a.target,
		Waiters:   served,
		Success:   true,
	})

	return pair.AccessToken, nil
}

// failCycle terminates the session, raises the unauthorized signal and only then
// settles the cycle, so 401s arriving meanwhile still join this cycle and share
// its error instead of opening a new one.
func (c *Client) failCycle(ctx context.Context, cycleID, eventType string, err error) error {
	c.terminator.Terminate(ctx)
	c.metricInc(MetricSessionTerminated)
	c.notifier.publish(SignalUnauthorized)

	served := c.coordinator.Settle(Outcome{Err: err})

	c.logger.Warn("token refresh failed, session terminated", "cycle_id", cycleID, "waiters", served, "error", err)
	c.emitAudit(ctx, AuditEvent{
		EventType: eventType,
		CycleID:   cycleID,
		Waiters:   served,
		Success:   false,
		Error:     err.Error(),
	})
	c.emitAudit(ctx, AuditEvent{
		EventType: AuditSessionTerminated,
		CycleID:   cycleID,
		Success:   true,
	})

	return err
}
