package authclient

import (
	"errors"
	"log/slog"
	"net/http"
)

// Builder collects the collaborators of a [Client].
//
// Builder instances are intended to be configured during initialization and used once.
type Builder struct {
	config Config

	tokens     TokenStore
	refresher  RefreshEndpoint
	terminator SessionTerminator
	observer   RefreshObserver

	httpClient *http.Client
	auditSink  AuditSink
	logger     *slog.Logger

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithTokenStore sets the required token store.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithRefreshEndpoint sets the required refresh endpoint.
func (b *Builder) WithRefreshEndpoint(endpoint RefreshEndpoint) *Builder {
	b.refresher = endpoint
	return b
}

// WithSessionTerminator sets the required session terminator.
func (b *Builder) WithSessionTerminator(terminator SessionTerminator) *Builder {
	b.terminator = terminator
	return b
}

// WithRefreshObserver sets the observer told about refreshed token pairs.
func (b *Builder) WithRefreshObserver(observer RefreshObserver) *Builder {
	b.observer = observer
	return b
}

// WithHTTPClient overrides the transport. A zero Timeout on hc is replaced by
// Config.Transport.RequestTimeout on a copy; hc itself is not modified.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithAuditSink sets where audit events go. The sink only receives events when
// Config.Audit.Enabled is true; without one they are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Without one the client logs nothing.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled sets Config.Metrics.Enabled. A client built without
// metrics records nothing and reports an empty snapshot.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms sets Config.Metrics.EnableLatencyHistograms. Build
// rejects it unless metrics are enabled too.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns a ready client.
//
// Build fails when any of the token store, refresh endpoint or session
// terminator is missing, so a built client is never partially wired.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.tokens == nil {
		return nil, errors.New("token store required")
	}
	if b.refresher == nil {
		return nil, errors.New("refresh endpoint required")
	}
	if b.terminator == nil {
		return nil, errors.New("session terminator required")
	}

	hc := b.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Transport.RequestTimeout}
	} else if hc.Timeout == 0 {
		cp := *hc
		cp.Timeout = cfg.Transport.RequestTimeout
		hc = &cp
	}

	observer := b.observer
	if observer == nil {
		observer, _ = b.terminator.(RefreshObserver)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := &Client{
		config:      cfg,
		http:        hc,
		tokens:      b.tokens,
		refresher:   b.refresher,
		terminator:  b.terminator,
		observer:    observer,
		coordinator: NewRefreshCoordinator(),
		notifier:    newNotifier(),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger.With("component", "authclient"),
	}
	client.audit = newAuditDispatcher(cfg.Audit, b.auditSink, client.logger)

	b.built = true

	return client, nil
}
