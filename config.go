package authclient

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config defines the runtime settings of a [Client].
//
// Config values are copied at Build time; mutating the original afterwards has no effect.
type Config struct {
	// BaseURL is prefixed to Request.Path. Requests with an absolute URL ignore it.
	BaseURL   string
	Transport TransportConfig
	Auth      AuthConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig bounds every HTTP attempt, including the refresh call.
type TransportConfig struct {
	RequestTimeout   time.Duration
	UserAgent        string
	RequestIDHeader  string
	MaxResponseBytes int64
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig controls how credentials are attached and which endpoints are
// treated as authentication endpoints.
//
// A URL containing any EndpointMarkers substring never triggers the refresh flow
// and never raises the backend-unavailable signal.
type AuthConfig struct {
	HeaderName      string
	Scheme          string
	EndpointMarkers []string
}

// AuditConfig defines the async audit dispatcher settings.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authclient APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			RequestTimeout:   10 * time.Second,
			UserAgent:        "authclient/1",
			RequestIDHeader:  "X-Request-ID",
			MaxResponseBytes: 8 << 20,
		},
		Auth: AuthConfig{
			HeaderName:      "Authorization",
			Scheme:          "Bearer",
			EndpointMarkers: []string{"/auth/login", "/auth/refresh"},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Auth.EndpointMarkers = cloneStrings(cfg.Auth.EndpointMarkers)
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation fails.
// Validate does not mutate shared global state and can be used concurrently.
func (c *Config) Validate() error {
	// Base URL
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return errors.New("BaseURL is not a valid URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("BaseURL scheme must be http or https")
		}
		if u.Host == "" {
			return errors.New("BaseURL must include a host")
		}
	}

	// Transport
	if c.Transport.RequestTimeout <= 0 {
		return errors.New("Transport RequestTimeout must be > 0")
	}
	if c.Transport.MaxResponseBytes <= 0 {
		return errors.New("Transport MaxResponseBytes must be > 0")
	}

	// Auth
	if strings.TrimSpace(c.Auth.HeaderName) == "" {
		return errors.New("Auth HeaderName is required")
	}
	if strings.TrimSpace(c.Auth.Scheme) == "" {
		return errors.New("Auth Scheme is required")
	}
	for _, marker := range c.Auth.EndpointMarkers {
		if strings.TrimSpace(marker) == "" {
			return errors.New("Auth EndpointMarkers must not contain empty entries")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
