package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm used by [Manager].
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrInvalidConfig is wrapped by every [NewManager] validation failure.
	ErrInvalidConfig = errors.New("jwt: invalid config")
	// ErrCannotSign is returned by Issue on a verify-only manager.
	ErrCannotSign = errors.New("jwt: manager has no signing key")
	// ErrUnknownKeyID is returned when a token's kid matches no verify key.
	ErrUnknownKeyID = errors.New("jwt: unknown kid")
	// ErrFutureIssuedAt is returned for tokens issued too far in the future.
	ErrFutureIssuedAt = errors.New("jwt: iat too far in the future")
)

const (
	maxLeeway        = 2 * time.Minute
	futureIATLimit   = 24 * time.Hour
	defaultFutureIAT = 10 * time.Minute
)

// Config configures a [Manager].
//
// For HS256 PrivateKey is the shared secret. For Ed25519 keys are raw or PEM;
// a manager without PrivateKey can only verify. VerifyKeys, when set, selects
// the verification key by the token's kid header.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Identity is the user a token is issued for.
type Identity struct {
	UserID   string
	Username string
	Name     string
	Email    string
	Role     Role
}

// Manager signs and verifies access tokens. Keys are decoded once by
// [NewManager]; a Manager is safe for concurrent use.
type Manager struct {
	ttl          time.Duration
	issuer       string
	audience     string
	keyID        string
	maxFutureIAT time.Duration

	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	verifyKeys map[string]any

	parser *jwt.Parser
	now    func() time.Time
}

// NewManager validates cfg and decodes its key material.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: AccessTTL must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, fmt.Errorf("%w: Leeway must be within [0, %s]", ErrInvalidConfig, maxLeeway)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultFutureIAT
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > futureIATLimit {
		return nil, fmt.Errorf("%w: MaxFutureIAT must be within (0, %s]", ErrInvalidConfig, futureIATLimit)
	}

	m := &Manager{
		ttl:          cfg.AccessTTL,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		keyID:        strings.TrimSpace(cfg.KeyID),
		maxFutureIAT: cfg.MaxFutureIAT,
		now:          time.Now,
	}

	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		err = m.useHMAC(cfg)
	case MethodEd25519:
		err = m.useEd25519(cfg)
	default:
		err = fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, cfg.SigningMethod)
	}
	if err != nil {
		return nil, err
	}

	if m.keyID != "" && m.verifyKeys != nil {
		if _, ok := m.verifyKeys[m.keyID]; !ok {
			return nil, fmt.Errorf("%w: KeyID %q is not in VerifyKeys", ErrInvalidConfig, m.keyID)
		}
	}

	m.parser = m.newParser(cfg.Leeway)
	return m, nil
}

func (m *Manager) useHMAC(cfg Config) error {
	if len(cfg.PrivateKey) == 0 {
		return fmt.Errorf("%w: hs256 requires a secret", ErrInvalidConfig)
	}
	m.method = jwt.SigningMethodHS256
	m.signKey = cfg.PrivateKey
	m.verifyKey = cfg.PrivateKey
	if len(cfg.VerifyKeys) > 0 {
		m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" || len(key) == 0 {
				return fmt.Errorf("%w: empty kid or secret in VerifyKeys", ErrInvalidConfig)
			}
			m.verifyKeys[kid] = key
		}
	}
	return nil
}

func (m *Manager) useEd25519(cfg Config) error {
	m.method = jwt.SigningMethodEdDSA

	if len(cfg.PrivateKey) > 0 {
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		m.signKey = priv
	}
	if len(cfg.PublicKey) > 0 {
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		m.verifyKey = pub
	}
	if len(cfg.VerifyKeys) > 0 {
		m.verifyKeys = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return fmt.Errorf("%w: VerifyKeys contains an empty kid", ErrInvalidConfig)
			}
			pub, err := parseEdPublicKey(key)
			if err != nil {
				return fmt.Errorf("%w: verify key %q: %w", ErrInvalidConfig, kid, err)
			}
			m.verifyKeys[kid] = pub
		}
	}
	if m.verifyKey == nil && m.signKey != nil {
		m.verifyKey = m.signKey.(ed25519.PrivateKey).Public()
	}
	if m.verifyKey == nil && m.verifyKeys == nil {
		return fmt.Errorf("%w: ed25519 requires a key", ErrInvalidConfig)
	}
	return nil
}

func (m *Manager) newParser(leeway time.Duration) *jwt.Parser {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
		jwt.WithExpirationRequired(),
	}
	if leeway > 0 {
		options = append(options, jwt.WithLeeway(leeway))
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		options = append(options, jwt.WithAudience(m.audience))
	}
	return jwt.NewParser(options...)
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs an access token for id that expires after the configured TTL.
func (m *Manager) Issue(id Identity) (string, error) {
	return m.IssueWithTTL(id, m.ttl)
}

// IssueWithTTL is Issue with an explicit lifetime. A non-positive ttl yields a
// token that is already expired. Every token carries a unique jti.
func (m *Manager) IssueWithTTL(id Identity, ttl time.Duration) (string, error) {
	if m.signKey == nil {
		return "", ErrCannotSign
	}
	if strings.TrimSpace(id.UserID) == "" {
		return "", errors.New("jwt: identity requires user id")
	}

	now := m.now()
	claims := Claims{
		Username: id.Username,
		Name:     id.Name,
		Email:    id.Email,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.keyID != "" {
		token.Header["kid"] = m.keyID
	}
	return token.SignedString(m.signKey)
}

// Verify checks the signature, algorithm, issuer, audience and expiry of
// tokenStr and returns its claims.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFor)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.now().Add(m.maxFutureIAT)) {
		return nil, ErrFutureIssuedAt
	}
	return claims, nil
}

// keyFor resolves the verification key. With VerifyKeys the kid header is
// mandatory; otherwise a configured KeyID must match it.
func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if m.verifyKeys != nil {
		key, ok := m.verifyKeys[kid]
		if !ok {
			return nil, ErrUnknownKeyID
		}
		return key, nil
	}
	if m.keyID != "" && kid != m.keyID {
		return nil, ErrUnknownKeyID
	}
	return m.verifyKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
