package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 using a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
)

// Token kinds carried in the "use" claim. A token presented to the wrong
// parser is rejected as malformed, so refresh tokens can never impersonate
// access tokens or vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

var (
	// ErrMalformed covers tokens that are not structurally valid claim sets:
	// garbage input, wrong kind, wrong issuer or audience, missing claims.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature covers tokens whose signature does not verify.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired covers tokens past their expiry beyond the configured leeway.
	ErrExpired = errors.New("token expired")
	// ErrUnknownKey covers tokens signed with a kid outside the verify key set.
	ErrUnknownKey = errors.New("token signed with unknown key")
)

// Config holds signing and verification parameters for the codec.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// AccessClaims is the fixed claim shape of an access token. The registered
// ID field carries the jti; Lineage ties the token to the login lineage it
// descends from so lineage-wide revocation covers access tokens too.
type AccessClaims struct {
	Use     string   `json:"use"`
	Lineage string   `json:"lin"`
	Roles   []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the fixed claim shape of a refresh token. Parent holds
// the jti of the rotated-away predecessor, empty for the login-issued root.
type RefreshClaims struct {
	Use     string `json:"use"`
	Lineage string `json:"lin"`
	Parent  string `json:"par,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access and refresh tokens. The zero value is not
// usable; construct with NewCodec.
type Codec struct {
	config Config
}

// NewCodec validates the configuration and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid access TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Codec{config: cfg}, nil
}

// IssueAccess mints an access token for subject with a fresh jti. The
// returned claims expose jti and expiry to the caller.
func (c *Codec) IssueAccess(subject, lineage string, roles []string) (string, *AccessClaims, error) {
	now := time.Now()
	claims := &AccessClaims{
		Use:     UseAccess,
		Lineage: lineage,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	signed, err := c.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// IssueRefresh mints a refresh token with the given lifetime. Rotation passes
// a capped ttl when the lineage approaches its absolute lifetime.
func (c *Codec) IssueRefresh(subject, lineage, parent string, ttl time.Duration) (string, *RefreshClaims, error) {
	if ttl <= 0 {
		return "", nil, errors.New("refresh ttl must be positive")
	}

	now := time.Now()
	claims := &RefreshClaims{
		Use:     UseRefresh,
		Lineage: lineage,
		Parent:  parent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	signed, err := c.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseAccess verifies signature, expiry, issuer, audience, and kind, and
// returns the decoded claims. Failures map onto the package sentinels.
func (c *Codec) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims, false); err != nil {
		return nil, err
	}
	if claims.Use != UseAccess {
		return nil, fmt.Errorf("%w: unexpected token use", ErrMalformed)
	}
	if claims.Subject == "" || claims.ID == "" || claims.Lineage == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token the same way ParseAccess verifies an
// access token.
func (c *Codec) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	return c.parseRefresh(tokenStr, false)
}

// ParseRefreshAllowExpired verifies structure and signature but tolerates an
// elapsed expiry. Logout uses it so an expired lineage member can still
// revoke the whole lineage.
func (c *Codec) ParseRefreshAllowExpired(tokenStr string) (*RefreshClaims, error) {
	return c.parseRefresh(tokenStr, true)
}

func (c *Codec) parseRefresh(tokenStr string, allowExpired bool) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims, allowExpired); err != nil {
		return nil, err
	}
	if claims.Use != UseRefresh {
		return nil, fmt.Errorf("%w: unexpected token use", ErrMalformed)
	}
	if claims.Subject == "" || claims.ID == "" || claims.Lineage == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}
	return claims, nil
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(c.method(), claims)
	if c.config.KeyID != "" {
		tok.Header["kid"] = c.config.KeyID
	}

	signKey, err := c.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(signKey)
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims, allowExpired bool) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method().Alg()}),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		if c.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(c.config.Leeway))
		}
		if c.config.RequireIAT {
			options = append(options, jwt.WithIssuedAt())
		}
		if c.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(c.config.Issuer))
		}
		if c.config.Audience != "" {
			options = append(options, jwt.WithAudience(c.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, claims, c.verifyKeyFor)
	if err != nil {
		return classifyParseError(err)
	}
	if !tok.Valid && !allowExpired {
		return fmt.Errorf("%w: invalid claims", ErrMalformed)
	}

	if iat, iatErr := tok.Claims.GetIssuedAt(); iatErr == nil && iat != nil && c.config.MaxFutureIAT > 0 {
		if iat.Time.After(time.Now().Add(c.config.MaxFutureIAT)) {
			return fmt.Errorf("%w: iat too far in the future", ErrMalformed)
		}
	}

	return nil
}

func (c *Codec) verifyKeyFor(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKey)
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
		}
		return c.keyBytesToVerifyKey(key)
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKey)
		}
		if kid != c.config.KeyID {
			return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
		}
	}

	return c.verifyKey()
}

// classifyParseError maps golang-jwt error values onto the package sentinels.
// Expiry wins over the other claim checks so callers can tell a stale token
// from a broken one.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (c *Codec) method() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) signKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) verifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func (c *Codec) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
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
