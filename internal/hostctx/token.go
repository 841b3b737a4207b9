package hostctx

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenIssuer = "wslink"
	// DefaultTokenTTL is the lifetime of issued anti-forgery tokens.
	DefaultTokenTTL = 10 * time.Minute
	// refreshWindow makes the issuer mint a new token before the cached one
	// expires.
	refreshWindow = 30 * time.Second
)

// TokenClaims is the anti-forgery token payload.
type TokenClaims struct {
	Endpoint string `json:"endpoint"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies EdDSA anti-forgery tokens. The signing key is
// derived from a shared secret, so the endpoint and the host only need to
// agree on the secret.
type TokenIssuer struct {
	endpoint   string
	ttl        time.Duration
	now        func() time.Time
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	mu     sync.Mutex
	cached string
}

// NewTokenIssuer derives the key pair for secret. endpoint is embedded in each
// token and checked on verification when non-empty.
func NewTokenIssuer(secret, endpoint string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	seed := make([]byte, ed25519.SeedSize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("wslink csrf token v1"))
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	return &TokenIssuer{
		endpoint:   endpoint,
		ttl:        ttl,
		now:        time.Now,
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Issue mints a fresh token.
func (t *TokenIssuer) Issue() (string, error) {
	now := t.now()
	claims := TokenClaims{
		Endpoint: t.endpoint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := tok.SignedString(t.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Token implements TokenSource. It reuses the last token until it is about
// to expire.
func (t *TokenIssuer) Token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached != "" {
		if exp, ok := expiresAt(t.cached); ok && exp.Sub(t.now()) > refreshWindow {
			return t.cached, nil
		}
	}
	tok, err := t.Issue()
	if err != nil {
		return "", err
	}
	t.cached = tok
	return tok, nil
}

// Verify checks signature, expiry and, when the issuer is bound to an
// endpoint, that the token was issued for endpoint.
func (t *TokenIssuer) Verify(token, endpoint string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.publicKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Endpoint != "" && endpoint != "" && claims.Endpoint != endpoint {
		return nil, fmt.Errorf("token issued for endpoint %q", claims.Endpoint)
	}
	return claims, nil
}

// expiresAt reads exp without verifying the signature.
func expiresAt(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var payload struct {
		Exp float64 `json:"exp"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(payload.Exp), 0), true
}
