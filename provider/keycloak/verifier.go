package keycloak

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/pazarly/accounts"
)

// Verifier checks bearer tokens against the realm JWKS. It implements
// accounts.TokenVerifier.
//
// The JWKS is fetched lazily on first use and cached, with background
// refresh handled by keyfunc. Invalidate drops the cache so the next
// verification refetches.
type Verifier struct {
	config Config
	logger accounts.Logger

	mu   sync.Mutex
	jwks *keyfunc.JWKS
}

var _ accounts.TokenVerifier = (*Verifier)(nil)

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Verifier{config: cfg}, nil
}

func (v *Verifier) WithLogger(l accounts.Logger) *Verifier {
	v.logger = l
	return v
}

// Verify parses and validates the token: signature against the realm JWKS,
// issuer pinned to the realm, expiry enforced.
func (v *Verifier) Verify(ctx context.Context, token string) (*accounts.Principal, error) {
	if token == "" {
		return nil, accounts.ErrTokenEmpty
	}

	jwks, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, jwks.Keyfunc,
		jwt.WithIssuer(v.config.Issuer()),
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, tokenError(accounts.ErrTokenExpired, err)
		}
		return nil, tokenError(accounts.ErrTokenInvalid, err)
	}

	if !parsed.Valid {
		return nil, accounts.ErrTokenInvalid
	}

	return &accounts.Principal{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Email:     claims.Email,
		IssuedAt:  numericDate(claims.IssuedAt),
		ExpiresAt: numericDate(claims.ExpiresAt),
	}, nil
}

// Invalidate drops the cached JWKS. The next Verify fetches a fresh set,
// which is the recovery path after a realm key rotation.
func (v *Verifier) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		v.jwks.EndBackground()
		v.jwks = nil
	}
}

func (v *Verifier) keySet(ctx context.Context) (*keyfunc.JWKS, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		return v.jwks, nil
	}

	jwks, err := keyfunc.Get(v.config.JWKSEndpoint(), keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			if v.logger != nil {
				v.logger.Warn("failed to refresh JWKS", "error", err)
			}
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, accounts.NewUpstreamError("jwks_fetch", 0, "", err)
	}

	v.jwks = jwks

	return jwks, nil
}

func tokenError(base *goerrors.Error, cause error) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = cause
	return clone
}

func numericDate(d *jwt.NumericDate) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
