package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger takes a message plus alternating key/value pairs, the slog calling
// convention, so glog loggers drop in directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// TokenPair is the credential set minted by the identity provider on login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// Principal is the verified identity attached to an authenticated request.
type Principal struct {
	Subject   string
	Issuer    string
	Email     string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// NewIdentity describes the remote identity created during registration.
type NewIdentity struct {
	Email         string
	FirstName     string
	LastName      string
	Password      string
	Enabled       bool
	EmailVerified bool
}

// IdentityUpdate carries a partial update, nil fields are left untouched.
// The email is deliberately absent: the address is immutable after
// registration, a swap would sidestep verification.
type IdentityUpdate struct {
	FirstName *string
	LastName  *string
}

// IdentityProvider is the remote store that owns credentials and tokens.
// The local database never sees a password.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, identity NewIdentity) (string, error)
	DeleteIdentity(ctx context.Context, id string) error
	UpdateIdentity(ctx context.Context, id string, update IdentityUpdate) error
	ResetCredential(ctx context.Context, id, password string) error
	EnableIdentity(ctx context.Context, id string) error
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// TokenVerifier checks bearer tokens minted by the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Notifier sends outbound user notifications. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] ACCOUNTS " + withAttrs(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] ACCOUNTS " + withAttrs(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] ACCOUNTS " + withAttrs(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] ACCOUNTS " + withAttrs(msg, args))
}

// withAttrs renders the key/value pairs slog style: "msg key=value".
func withAttrs(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)

	for i := 0; i < len(args); i += 2 {
		b.WriteString(" ")
		b.WriteString(fmt.Sprint(args[i]))
		b.WriteString("=")
		if i+1 < len(args) {
			b.WriteString(fmt.Sprint(args[i+1]))
		} else {
			b.WriteString("(MISSING)")
		}
	}

	return b.String()
}
