// Package keycloak integrates a Keycloak realm as the remote identity store:
// an admin REST client for identity lifecycle and a JWKS backed token
// verifier for request admission.
package keycloak

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config carries the realm coordinates and the confidential client
// credentials used for both admin calls and token grants.
type Config struct {
	// BaseURL is the Keycloak origin, e.g. https://id.example.com
	BaseURL string

	// Realm is the realm name
	Realm string

	// ClientID is the confidential client used for grants and admin calls
	ClientID string

	// ClientSecret authenticates the confidential client
	ClientSecret string

	// HTTPClient overrides the default client, tests point it at a fake server
	HTTPClient *http.Client

	// Timeout applies when no custom HTTPClient is given
	Timeout time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("keycloak: base URL is required")
	}
	if strings.TrimSpace(c.Realm) == "" {
		return fmt.Errorf("keycloak: realm is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("keycloak: client id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("keycloak: client secret is required")
	}
	return nil
}

// Issuer is the iss claim the realm mints into its tokens
func (c Config) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(c.BaseURL, "/"), c.Realm)
}

// TokenEndpoint serves both the password and client_credentials grants
func (c Config) TokenEndpoint() string {
	return c.Issuer() + "/protocol/openid-connect/token"
}

// LogoutEndpoint revokes refresh tokens
func (c Config) LogoutEndpoint() string {
	return c.Issuer() + "/protocol/openid-connect/logout"
}

// JWKSEndpoint publishes the realm signing keys
func (c Config) JWKSEndpoint() string {
	return c.Issuer() + "/protocol/openid-connect/certs"
}

// AdminUsersEndpoint is the admin REST collection for realm users
func (c Config) AdminUsersEndpoint() string {
	return fmt.Sprintf("%s/admin/realms/%s/users", strings.TrimRight(c.BaseURL, "/"), c.Realm)
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{Timeout: timeout}
}
