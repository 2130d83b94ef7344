package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pazarly/accounts"
)

// Client is the admin REST client for the realm. It implements
// accounts.IdentityProvider.
type Client struct {
	config Config
	http   *http.Client
	logger accounts.Logger
}

var _ accounts.IdentityProvider = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: cfg,
		http:   cfg.httpClient(),
		logger: nil,
	}, nil
}

func (c *Client) WithLogger(l accounts.Logger) *Client {
	c.logger = l
	return c
}

func (c *Client) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(format, args...)
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// adminToken acquires a service account token via the client_credentials
// grant. Tokens are fetched per call: admin operations only happen on
// registration paths, caching buys nothing worth the invalidation logic.
func (c *Client) adminToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)

	status, body, _, err := c.postForm(ctx, c.config.TokenEndpoint(), form)
	if err != nil {
		return "", accounts.NewUpstreamError("admin_token", 0, "", err)
	}

	if status != http.StatusOK {
		return "", accounts.NewUpstreamError("admin_token", status, string(body), nil)
	}

	token := tokenResponse{}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", accounts.NewUpstreamError("admin_token", status, string(body), err)
	}

	return token.AccessToken, nil
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type userRepresentation struct {
	Username      string                     `json:"username,omitempty"`
	Email         string                     `json:"email,omitempty"`
	FirstName     string                     `json:"firstName,omitempty"`
	LastName      string                     `json:"lastName,omitempty"`
	Enabled       *bool                      `json:"enabled,omitempty"`
	EmailVerified *bool                      `json:"emailVerified,omitempty"`
	Credentials   []credentialRepresentation `json:"credentials,omitempty"`
}

// CreateIdentity creates a realm user and returns the id Keycloak assigned.
// Keycloak answers 201 with no body, the id is the tail of the Location
// header.
func (c *Client) CreateIdentity(ctx context.Context, identity accounts.NewIdentity) (string, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return "", err
	}

	rep := userRepresentation{
		Username:      identity.Email,
		Email:         identity.Email,
		FirstName:     identity.FirstName,
		LastName:      identity.LastName,
		Enabled:       &identity.Enabled,
		EmailVerified: &identity.EmailVerified,
		Credentials: []credentialRepresentation{{
			Type:      "password",
			Value:     identity.Password,
			Temporary: false,
		}},
	}

	status, body, header, err := c.doJSON(ctx, http.MethodPost, c.config.AdminUsersEndpoint(), token, rep)
	if err != nil {
		return "", accounts.NewUpstreamError("create_identity", 0, "", err)
	}

	switch status {
	case http.StatusCreated:
	case http.StatusConflict:
		return "", conflict(status, string(body))
	default:
		return "", accounts.NewUpstreamError("create_identity", status, string(body), nil)
	}

	location := header.Get("Location")
	if location == "" {
		return "", accounts.NewUpstreamError("create_identity", status, "missing Location header", nil)
	}

	id := path.Base(location)
	if id == "" || id == "." || id == "/" {
		return "", accounts.NewUpstreamError("create_identity", status, "unparseable Location header", nil)
	}

	c.debugf("created identity", "keycloak_id", id)

	return id, nil
}

// DeleteIdentity removes a realm user. A 404 counts as success so the
// registration compensation stays idempotent.
func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	status, body, _, err := c.doJSON(ctx, http.MethodDelete, c.userEndpoint(id), token, nil)
	if err != nil {
		return accounts.NewUpstreamError("delete_identity", 0, "", err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return accounts.NewUpstreamError("delete_identity", status, string(body), nil)
	}
}

// UpdateIdentity applies a partial update. Keycloak leaves absent
// representation fields untouched, so only the set fields go on the wire.
// Email and username never change here, the address is fixed at registration.
func (c *Client) UpdateIdentity(ctx context.Context, id string, update accounts.IdentityUpdate) error {
	rep := userRepresentation{}
	dirty := false

	if update.FirstName != nil {
		rep.FirstName = *update.FirstName
		dirty = true
	}
	if update.LastName != nil {
		rep.LastName = *update.LastName
		dirty = true
	}

	if !dirty {
		return nil
	}

	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	status, body, _, err := c.doJSON(ctx, http.MethodPut, c.userEndpoint(id), token, rep)
	if err != nil {
		return accounts.NewUpstreamError("update_identity", 0, "", err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusConflict:
		return conflict(status, string(body))
	default:
		return accounts.NewUpstreamError("update_identity", status, string(body), nil)
	}
}

// ResetCredential replaces the password with a permanent credential.
func (c *Client) ResetCredential(ctx context.Context, id, password string) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	cred := credentialRepresentation{
		Type:      "password",
		Value:     password,
		Temporary: false,
	}

	status, body, _, err := c.doJSON(ctx, http.MethodPut, c.userEndpoint(id)+"/reset-password", token, cred)
	if err != nil {
		return accounts.NewUpstreamError("reset_credential", 0, "", err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	default:
		return accounts.NewUpstreamError("reset_credential", status, string(body), nil)
	}
}

// EnableIdentity turns the account on after email verification. Both flags
// flip together, a verified address is the only way to reach this call.
func (c *Client) EnableIdentity(ctx context.Context, id string) error {
	token, err := c.adminToken(ctx)
	if err != nil {
		return err
	}

	enabled := true
	rep := userRepresentation{
		Enabled:       &enabled,
		EmailVerified: &enabled,
	}

	status, body, _, err := c.doJSON(ctx, http.MethodPut, c.userEndpoint(id), token, rep)
	if err != nil {
		return accounts.NewUpstreamError("enable_identity", 0, "", err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	default:
		return accounts.NewUpstreamError("enable_identity", status, string(body), nil)
	}
}

// Login runs the resource owner password grant.
func (c *Client) Login(ctx context.Context, email, password string) (*accounts.TokenPair, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("username", email)
	form.Set("password", password)

	status, body, _, err := c.postForm(ctx, c.config.TokenEndpoint(), form)
	if err != nil {
		return nil, accounts.NewUpstreamError("login", 0, "", err)
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusBadRequest:
		// Keycloak answers 401 for bad credentials and 400 for disabled or
		// unverified accounts, both read as invalid credentials to a client
		return nil, invalidCredentials(status, string(body))
	default:
		return nil, accounts.NewUpstreamError("login", status, string(body), nil)
	}

	token := tokenResponse{}
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, accounts.NewUpstreamError("login", status, string(body), err)
	}

	return &accounts.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    token.ExpiresIn,
	}, nil
}

// Logout revokes the refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("refresh_token", refreshToken)

	status, body, _, err := c.postForm(ctx, c.config.LogoutEndpoint(), form)
	if err != nil {
		return accounts.NewUpstreamError("logout", 0, "", err)
	}

	switch status {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return staleToken(status, string(body))
	default:
		return accounts.NewUpstreamError("logout", status, string(body), nil)
	}
}

func (c *Client) userEndpoint(id string) string {
	return c.config.AdminUsersEndpoint() + "/" + url.PathEscape(id)
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, bearer string, payload any) (int, []byte, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+bearer)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("keycloak: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, resp.Header, fmt.Errorf("keycloak: failed to read response: %w", err)
	}

	return resp.StatusCode, body, resp.Header, nil
}

func conflict(status int, body string) error {
	clone := accounts.ErrEmailAlreadyRegistered.Clone()
	if clone == nil {
		return accounts.ErrEmailAlreadyRegistered
	}
	return clone.WithMetadata(map[string]any{
		"upstream_status": status,
		"upstream_body":   body,
	})
}

func invalidCredentials(status int, body string) error {
	clone := accounts.ErrInvalidCredentials.Clone()
	if clone == nil {
		return accounts.ErrInvalidCredentials
	}
	return clone.WithMetadata(map[string]any{
		"upstream_status": status,
		"upstream_body":   body,
	})
}

func staleToken(status int, body string) error {
	clone := accounts.ErrTokenInvalid.Clone()
	if clone == nil {
		return accounts.ErrTokenInvalid
	}
	return clone.WithMetadata(map[string]any{
		"upstream_status": status,
		"upstream_body":   body,
	})
}
