package accounts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pazarly/accounts"
)

// routerContext aliases router.Context so it can be embedded without the
// field name colliding with the Context() method below.
type routerContext = router.Context

// recorderContext covers the slice of router.Context the handlers touch and
// records the response. The embedded interface panics for anything else.
type recorderContext struct {
	routerContext

	payload []byte

	status int
	body   any
}

func (c *recorderContext) Bind(v any) error {
	if len(c.payload) == 0 {
		return nil
	}
	return json.Unmarshal(c.payload, v)
}

func (c *recorderContext) JSON(code int, v any) error {
	c.status = code
	c.body = v
	return nil
}

func (c *recorderContext) Context() context.Context {
	return context.Background()
}

type staticVerifier struct{}

func (staticVerifier) Verify(ctx context.Context, token string) (*accounts.Principal, error) {
	return &accounts.Principal{Subject: "kc-123"}, nil
}

func newTestController(repo *mockRepoManager, provider *mockProvider) *accounts.AuthController {
	return accounts.NewAuthController(
		accounts.WithAuthControllerService(accounts.NewProvisioner(repo, provider)),
		accounts.WithAuthControllerGuard(accounts.NewRouteGuard(staticVerifier{})),
	)
}

func TestControllerRegister(t *testing.T) {
	t.Run("answers 201 with the profile", func(t *testing.T) {
		users := &mockUsers{}
		repo := &mockRepoManager{users: users}
		provider := &mockProvider{}

		provider.On("CreateIdentity", mock.Anything, mock.Anything).Return("kc-1", nil)
		users.On("Create", mock.Anything, mock.Anything).Return(nil, nil)

		ctx := &recorderContext{payload: []byte(`{
			"email": "pepe.rone@example.com",
			"password": "super-secret-1",
			"firstName": "Pepe",
			"lastName": "Rone",
			"userType": "INDIVIDUAL"
		}`)}

		err := newTestController(repo, provider).Register(ctx)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, ctx.status)
		user, ok := ctx.body.(accounts.UserResponse)
		require.True(t, ok)
		assert.Equal(t, "pepe.rone@example.com", user.Email)
		assert.Equal(t, "kc-1", user.KeycloakID)
	})

	t.Run("answers 400 with the offending fields", func(t *testing.T) {
		users := &mockUsers{}
		repo := &mockRepoManager{users: users}
		provider := &mockProvider{}

		ctx := &recorderContext{payload: []byte(`{"userType": "CORPORATE"}`)}

		err := newTestController(repo, provider).Register(ctx)
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, ctx.status)
		resp, ok := ctx.body.(accounts.ErrorResponse)
		require.True(t, ok)
		assert.Contains(t, resp.Validation, "email")
		assert.Contains(t, resp.Validation, "password")
		assert.Contains(t, resp.Validation, "companyName")

		provider.AssertNotCalled(t, "CreateIdentity", mock.Anything, mock.Anything)
	})
}

func TestControllerLogin(t *testing.T) {
	users := &mockUsers{}
	repo := &mockRepoManager{users: users}
	provider := &mockProvider{}

	pair := &accounts.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 300}
	provider.On("Login", mock.Anything, "pepe.rone@example.com", "super-secret-1").Return(pair, nil)

	ctx := &recorderContext{payload: []byte(`{"email":"pepe.rone@example.com","password":"super-secret-1"}`)}

	err := newTestController(repo, provider).Login(ctx)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, ctx.status)
	assert.Equal(t, pair, ctx.body)
}

func TestControllerLoginRejection(t *testing.T) {
	users := &mockUsers{}
	repo := &mockRepoManager{users: users}
	provider := &mockProvider{}

	provider.On("Login", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, accounts.ErrInvalidCredentials)

	ctx := &recorderContext{payload: []byte(`{"email":"pepe.rone@example.com","password":"wrong"}`)}

	err := newTestController(repo, provider).Login(ctx)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, ctx.status)
	resp, ok := ctx.body.(accounts.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, accounts.TextCodeInvalidCredentials, resp.Error)
}
