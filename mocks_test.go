package accounts_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"github.com/pazarly/accounts"
)

// mockUsers stubs the store surface the provisioner touches. The embedded
// repository interface panics for anything the tests did not expect.
type mockUsers struct {
	repository.Repository[*accounts.User]
	mock.Mock
}

func (m *mockUsers) Create(ctx context.Context, record *accounts.User, criteria ...repository.InsertCriteria) (*accounts.User, error) {
	args := m.Called(ctx, record)
	if u, ok := args.Get(0).(*accounts.User); ok && u != nil {
		return u, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return record, nil
}

func (m *mockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.User, criteria ...repository.InsertCriteria) (*accounts.User, error) {
	return m.Create(ctx, record, criteria...)
}

func (m *mockUsers) Update(ctx context.Context, record *accounts.User, criteria ...repository.UpdateCriteria) (*accounts.User, error) {
	args := m.Called(ctx, record)
	if u, ok := args.Get(0).(*accounts.User); ok && u != nil {
		return u, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return record, nil
}

func (m *mockUsers) GetByKeycloakID(ctx context.Context, keycloakID string) (*accounts.User, error) {
	args := m.Called(ctx, keycloakID)
	if u, ok := args.Get(0).(*accounts.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) GetByKeycloakIDTx(ctx context.Context, tx bun.IDB, keycloakID string) (*accounts.User, error) {
	return m.GetByKeycloakID(ctx, keycloakID)
}

func (m *mockUsers) GetByActivationToken(ctx context.Context, token string) (*accounts.User, error) {
	args := m.Called(ctx, token)
	if u, ok := args.Get(0).(*accounts.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) GetByActivationTokenTx(ctx context.Context, tx bun.IDB, token string) (*accounts.User, error) {
	return m.GetByActivationToken(ctx, token)
}

func (m *mockUsers) MarkEmailVerified(ctx context.Context, token string) (*accounts.User, error) {
	args := m.Called(ctx, token)
	if u, ok := args.Get(0).(*accounts.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUsers) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, token string) (*accounts.User, error) {
	return m.MarkEmailVerified(ctx, token)
}

type mockRepoManager struct {
	users *mockUsers
}

func (m *mockRepoManager) Users() accounts.Users { return m.users }
func (m *mockRepoManager) Validate() error       { return nil }
func (m *mockRepoManager) MustValidate()         {}

func (m *mockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// mockProvider implements accounts.IdentityProvider
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateIdentity(ctx context.Context, identity accounts.NewIdentity) (string, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) DeleteIdentity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProvider) UpdateIdentity(ctx context.Context, id string, update accounts.IdentityUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *mockProvider) ResetCredential(ctx context.Context, id, password string) error {
	args := m.Called(ctx, id, password)
	return args.Error(0)
}

func (m *mockProvider) EnableIdentity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProvider) Login(ctx context.Context, email, password string) (*accounts.TokenPair, error) {
	args := m.Called(ctx, email, password)
	if pair, ok := args.Get(0).(*accounts.TokenPair); ok {
		return pair, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) Logout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

// mockNotifier implements accounts.Notifier
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}
