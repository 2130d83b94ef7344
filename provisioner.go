package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Provisioner orchestrates the dual write between the identity provider,
// which owns credentials, and the local store, which owns the profile.
type Provisioner struct {
	repo          RepositoryManager
	provider      IdentityProvider
	notifier      Notifier
	logger        Logger
	publicBaseURL string
}

func NewProvisioner(repo RepositoryManager, provider IdentityProvider) *Provisioner {
	return &Provisioner{
		repo:     repo,
		provider: provider,
		logger:   defLogger{},
	}
}

func (p *Provisioner) WithLogger(l Logger) *Provisioner {
	if l != nil {
		p.logger = l
	}
	return p
}

// WithNotifier wires the activation mail sender. Without one registration
// still succeeds, the activation token just never leaves the database.
func (p *Provisioner) WithNotifier(n Notifier) *Provisioner {
	p.notifier = n
	return p
}

// WithPublicBaseURL sets the origin used to build activation links.
func (p *Provisioner) WithPublicBaseURL(base string) *Provisioner {
	p.publicBaseURL = strings.TrimRight(base, "/")
	return p
}

// Register creates the remote identity first and the local record second.
// If the local write fails the remote identity is deleted so no half
// provisioned account survives. The identity starts disabled and only
// VerifyEmail can enable it.
func (p *Provisioner) Register(ctx context.Context, input RegisterInput) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration",
		)
	default:
		return p.register(ctx, input)
	}
}

func (p *Provisioner) register(ctx context.Context, input RegisterInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	keycloakID, err := p.provider.CreateIdentity(ctx, NewIdentity{
		Email:         input.Email,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		Password:      input.Password,
		Enabled:       false,
		EmailVerified: false,
	})
	if err != nil {
		return nil, err
	}

	token := NewActivationToken()
	record := &User{
		KeycloakID:      keycloakID,
		Email:           input.Email,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		Phone:           input.Phone,
		UserType:        input.UserType,
		ActivationToken: &token,
	}

	if input.UserType == UserTypeCorporate {
		record.CompanyName = &input.CompanyName
		record.TaxNumber = &input.TaxNumber
		record.TaxOffice = &input.TaxOffice
	}

	user, err := p.repo.Users().Create(ctx, record)
	if err != nil {
		p.compensate(ctx, keycloakID)

		if IsUniqueViolation(err) {
			return nil, conflictError(err, "email")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user record")
	}

	p.sendActivationMail(ctx, user, token)

	return user, nil
}

// compensate removes the orphaned remote identity after a failed local write.
// A failed delete leaves an orphan in the identity provider, which is benign:
// the identity is disabled and cannot log in. Worth a warning, not an error.
func (p *Provisioner) compensate(ctx context.Context, keycloakID string) {
	if err := p.provider.DeleteIdentity(ctx, keycloakID); err != nil {
		p.logger.Warn("failed to delete orphaned identity", "keycloak_id", keycloakID, "error", err)
	}
}

func (p *Provisioner) sendActivationMail(ctx context.Context, user *User, token string) {
	if p.notifier == nil {
		return
	}

	link := fmt.Sprintf("%s/auth/verify-email?token=%s", p.publicBaseURL, token)
	body := fmt.Sprintf(
		"Hello %s,\n\nConfirm your email address to activate your account:\n%s\n",
		user.FullName(), link,
	)

	if err := p.notifier.Send(ctx, user.Email, "Verify your email address", body); err != nil {
		p.logger.Warn("failed to send activation email", "email", user.Email, "error", err)
	}
}

// Login exchanges credentials for a token pair via the password grant.
func (p *Provisioner) Login(ctx context.Context, input LoginInput) (*TokenPair, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	return p.provider.Login(ctx, input.Email, input.Password)
}

// Logout revokes the refresh token at the identity provider.
func (p *Provisioner) Logout(ctx context.Context, input LogoutInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	return p.provider.Logout(ctx, input.RefreshToken)
}

// UpdateProfile applies a partial update, remote first. Keycloak rejecting
// the change means the local record is never touched; a local failure after
// a remote success is surfaced so the caller can retry the same payload.
// Only the name fields propagate to the identity provider, everything else
// is local profile data.
func (p *Provisioner) UpdateProfile(ctx context.Context, keycloakID string, input UpdateProfileInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := p.repo.Users().GetByKeycloakID(ctx, keycloakID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, userNotFound(err, keycloakID)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for update")
	}

	if input.IsEmpty() {
		return user, nil
	}

	if update, dirty := remoteUpdate(input); dirty {
		if err := p.provider.UpdateIdentity(ctx, keycloakID, update); err != nil {
			return nil, err
		}
	}

	record := &User{
		ID:        user.ID,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
	}

	// company fields only exist on corporate records, an individual payload
	// carrying them is ignored
	if user.IsCorporate() {
		if input.CompanyName != "" {
			record.CompanyName = &input.CompanyName
		}
		if input.TaxNumber != "" {
			record.TaxNumber = &input.TaxNumber
		}
		if input.TaxOffice != "" {
			record.TaxOffice = &input.TaxOffice
		}
	}

	updated, err := p.repo.Users().Update(ctx, record,
		repository.UpdateByID(user.ID.String()),
		repository.UpdateSkipZeroValues(),
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user record")
	}

	return updated, nil
}

// ResetPassword delegates to the identity provider. Credentials never touch
// the local store so there is nothing to write here.
func (p *Provisioner) ResetPassword(ctx context.Context, keycloakID string, input ResetPasswordInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	return p.provider.ResetCredential(ctx, keycloakID, input.Password)
}

// VerifyEmail consumes an activation token: it enables the remote identity,
// then atomically flips the local flag and clears the token. The conditional
// UPDATE makes the token single use even under concurrent requests.
func (p *Provisioner) VerifyEmail(ctx context.Context, token string) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email verification",
		)
	default:
		return p.verifyEmail(ctx, token)
	}
}

func (p *Provisioner) verifyEmail(ctx context.Context, token string) (*User, error) {
	user, err := p.repo.Users().GetByActivationToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrActivationTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
	}

	if err := p.provider.EnableIdentity(ctx, user.KeycloakID); err != nil {
		return nil, err
	}

	verified, err := p.repo.Users().MarkEmailVerified(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// a concurrent request consumed the token between lookup and flip
			return nil, ErrActivationTokenInvalid
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
	}

	return verified, nil
}

func remoteUpdate(input UpdateProfileInput) (IdentityUpdate, bool) {
	update := IdentityUpdate{}
	dirty := false

	if input.FirstName != "" {
		update.FirstName = &input.FirstName
		dirty = true
	}
	if input.LastName != "" {
		update.LastName = &input.LastName
		dirty = true
	}

	return update, dirty
}

func userNotFound(err error, keycloakID string) *goerrors.Error {
	clone := ErrUserNotFound.Clone()
	if clone == nil {
		return ErrUserNotFound
	}
	clone.Source = err
	return clone.WithMetadata(map[string]any{"keycloak_id": keycloakID})
}
