package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MarkEmailVerifiedSQL flips the verification flag and consumes the activation
// token in a single statement. Matching on the token makes the flip single use:
// a second call finds no row because the token is already NULL.
var MarkEmailVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"activation_token" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."activation_token" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	GetByKeycloakID(ctx context.Context, keycloakID string) (*User, error)
	GetByKeycloakIDTx(ctx context.Context, tx bun.IDB, keycloakID string) (*User, error)

	GetByActivationToken(ctx context.Context, token string) (*User, error)
	GetByActivationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	MarkEmailVerified(ctx context.Context, token string) (*User, error)
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, token string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) GetByKeycloakID(ctx context.Context, keycloakID string) (*User, error) {
	return a.GetByKeycloakIDTx(ctx, a.db, keycloakID)
}

func (a *users) GetByKeycloakIDTx(ctx context.Context, tx bun.IDB, keycloakID string) (*User, error) {
	return a.getByColumn(ctx, tx, "keycloak_id", keycloakID)
}

func (a *users) GetByActivationToken(ctx context.Context, token string) (*User, error) {
	return a.GetByActivationTokenTx(ctx, a.db, token)
}

func (a *users) GetByActivationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	return a.getByColumn(ctx, tx, "activation_token", token)
}

func (a *users) getByColumn(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"column": column,
			})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) MarkEmailVerified(ctx context.Context, token string) (*User, error) {
	return a.MarkEmailVerifiedTx(ctx, a.db, token)
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, MarkEmailVerifiedSQL, token)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"column": "activation_token",
			})
	}

	return res[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.UserType == "" {
		record.UserType = UserTypeIndividual
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
