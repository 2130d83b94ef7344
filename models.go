package accounts

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserType discriminates the business profile shape
type UserType = string

const (
	// UserTypeIndividual is a personal account
	UserTypeIndividual UserType = "INDIVIDUAL"
	// UserTypeCorporate is a company account and requires the company fields
	UserTypeCorporate UserType = "CORPORATE"
)

// User is the local business profile. Credentials live in the identity
// provider, keyed by KeycloakID.
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	KeycloakID      string     `bun:"keycloak_id,notnull,unique" json:"keycloak_id,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FirstName       string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName        string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone           string     `bun:"phone_number" json:"phone_number,omitempty"`
	UserType        UserType   `bun:"user_type,notnull" json:"user_type,omitempty"`
	CompanyName     *string    `bun:"company_name" json:"company_name,omitempty"`
	TaxNumber       *string    `bun:"tax_number" json:"tax_number,omitempty"`
	TaxOffice       *string    `bun:"tax_office" json:"tax_office,omitempty"`
	EmailVerified   bool       `bun:"is_email_verified" json:"is_email_verified"`
	ActivationToken *string    `bun:"activation_token,unique,nullzero" json:"-"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsCorporate reports whether the record carries a company profile
func (u *User) IsCorporate() bool {
	return u != nil && u.UserType == UserTypeCorporate
}

// FullName joins first and last name for display and email templates
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NewActivationToken mints an opaque single use token for email verification.
// 32 hex chars is enough entropy that guessing is not a concern.
func NewActivationToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
