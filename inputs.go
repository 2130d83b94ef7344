package accounts

import (
	stderrors "errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

var taxNumberPattern = regexp.MustCompile(`^[0-9]{10,11}$`)

// RegisterInput is the registration payload. Corporate accounts must carry the
// company fields, individual accounts must not fail for omitting them.
type RegisterInput struct {
	Email       string `json:"email" form:"email"`
	Password    string `json:"password" form:"password"`
	FirstName   string `json:"firstName" form:"firstName"`
	LastName    string `json:"lastName" form:"lastName"`
	Phone       string `json:"phone" form:"phone"`
	UserType    string `json:"userType" form:"userType"`
	CompanyName string `json:"companyName" form:"companyName"`
	TaxNumber   string `json:"taxNumber" form:"taxNumber"`
	TaxOffice   string `json:"taxOffice" form:"taxOffice"`
}

// Validate will run validation rules
func (r RegisterInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
			validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Phone, validation.By(validPhoneNumber)),
			validation.Field(&r.UserType, validation.Required, validation.In(UserTypeIndividual, UserTypeCorporate)),
			validation.Field(&r.CompanyName, validation.By(requiredForCorporate(r.UserType)), validation.Length(0, 200)),
			validation.Field(&r.TaxNumber, validation.By(requiredForCorporate(r.UserType)), validation.Match(taxNumberPattern).Error("must be 10 or 11 digits")),
			validation.Field(&r.TaxOffice, validation.By(requiredForCorporate(r.UserType)), validation.Length(0, 200)),
		)
	}, "Invalid registration payload")
}

// LoginInput is the password grant payload
type LoginInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
			validation.Field(&r.Password, validation.Required),
		)
	}, "Invalid login payload")
}

// LogoutInput carries the refresh token to revoke
type LogoutInput struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// Validate will run validation rules
func (r LogoutInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.RefreshToken, validation.Required),
		)
	}, "Invalid logout payload")
}

// UpdateProfileInput is a partial profile update, empty fields are skipped.
// The email address is fixed at registration: changing it here would bypass
// verification, so the payload does not carry one.
type UpdateProfileInput struct {
	FirstName   string `json:"firstName" form:"firstName"`
	LastName    string `json:"lastName" form:"lastName"`
	Phone       string `json:"phone" form:"phone"`
	CompanyName string `json:"companyName" form:"companyName"`
	TaxNumber   string `json:"taxNumber" form:"taxNumber"`
	TaxOffice   string `json:"taxOffice" form:"taxOffice"`
}

// Validate will run validation rules
func (r UpdateProfileInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.FirstName, validation.Length(1, 200)),
			validation.Field(&r.LastName, validation.Length(1, 200)),
			validation.Field(&r.Phone, validation.By(validPhoneNumber)),
			validation.Field(&r.TaxNumber, validation.Match(taxNumberPattern).Error("must be 10 or 11 digits")),
		)
	}, "Invalid profile payload")
}

// IsEmpty reports whether the update carries no changes at all
func (r UpdateProfileInput) IsEmpty() bool {
	return r.FirstName == "" && r.LastName == "" &&
		r.Phone == "" && r.CompanyName == "" && r.TaxNumber == "" && r.TaxOffice == ""
}

// ResetPasswordInput carries the replacement credential
type ResetPasswordInput struct {
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r ResetPasswordInput) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		)
	}, "Invalid password payload")
}

// requiredForCorporate makes a field mandatory only for corporate payloads.
// A By rule keeps every offending field in the same validation pass.
func requiredForCorporate(userType string) validation.RuleFunc {
	return func(value any) error {
		if userType != UserTypeCorporate {
			return nil
		}
		s, _ := value.(string)
		if s == "" {
			return stderrors.New("required for corporate accounts")
		}
		return nil
	}
}

func validPhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "TR")
	if err != nil {
		return stderrors.New("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return stderrors.New("must be a valid phone number")
	}

	return nil
}
