package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/troopconnect/troopconnect/core"
)

type Account struct {
	ID           string    `json:"id"`
	PersonID     string    `json:"person_id"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	PasswordHash []byte    `json:"-"`
	DateJoined   time.Time `json:"date_joined"` // UTC
	LastLogin    time.Time `json:"last_login"`  // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// HasUsablePassword is false for invited accounts that never set a password.
func (a *Account) HasUsablePassword() bool {
	return len(a.PasswordHash) > 0
}

type GetFilter struct {
	ID       string
	PersonID string
	Email    string
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

type ResetAccountPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetAccountPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }
