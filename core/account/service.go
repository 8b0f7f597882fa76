package account

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/member"
)

const (
	passwordResetTemplate = "password_reset"
	accountInviteTemplate = "account_invite"
)

var (
	// errors
	ErrNotFound      = errors.New("account not found")
	ErrEmailExists   = errors.New("an account with this email already exists")
	ErrAccountExists = errors.New("this person already has an account")
)

type (
	Repository interface {
		CreateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
		GetAccount(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Account, error)
		QueryAccounts(ctx context.Context, personIDs []string, exec ...core.DBExecutor) ([]Account, error)
		UpdateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
	}

	Service interface {
		member.Accounts

		GetByEmail(ctx context.Context, email string) (Account, error)
		GetByPersonID(ctx context.Context, personID string) (Account, error)
		ResetPassword(ctx context.Context, data ResetAccountPassword) error
		// SetPassword sets the password without applying the password policy.
		SetPassword(ctx context.Context, email, pwd string) error
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		tokenGen tokenGenerator
		resetURL string
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
		tokenGen: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
		resetURL: conf.FrontendBaseURL + "/password-reset/%s/%s",
	}
}

func (svc *service) HasAccount(ctx context.Context, personID string, exec ...core.DBExecutor) (bool, error) {
	if _, err := svc.repo.GetAccount(ctx, GetFilter{PersonID: personID}, exec...); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) AccountEmail(ctx context.Context, personID string, exec ...core.DBExecutor) (string, error) {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{PersonID: personID}, exec...)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return acc.Email, nil
}

// checkEmailUniqueness fails with a validation error when email is used by another person's account.
func (svc *service) checkEmailUniqueness(ctx context.Context, personID, email string, exec ...core.DBExecutor) error {
	acc, err := svc.repo.GetAccount(ctx, GetFilter{Email: email}, exec...)
	switch {
	case errors.Cause(err) == ErrNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking email uniqueness")
	case acc.PersonID != personID:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error(), Kind: ErrEmailExists})
	}
	return nil
}

func (svc *service) CreateAccount(ctx context.Context, personID, email string, exec ...core.DBExecutor) error {
	email = core.CleanString(email, true /* lower */)
	if has, err := svc.HasAccount(ctx, personID, exec...); err != nil {
		return err
	} else if has {
		return core.NewValidationError(ErrAccountExists, core.FieldError{Field: "email", Error: ErrAccountExists.Error(), Kind: ErrAccountExists})
	}
	if err := svc.checkEmailUniqueness(ctx, personID, email, exec...); err != nil {
		return err
	}

	acc := Account{
		PersonID:   personID,
		Email:      email,
		IsActive:   true,
		DateJoined: nowFunc().UTC(),
	}
	if _, err := svc.repo.CreateAccount(ctx, acc, exec...); err != nil {
		return errors.Wrap(err, "inserting account")
	}
	return nil
}

func (svc *service) UpdateEmail(ctx context.Context, personID, email string, exec ...core.DBExecutor) error {
	email = core.CleanString(email, true /* lower */)
	acc, err := svc.repo.GetAccount(ctx, GetFilter{PersonID: personID}, exec...)
	if err != nil {
		return err
	}
	if acc.Email == email {
		return nil
	}
	if err = svc.checkEmailUniqueness(ctx, personID, email, exec...); err != nil {
		return err
	}
	acc.Email = email
	if _, err = svc.repo.UpdateAccount(ctx, acc, exec...); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return nil
}

func (svc *service) Emails(ctx context.Context, personIDs []string, exec ...core.DBExecutor) (map[string]string, error) {
	emails := make(map[string]string, len(personIDs))
	if len(personIDs) == 0 {
		return emails, nil
	}
	accounts, err := svc.repo.QueryAccounts(ctx, personIDs, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	for _, acc := range accounts {
		if acc.IsActive {
			emails[acc.PersonID] = acc.Email
		}
	}
	return emails, nil
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByPersonID(ctx context.Context, personID string) (Account, error) {
	return svc.repo.GetAccount(ctx, GetFilter{PersonID: personID})
}

// TriggerPasswordReset mails a password reset link to the account's owner.
// Accounts that never set a password get an invitation instead.
func (svc *service) TriggerPasswordReset(ctx context.Context, email string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !acc.IsActive {
		return nil
	}

	subject, tmpl := "Password reset", passwordResetTemplate
	if !acc.HasUsablePassword() {
		subject, tmpl = "Your account", accountInviteTemplate
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: acc.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: map[string]string{
			"Email": acc.Email,
			"URL":   fmt.Sprintf(svc.resetURL, EncodeUID(acc), svc.tokenGen.makeToken(acc)),
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetAccountPassword) error {
	if err := data.Validate(svc.validate); err != nil {
		return err
	}

	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})
	id, err := decodeUID(data.UID)
	if err != nil {
		return invalidErr
	}
	acc, err := svc.repo.GetAccount(ctx, GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return err
	}
	if err = svc.tokenGen.verifyToken(acc, data.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err = validatePassword(svc.validate, data.Password, acc.Email); err != nil {
		return err
	}

	if err = acc.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return nil
}

func (svc *service) SetPassword(ctx context.Context, email, pwd string) error {
	acc, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = acc.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err = svc.repo.UpdateAccount(ctx, acc); err != nil {
		return errors.Wrap(err, "updating account")
	}
	return nil
}
