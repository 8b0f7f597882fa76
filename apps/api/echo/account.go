package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
)

type accountApi struct {
	svc      account.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerAccountAPI(g *echo.Group, svc account.Service, validate *validator.Validate, logger core.Logger) {
	api := accountApi{svc: svc, validate: validate, logger: logger}

	ag := g.Group("/accounts")
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data account.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.TriggerPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Is(err, account.ErrNotFound)) {
		// do not return errors to attackers
		args := []interface{}{errors.Wrap(err, "requesting password reset")}
		if acc, aErr := api.svc.GetByEmail(ctx.Request().Context(), data.Email); aErr == nil {
			args = append(args, acc)
		}
		api.logger.Error("requesting password reset", args...)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) confirmPasswordReset(ctx echo.Context) error {
	var data account.ResetAccountPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetAccountPassword")
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
