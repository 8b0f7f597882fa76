package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

func fieldErrorsMap(flds []core.FieldError) map[string]string {
	fldErrs := make(map[string]string, len(flds))
	for _, fErr := range flds {
		if _, ok := fldErrs[fErr.Field]; !ok { // keep the first error of a field
			fldErrs[fErr.Field] = fErr.Error
		}
	}
	return fldErrs
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}

			httpErr *echo.HTTPError
			vErrs   validator.ValidationErrors
			vErr    *core.ValidationError
		)

		switch {
		case errors.As(err, &httpErr):
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &vErrs):
			flds, _ := core.TranslateFieldErrors(vErrs, translator)
			code = http.StatusBadRequest
			message = fieldErrorsMap(flds)
		case errors.As(err, &vErr):
			if vErr.Fields != nil {
				message = fieldErrorsMap(vErr.Fields)
			} else {
				message = vErr.Error()
			}
			code = http.StatusBadRequest
		case errors.Is(err, member.ErrNotFound), errors.Is(err, account.ErrNotFound):
			code = http.StatusNotFound
			message = errors.Cause(err).Error()
		case errors.Is(err, member.ErrParentChildCycle), errors.Is(err, member.ErrNotParent),
			errors.Is(err, member.ErrDetachNotAllowed):
			code = http.StatusBadRequest
			message = errors.Cause(err).Error()
		case errors.Is(err, member.ErrMissingCurrentSchoolYear):
			code = http.StatusServiceUnavailable
			message = member.ErrMissingCurrentSchoolYear.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Request().URL.Path,
			})

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
