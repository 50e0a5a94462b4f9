package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidCursor   = echo.NewHTTPError(http.StatusNotFound, "invalid cursor")
	errProgramNotInCtx = errors.New("program not found in echo.Context")

	// requestErrorCodes maps core.RequestError codes to HTTP status codes.
	requestErrorCodes = map[string]int{
		catalog.ErrProgramNotFound.Code:   http.StatusNotFound,
		catalog.ErrCourseNotFound.Code:    http.StatusNotFound,
		enrollment.ErrMalformedBatch.Code: http.StatusBadRequest,
		enrollment.ErrBatchTooLarge.Code:  http.StatusRequestEntityTooLarge,
		enrollment.ErrInvalidRecord.Code:  http.StatusUnprocessableEntity,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case *core.RequestError:
			var ok bool
			if code, ok = requestErrorCodes[origErr.Code]; !ok {
				code = http.StatusBadRequest
			}
			if code == http.StatusNotFound {
				message = echo.Map{"developer_message": origErr.Message, "error_code": origErr.Code}
			} else {
				message = origErr.Message
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			if ctx.Echo().Debug {
				message = err.Error()
			}

			logger.Error(msg, errors.Wrap(err, msg), contextActor(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
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
