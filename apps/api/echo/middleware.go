package echoapi

import (
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/catalog"
)

const contextProgramKey = "program"

func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Administrator {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// programMiddleware loads the program named by the `program_key` path param, or fails with catalog.ErrProgramNotFound.
func programMiddleware(svc *catalog.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			program, err := svc.GetProgram(ctx.Request().Context(), ctx.Param("program_key"))
			if err != nil {
				return err
			}
			ctx.Set(contextProgramKey, program)
			return next(ctx)
		}
	}
}

// programCourseMiddleware reloads the program with the `course_key` path param checked against its courses,
// or fails with catalog.ErrCourseNotFound.
func programCourseMiddleware(svc *catalog.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			program, err := svc.GetProgramCourse(ctx.Request().Context(), ctx.Param("program_key"), courseKeyParam(ctx))
			if err != nil {
				return err
			}
			ctx.Set(contextProgramKey, program)
			return next(ctx)
		}
	}
}

func getContextProgram(ctx echo.Context) (catalog.Program, error) {
	if program, ok := ctx.Get(contextProgramKey).(catalog.Program); ok {
		return program, nil
	}
	return catalog.Program{}, errProgramNotInCtx
}

// courseKeyParam returns the unescaped, trimmed `course_key` path param. Course keys may hold reserved characters.
func courseKeyParam(ctx echo.Context) string {
	key := ctx.Param("course_key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return core.CleanString(key)
}
