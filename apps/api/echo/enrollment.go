package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	metricsvc "github.com/cmeonline/enrollments/services/metrics"
)

const (
	programEndpoint = "program"
	courseEndpoint  = "program_course"
)

type (
	enrollmentApi struct {
		svc             *enrollment.Service
		metrics         *metricsvc.Collector
		defaultPageSize int
	}

	programEnrollmentResponse struct {
		StudentKey     string            `json:"student_key"`
		Status         enrollment.Status `json:"status"`
		AccountExists  bool              `json:"account_exists"`
		CurriculumUUID *string           `json:"curriculum_uuid"`
	}

	courseEnrollmentResponse struct {
		StudentKey    string            `json:"student_key"`
		Status        enrollment.Status `json:"status"`
		AccountExists bool              `json:"account_exists"`
	}
)

func registerEnrollmentAPI(
	g *echo.Group,
	catalogSvc *catalog.Service,
	svc *enrollment.Service,
	metrics *metricsvc.Collector,
	defaultPageSize int,
) {
	api := enrollmentApi{
		svc:             svc,
		metrics:         metrics,
		defaultPageSize: defaultPageSize,
	}

	pg := g.Group("/programs/:program_key", programMiddleware(catalogSvc), middleware.BodyLimit("1M"))
	pg.GET("/enrollments", api.listProgramEnrollments)
	pg.POST("/enrollments", api.enrollInProgram)

	cg := pg.Group("/courses/:course_key", programCourseMiddleware(catalogSvc))
	cg.GET("/enrollments", api.listCourseEnrollments)
	cg.POST("/enrollments", api.enrollInCourse)
}

// outcomeCode maps the aggregate outcome of a batch to its HTTP status code.
func outcomeCode(o enrollment.Outcome, success int) int {
	switch o {
	case enrollment.PartiallyApplied:
		return http.StatusMultiStatus
	case enrollment.FullyRejected:
		return http.StatusUnprocessableEntity
	default:
		return success
	}
}

// Handlers

func (api *enrollmentApi) listProgramEnrollments(ctx echo.Context) error {
	program, err := getContextProgram(ctx)
	if err != nil {
		return err
	}
	var p Pagination
	if err = p.Bind(ctx, api.defaultPageSize); err != nil {
		return err
	}

	pes, page, err := api.svc.ListProgramEnrollments(ctx.Request().Context(), program, p.Query)
	if err != nil {
		return errors.Wrap(err, "listing program enrollments")
	}
	results := make([]programEnrollmentResponse, len(pes))
	for i, pe := range pes {
		results[i] = programEnrollmentResponse{
			StudentKey:    pe.ExternalUserKey,
			Status:        pe.Status,
			AccountExists: pe.AccountExists(),
		}
		if pe.CurriculumUUID != nil {
			curriculum := pe.CurriculumUUID.String()
			results[i].CurriculumUUID = &curriculum
		}
	}
	return ctx.JSON(http.StatusOK, newPageResponse(ctx, page, results))
}

func (api *enrollmentApi) enrollInProgram(ctx echo.Context) error {
	program, err := getContextProgram(ctx)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	reqs, err := enrollment.ParseProgramBatch(body)
	if err != nil {
		return err
	}

	res, err := api.svc.EnrollInProgram(ctx.Request().Context(), program, reqs)
	if err != nil {
		return errors.Wrap(err, "enrolling in program")
	}
	api.metrics.ObserveBatch(programEndpoint, res)
	return ctx.JSON(outcomeCode(res.Outcome(), http.StatusCreated), res.Statuses)
}

func (api *enrollmentApi) listCourseEnrollments(ctx echo.Context) error {
	program, err := getContextProgram(ctx)
	if err != nil {
		return err
	}
	var p Pagination
	if err = p.Bind(ctx, api.defaultPageSize); err != nil {
		return err
	}

	pces, page, err := api.svc.ListProgramCourseEnrollments(ctx.Request().Context(), program, courseKeyParam(ctx), p.Query)
	if err != nil {
		return errors.Wrap(err, "listing program course enrollments")
	}
	results := make([]courseEnrollmentResponse, len(pces))
	for i, pce := range pces {
		results[i] = courseEnrollmentResponse{
			StudentKey:    pce.ExternalUserKey,
			Status:        pce.Status,
			AccountExists: pce.AccountExists(),
		}
	}
	return ctx.JSON(http.StatusOK, newPageResponse(ctx, page, results))
}

func (api *enrollmentApi) enrollInCourse(ctx echo.Context) error {
	program, err := getContextProgram(ctx)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	reqs, err := enrollment.ParseCourseBatch(body)
	if err != nil {
		return err
	}

	res, err := api.svc.EnrollInProgramCourse(ctx.Request().Context(), program, courseKeyParam(ctx), reqs)
	if err != nil {
		return errors.Wrap(err, "enrolling in program course")
	}
	api.metrics.ObserveBatch(courseEndpoint, res)
	return ctx.JSON(outcomeCode(res.Outcome(), http.StatusOK), res.Statuses)
}
