package catalog

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
)

var (
	// errors
	ErrProgramNotFound = core.NewRequestError("program_does_not_exist", "no program exists with given key")
	ErrCourseNotFound  = core.NewRequestError("course_not_in_program", "the program does not contain the given course")
)

type (
	Repository interface {
		// GetProgram returns ErrProgramNotFound if no program has the given UUID.
		GetProgram(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) (Program, error)
		UpsertProgram(ctx context.Context, program Program, exec ...core.DBExecutor) (Program, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetProgram looks a program up by its key. Keys that are not UUIDs cannot exist.
func (svc *Service) GetProgram(ctx context.Context, programKey string) (Program, error) {
	programUUID, err := uuid.Parse(core.CleanString(programKey))
	if err != nil {
		return Program{}, ErrProgramNotFound
	}
	program, err := svc.repo.GetProgram(ctx, programUUID)
	if err != nil {
		if errors.Cause(err) == ErrProgramNotFound {
			return Program{}, ErrProgramNotFound
		}
		return Program{}, errors.Wrap(err, "getting program")
	}
	return program, nil
}

// GetProgramCourse checks that courseKey is part of the program.
func (svc *Service) GetProgramCourse(ctx context.Context, programKey, courseKey string) (Program, error) {
	program, err := svc.GetProgram(ctx, programKey)
	if err != nil {
		return Program{}, err
	}
	if !program.HasCourse(core.CleanString(courseKey)) {
		return Program{}, ErrCourseNotFound
	}
	return program, nil
}

func (svc *Service) Register(ctx context.Context, validate *validator.Validate, np NewProgram) (Program, error) {
	np.Title = core.CleanString(np.Title)
	np.OrganizationKey = core.CleanString(np.OrganizationKey)
	if err := validate.Struct(np); err != nil {
		return Program{}, err
	}
	courseKeys := make([]string, 0, len(np.CourseKeys))
	for _, key := range np.CourseKeys {
		courseKeys = append(courseKeys, core.CleanString(key))
	}
	program, err := svc.repo.UpsertProgram(ctx, Program{
		UUID:            uuid.MustParse(np.UUID),
		Title:           np.Title,
		OrganizationKey: np.OrganizationKey,
		CourseKeys:      courseKeys,
	})
	return program, errors.Wrap(err, "upserting program")
}
