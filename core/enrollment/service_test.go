package enrollment_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	inmemdb "github.com/cmeonline/enrollments/storage/database/inmem"
	"github.com/cmeonline/enrollments/tests"
)

const org = "cme"

func programReqs(pairs ...string) []enrollment.NewProgramEnrollment {
	reqs := make([]enrollment.NewProgramEnrollment, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		reqs = append(reqs, enrollment.NewProgramEnrollment{ExternalUserKey: pairs[i], Status: enrollment.Status(pairs[i+1])})
	}
	return reqs
}

func courseReqs(pairs ...string) []enrollment.NewCourseEnrollment {
	reqs := make([]enrollment.NewCourseEnrollment, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		reqs = append(reqs, enrollment.NewCourseEnrollment{StudentKey: pairs[i], Status: enrollment.Status(pairs[i+1])})
	}
	return reqs
}

func TestService_EnrollInProgram(t *testing.T) {
	tests := []struct {
		name         string
		existing     []string // keys enrolled before the batch
		reqs         []enrollment.NewProgramEnrollment
		wantErr      error
		wantOutcome  enrollment.Outcome
		wantStatuses map[string]enrollment.Status
		wantStored   int
	}{
		{
			name:         "empty batch",
			reqs:         []enrollment.NewProgramEnrollment{},
			wantOutcome:  enrollment.FullyApplied,
			wantStatuses: map[string]enrollment.Status{},
		},
		{
			name:         "all applied",
			reqs:         programReqs("001", "enrolled", "002", "pending"),
			wantOutcome:  enrollment.FullyApplied,
			wantStatuses: map[string]enrollment.Status{"001": "enrolled", "002": "pending"},
			wantStored:   2,
		},
		{
			name:         "duplicated key",
			reqs:         programReqs("001", "enrolled", "002", "enrolled", "001", "enrolled"),
			wantOutcome:  enrollment.PartiallyApplied,
			wantStatuses: map[string]enrollment.Status{"001": "duplicated", "002": "enrolled"},
			wantStored:   1,
		},
		{
			name:         "duplicated key with different statuses",
			reqs:         programReqs("001", "enrolled", "001", "lol"),
			wantOutcome:  enrollment.FullyRejected,
			wantStatuses: map[string]enrollment.Status{"001": "duplicated"},
		},
		{
			name:         "invalid status",
			reqs:         programReqs("001", "active", "002", "withdrawn"),
			wantOutcome:  enrollment.PartiallyApplied,
			wantStatuses: map[string]enrollment.Status{"001": "invalid-status", "002": "withdrawn"},
			wantStored:   1,
		},
		{
			name:         "conflict",
			existing:     []string{"001"},
			reqs:         programReqs("001", "enrolled", "002", "suspended"),
			wantOutcome:  enrollment.PartiallyApplied,
			wantStatuses: map[string]enrollment.Status{"001": "conflict", "002": "suspended"},
			wantStored:   2,
		},
		{
			name:         "only conflicts",
			existing:     []string{"001", "002"},
			reqs:         programReqs("001", "enrolled", "002", "enrolled"),
			wantOutcome:  enrollment.FullyRejected,
			wantStatuses: map[string]enrollment.Status{"001": "conflict", "002": "conflict"},
			wantStored:   2,
		},
		{
			name:    "blank key",
			reqs:    programReqs("001", "enrolled", "  ", "enrolled"),
			wantErr: enrollment.ErrInvalidRecord,
		},
		{
			name:    "missing status",
			reqs:    programReqs("001", "enrolled", "002", ""),
			wantErr: enrollment.ErrInvalidRecord,
		},
		{
			name: "malformed curriculum",
			reqs: []enrollment.NewProgramEnrollment{
				{ExternalUserKey: "001", Status: enrollment.StatusEnrolled, CurriculumUUID: "lol"},
			},
			wantErr: enrollment.ErrInvalidRecord,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewInmemEnv(t)
			program := testutil.CreateProgram(t, env.CatalogRepo, org)
			ctx := context.Background()

			for _, key := range tt.existing {
				_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, programReqs(key, "pending"))
				require.NoError(t, err)
			}

			res, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, tt.reqs)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				pes, _ := env.DB.Counts()
				assert.Equal(t, len(tt.existing), pes, "nothing persisted")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome())
			assert.Equal(t, tt.wantStatuses, res.Statuses)
			assert.Equal(t, len(tt.reqs), res.Requested)

			pes, _ := env.DB.Counts()
			assert.Equal(t, tt.wantStored, pes)
		})
	}
}

func TestService_EnrollInProgram_tooLarge(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org)

	reqs := make([]enrollment.NewProgramEnrollment, enrollment.MaxBatchSize+1)
	for i := range reqs {
		reqs[i] = enrollment.NewProgramEnrollment{ExternalUserKey: fmt.Sprintf("key-%d", i), Status: enrollment.StatusEnrolled}
	}
	_, err := env.EnrollmentSvc.EnrollInProgram(context.Background(), program, reqs)
	assert.Equal(t, enrollment.ErrBatchTooLarge, err)

	pes, _ := env.DB.Counts()
	assert.Zero(t, pes)
}

func TestService_EnrollInProgram_idempotent(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org)
	ctx := context.Background()
	reqs := programReqs("001", "enrolled", "002", "pending")

	first, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, reqs)
	require.NoError(t, err)
	assert.Equal(t, enrollment.FullyApplied, first.Outcome())

	second, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, reqs)
	require.NoError(t, err)
	assert.Equal(t, enrollment.FullyRejected, second.Outcome())
	assert.Equal(t, map[string]enrollment.Status{"001": "conflict", "002": "conflict"}, second.Statuses)

	pes, _ := env.DB.Counts()
	assert.Equal(t, 2, pes)
}

func TestService_EnrollInProgram_accounts(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org)
	acc := testutil.CreateAccount(t, env.AccountRepo, org, "001")
	testutil.CreateAccount(t, env.AccountRepo, "other-org", "002")
	ctx := context.Background()

	curriculum := uuid.New()
	reqs := []enrollment.NewProgramEnrollment{
		{ExternalUserKey: "001", Status: enrollment.StatusEnrolled, CurriculumUUID: curriculum.String()},
		{ExternalUserKey: "002", Status: enrollment.StatusPending},
	}
	_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, reqs)
	require.NoError(t, err)

	pes, err := env.EnrollmentRepo.GetProgramEnrollmentsByKeys(ctx, program.UUID, []string{"001", "002"})
	require.NoError(t, err)
	require.Len(t, pes, 2)

	assert.Equal(t, "001", pes[0].ExternalUserKey)
	if assert.NotNil(t, pes[0].UserID) {
		assert.Equal(t, acc.ID, *pes[0].UserID)
	}
	if assert.NotNil(t, pes[0].CurriculumUUID) {
		assert.Equal(t, curriculum, *pes[0].CurriculumUUID)
	}
	assert.Equal(t, "002", pes[1].ExternalUserKey)
	assert.Nil(t, pes[1].UserID, "accounts of other organizations are ignored")
	assert.False(t, pes[1].AccountExists())
}

func TestService_EnrollInProgram_curriculumForms(t *testing.T) {
	curriculum := uuid.New()

	tests := []struct {
		name  string
		value string
	}{
		{name: "lowercase", value: curriculum.String()},
		{name: "uppercase", value: strings.ToUpper(curriculum.String())},
		{name: "undashed", value: strings.ReplaceAll(curriculum.String(), "-", "")},
		{name: "undashed uppercase", value: strings.ToUpper(strings.ReplaceAll(curriculum.String(), "-", ""))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewInmemEnv(t)
			program := testutil.CreateProgram(t, env.CatalogRepo, org)
			ctx := context.Background()

			res, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, []enrollment.NewProgramEnrollment{
				{ExternalUserKey: "001", Status: enrollment.StatusEnrolled, CurriculumUUID: tt.value},
				{ExternalUserKey: "002", Status: enrollment.StatusEnrolled},
			})
			require.NoError(t, err)
			assert.Equal(t, enrollment.FullyApplied, res.Outcome())
			assert.Equal(t, map[string]enrollment.Status{"001": "enrolled", "002": "enrolled"}, res.Statuses)

			pes, err := env.EnrollmentRepo.GetProgramEnrollmentsByKeys(ctx, program.UUID, []string{"001"})
			require.NoError(t, err)
			require.Len(t, pes, 1)
			if assert.NotNil(t, pes[0].CurriculumUUID) {
				assert.Equal(t, curriculum.String(), pes[0].CurriculumUUID.String())
			}
		})
	}
}

// racingRepository hides existing enrollments from the conflict lookup, as a concurrent batch would.
type racingRepository struct {
	enrollment.Repository
}

func (r racingRepository) GetProgramEnrollmentsByKeys(context.Context, uuid.UUID, []string, ...core.DBExecutor) ([]enrollment.ProgramEnrollment, error) {
	return nil, nil
}

// racingCourseRepository hides existing course links only, so program enrollments still resolve.
type racingCourseRepository struct {
	enrollment.Repository
}

func (r racingCourseRepository) GetProgramCourseEnrollments(context.Context, string, []int64, ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, error) {
	return nil, nil
}

func TestService_EnrollInProgram_race(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org)
	ctx := context.Background()

	_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, programReqs("001", "enrolled"))
	require.NoError(t, err)

	svc := enrollment.NewService(env.DB, racingRepository{env.EnrollmentRepo}, env.AccountSvc, nil, env.Validate, core.NewNopLogger())
	res, err := svc.EnrollInProgram(ctx, program, programReqs("001", "enrolled", "002", "enrolled"))
	require.NoError(t, err)
	assert.Equal(t, map[string]enrollment.Status{"001": "conflict", "002": "enrolled"}, res.Statuses)
	assert.Equal(t, enrollment.PartiallyApplied, res.Outcome())
}

func TestService_EnrollInProgramCourse_race(t *testing.T) {
	const course = "course-v1:cme+101+2024"
	env, program := setupCourse(t)
	ctx := context.Background()

	_, err := env.EnrollmentSvc.EnrollInProgramCourse(ctx, program, course, courseReqs("A", "active"))
	require.NoError(t, err)
	_, before := env.DB.Counts()

	svc := enrollment.NewService(
		env.DB, racingCourseRepository{env.EnrollmentRepo}, env.AccountSvc, inmemdb.NewCourseRegistrar(env.DB), env.Validate, core.NewNopLogger(),
	)
	res, err := svc.EnrollInProgramCourse(ctx, program, course, courseReqs("A", "active", "B", "active"))
	require.NoError(t, err)
	assert.Equal(t, map[string]enrollment.Status{"A": "conflict", "B": "active"}, res.Statuses)
	assert.Equal(t, enrollment.PartiallyApplied, res.Outcome())
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 1, res.Applied)

	_, after := env.DB.Counts()
	assert.Equal(t, 1, after-before)
}

func setupCourse(t *testing.T) (*testutil.Env, catalog.Program) {
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org, "course-v1:cme+101+2024", "course-v1:cme+102+2024")
	_, err := env.EnrollmentSvc.EnrollInProgram(context.Background(), program, programReqs(
		"A", "enrolled", "B", "enrolled", "C", "enrolled", "l1", "enrolled",
	))
	require.NoError(t, err)
	return env, program
}

func TestService_EnrollInProgramCourse(t *testing.T) {
	const course = "course-v1:cme+101+2024"

	tests := []struct {
		name         string
		linked       []string // keys linked to the course before the batch
		reqs         []enrollment.NewCourseEnrollment
		wantErr      error
		wantOutcome  enrollment.Outcome
		wantStatuses map[string]enrollment.Status
	}{
		{
			name:         "duplicated and invalid status",
			reqs:         courseReqs("A", "active", "A", "inactive", "B", "not-a-status", "C", "active"),
			wantOutcome:  enrollment.PartiallyApplied,
			wantStatuses: map[string]enrollment.Status{"A": "duplicated", "B": "invalid-status", "C": "active"},
		},
		{
			name:         "all applied",
			reqs:         courseReqs("A", "active", "B", "inactive"),
			wantOutcome:  enrollment.FullyApplied,
			wantStatuses: map[string]enrollment.Status{"A": "active", "B": "inactive"},
		},
		{
			name:         "sole conflict",
			linked:       []string{"l1"},
			reqs:         courseReqs("l1", "active"),
			wantOutcome:  enrollment.FullyRejected,
			wantStatuses: map[string]enrollment.Status{"l1": "conflict"},
		},
		{
			name:         "not in program",
			reqs:         courseReqs("A", "active", "Z", "active"),
			wantOutcome:  enrollment.PartiallyApplied,
			wantStatuses: map[string]enrollment.Status{"A": "active", "Z": "not-in-program"},
		},
		{
			name:         "program status is not a course status",
			reqs:         courseReqs("A", "enrolled"),
			wantOutcome:  enrollment.FullyRejected,
			wantStatuses: map[string]enrollment.Status{"A": "invalid-status"},
		},
		{
			name:    "missing student key",
			reqs:    courseReqs("A", "active", "", "active"),
			wantErr: enrollment.ErrInvalidRecord,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, program := setupCourse(t)
			ctx := context.Background()

			for _, key := range tt.linked {
				_, err := env.EnrollmentSvc.EnrollInProgramCourse(ctx, program, course, courseReqs(key, "active"))
				require.NoError(t, err)
			}
			_, before := env.DB.Counts()

			res, err := env.EnrollmentSvc.EnrollInProgramCourse(ctx, program, course, tt.reqs)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome())
			assert.Equal(t, tt.wantStatuses, res.Statuses)

			_, after := env.DB.Counts()
			assert.Equal(t, res.Applied, after-before)
		})
	}
}

func TestService_EnrollInProgramCourse_unknownCourse(t *testing.T) {
	env, program := setupCourse(t)
	_, err := env.EnrollmentSvc.EnrollInProgramCourse(context.Background(), program, "course-v1:cme+999+2024", courseReqs("A", "active"))
	assert.Equal(t, catalog.ErrCourseNotFound, err)
}

func TestService_EnrollInProgramCourse_registrations(t *testing.T) {
	const course = "course-v1:cme+101+2024"
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org, course)
	withAcc := testutil.CreateAccount(t, env.AccountRepo, org, "A")
	ctx := context.Background()

	_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, programReqs("A", "enrolled", "B", "enrolled"))
	require.NoError(t, err)
	res, err := env.EnrollmentSvc.EnrollInProgramCourse(ctx, program, course, courseReqs("A", "inactive", "B", "active"))
	require.NoError(t, err)
	assert.Equal(t, enrollment.FullyApplied, res.Outcome())

	regs := env.DB.Registrations(withAcc.ID)
	if assert.Contains(t, regs, course) {
		assert.Equal(t, enrollment.ModeMasters, regs[course].Mode)
		assert.False(t, regs[course].IsActive)
	}

	pces, _, err := env.EnrollmentSvc.ListProgramCourseEnrollments(ctx, program, course, core.PageQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pces, 2)
	assert.Equal(t, "A", pces[0].ExternalUserKey)
	assert.NotNil(t, pces[0].CourseRegistrationID)
	assert.True(t, pces[0].AccountExists())
	assert.Equal(t, "B", pces[1].ExternalUserKey)
	assert.Nil(t, pces[1].CourseRegistrationID, "registration deferred until the learner has an account")
}

func TestService_LinkAccounts(t *testing.T) {
	const course = "course-v1:cme+101+2024"
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org, course)
	ctx := context.Background()

	_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, programReqs("A", "enrolled", "B", "enrolled"))
	require.NoError(t, err)
	_, err = env.EnrollmentSvc.EnrollInProgramCourse(ctx, program, course, courseReqs("A", "active", "B", "active"))
	require.NoError(t, err)

	res, err := env.EnrollmentSvc.LinkAccounts(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, enrollment.LinkResult{}, res, "no account yet")

	acc := testutil.CreateAccount(t, env.AccountRepo, org, "A")
	res, err = env.EnrollmentSvc.LinkAccounts(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, enrollment.LinkResult{Accounts: 1, Registrations: 1}, res)

	regs := env.DB.Registrations(acc.ID)
	if assert.Contains(t, regs, course) {
		assert.True(t, regs[course].IsActive)
	}

	res, err = env.EnrollmentSvc.LinkAccounts(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, enrollment.LinkResult{}, res, "nothing left to link")
}

type failingRegistrar struct{}

func (failingRegistrar) RegisterForCourse(context.Context, int64, string, string, bool, ...core.DBExecutor) (enrollment.CourseRegistration, error) {
	return enrollment.CourseRegistration{}, errors.New("registration service unavailable")
}

func TestService_EnrollInProgramCourse_rollback(t *testing.T) {
	const course = "course-v1:cme+101+2024"
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org, course)
	testutil.CreateAccount(t, env.AccountRepo, org, "B")
	ctx := context.Background()

	_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, programReqs("A", "enrolled", "B", "enrolled"))
	require.NoError(t, err)

	svc := enrollment.NewService(env.DB, env.EnrollmentRepo, env.AccountSvc, failingRegistrar{}, env.Validate, core.NewNopLogger())
	_, err = svc.EnrollInProgramCourse(ctx, program, course, courseReqs("A", "active", "B", "active"))
	assert.Error(t, err)

	_, pces := env.DB.Counts()
	assert.Zero(t, pces, "the whole batch is rolled back")
}

func TestService_ListProgramEnrollments(t *testing.T) {
	env := testutil.NewInmemEnv(t)
	program := testutil.CreateProgram(t, env.CatalogRepo, org)
	other := testutil.CreateProgram(t, env.CatalogRepo, org)
	ctx := context.Background()

	_, err := env.EnrollmentSvc.EnrollInProgram(ctx, program, programReqs("a", "enrolled", "b", "pending", "c", "enrolled"))
	require.NoError(t, err)
	_, err = env.EnrollmentSvc.EnrollInProgram(ctx, other, programReqs("z", "enrolled"))
	require.NoError(t, err)

	first, page, err := env.EnrollmentSvc.ListProgramEnrollments(ctx, program, core.PageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ExternalUserKey)
	assert.Equal(t, "b", first[1].ExternalUserKey)
	assert.Nil(t, page.Previous)
	require.NotNil(t, page.Next)

	second, page, err := env.EnrollmentSvc.ListProgramEnrollments(ctx, program, core.PageQuery{Cursor: page.Next, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].ExternalUserKey)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)

	back, page, err := env.EnrollmentSvc.ListProgramEnrollments(ctx, program, core.PageQuery{Cursor: page.Previous, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, first, back)
	assert.Nil(t, page.Previous)
	assert.NotNil(t, page.Next)
}

func TestService_DeleteProgramEnrollments(t *testing.T) {
	env, program := setupCourse(t)
	ctx := context.Background()
	_, err := env.EnrollmentSvc.EnrollInProgramCourse(ctx, program, "course-v1:cme+101+2024", courseReqs("A", "active"))
	require.NoError(t, err)

	n, err := env.EnrollmentSvc.DeleteProgramEnrollments(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	pes, pces := env.DB.Counts()
	assert.Zero(t, pes)
	assert.Zero(t, pces)
}
