package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	sqlxrepos "github.com/cmeonline/enrollments/storage/database/sqlx"
	"github.com/cmeonline/enrollments/tests"
)

const (
	org    = "cme"
	course = "course-v1:cme+101+2024"
)

type repos struct {
	catalog    catalog.Repository
	accounts   account.Repository
	enrollment enrollment.Repository
	svc        *enrollment.Service
}

func setup(t *testing.T) repos {
	db := testutil.PrepareDB(t)
	validate, _ := testutil.NewValidator()

	r := repos{
		catalog:    sqlxrepos.NewCatalogRepository(db),
		accounts:   sqlxrepos.NewAccountRepository(db),
		enrollment: sqlxrepos.NewEnrollmentRepository(db),
	}
	r.svc = enrollment.NewService(
		core.NewTxRunner(db),
		r.enrollment,
		account.NewService(r.accounts),
		sqlxrepos.NewCourseRegistrar(db),
		validate,
		core.NewNopLogger(),
	)
	return r
}

func TestCatalogRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	_, err := r.catalog.GetProgram(ctx, uuid.New())
	assert.Equal(t, catalog.ErrProgramNotFound, err)

	program := testutil.CreateProgram(t, r.catalog, org, "c2", "c1")
	got, err := r.catalog.GetProgram(ctx, program.UUID)
	require.NoError(t, err)
	assert.Equal(t, program, got)

	program.Title = "Renamed"
	program.CourseKeys = nil
	_, err = r.catalog.UpsertProgram(ctx, program)
	require.NoError(t, err)
	got, err = r.catalog.GetProgram(ctx, program.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Empty(t, got.CourseKeys)
}

func TestAccountRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()

	acc := testutil.CreateAccount(t, r.accounts, org, "001")
	testutil.CreateAccount(t, r.accounts, "other", "001")

	_, err := r.accounts.CreateAccount(ctx, account.Account{Username: "dup", OrganizationKey: org, ExternalUserKey: "001"})
	assert.Equal(t, account.ErrAccountExists, err)

	found, err := r.accounts.FindByExternalKeys(ctx, org, []string{"001", "002"})
	require.NoError(t, err)
	assert.Equal(t, []account.Account{acc}, found)
}

func TestEnrollmentRepository(t *testing.T) {
	r := setup(t)
	ctx := context.Background()
	program := testutil.CreateProgram(t, r.catalog, org, course)
	acc := testutil.CreateAccount(t, r.accounts, org, "A")

	res, err := r.svc.EnrollInProgram(ctx, program, []enrollment.NewProgramEnrollment{
		{ExternalUserKey: "A", Status: enrollment.StatusEnrolled},
		{ExternalUserKey: "B", Status: enrollment.StatusPending, CurriculumUUID: uuid.New().String()},
		{ExternalUserKey: "C", Status: enrollment.StatusEnrolled},
	})
	require.NoError(t, err)
	assert.Equal(t, enrollment.FullyApplied, res.Outcome())

	_, err = r.enrollment.CreateProgramEnrollment(ctx, enrollment.ProgramEnrollment{
		ExternalUserKey: "A", ProgramUUID: program.UUID, Status: enrollment.StatusEnrolled,
	})
	assert.Equal(t, enrollment.ErrConflict, err)

	pes, err := r.enrollment.GetProgramEnrollmentsByKeys(ctx, program.UUID, []string{"A", "B", "Z"})
	require.NoError(t, err)
	require.Len(t, pes, 2)
	if assert.NotNil(t, pes[0].UserID) {
		assert.Equal(t, acc.ID, *pes[0].UserID)
	}
	assert.NotNil(t, pes[1].CurriculumUUID)

	// pagination
	page1, more, err := r.enrollment.QueryProgramEnrollments(ctx, program.UUID, core.PageQuery{Limit: 2})
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, page1, 2)
	page2, more, err := r.enrollment.QueryProgramEnrollments(ctx, program.UUID, core.PageQuery{Cursor: &core.Cursor{Position: page1[1].ID}, Limit: 2})
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page2, 1)
	back, more, err := r.enrollment.QueryProgramEnrollments(ctx, program.UUID, core.PageQuery{Cursor: &core.Cursor{Position: page2[0].ID, Reverse: true}, Limit: 2})
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, page1, back)

	// course links
	res, err = r.svc.EnrollInProgramCourse(ctx, program, course, []enrollment.NewCourseEnrollment{
		{StudentKey: "A", Status: enrollment.StatusActive},
		{StudentKey: "B", Status: enrollment.StatusInactive},
		{StudentKey: "Z", Status: enrollment.StatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]enrollment.Status{"A": "active", "B": "inactive", "Z": "not-in-program"}, res.Statuses)

	res, err = r.svc.EnrollInProgramCourse(ctx, program, course, []enrollment.NewCourseEnrollment{
		{StudentKey: "A", Status: enrollment.StatusInactive},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]enrollment.Status{"A": "conflict"}, res.Statuses)

	pces, more, err := r.enrollment.QueryProgramCourseEnrollments(ctx, program.UUID, course, core.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, pces, 2)
	assert.NotNil(t, pces[0].CourseRegistrationID)
	assert.Nil(t, pces[1].CourseRegistrationID)

	// late account
	testutil.CreateAccount(t, r.accounts, org, "B")
	link, err := r.svc.LinkAccounts(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, enrollment.LinkResult{Accounts: 1, Registrations: 1}, link)

	n, err := r.svc.DeleteProgramEnrollments(ctx, program)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	pces, _, err = r.enrollment.QueryProgramCourseEnrollments(ctx, program.UUID, course, core.PageQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, pces, "course links cascade")
}
