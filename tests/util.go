package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
	"github.com/cmeonline/enrollments/core/enrollment"
	"github.com/cmeonline/enrollments/storage/database"
	inmemdb "github.com/cmeonline/enrollments/storage/database/inmem"
)

// Env is a fully wired set of services backed by the in-memory database.
type Env struct {
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator

	CatalogRepo    catalog.Repository
	AccountRepo    account.Repository
	EnrollmentRepo enrollment.Repository

	CatalogSvc    *catalog.Service
	AccountSvc    *account.Service
	EnrollmentSvc *enrollment.Service
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate, translator
}

func NewInmemEnv(t *testing.T) *Env {
	t.Helper()

	db := inmemdb.Open()
	validate, translator := NewValidator()
	env := &Env{
		DB:             db,
		Validate:       validate,
		Translator:     translator,
		CatalogRepo:    inmemdb.NewCatalogRepository(db),
		AccountRepo:    inmemdb.NewAccountRepository(db),
		EnrollmentRepo: inmemdb.NewEnrollmentRepository(db),
	}
	env.CatalogSvc = catalog.NewService(env.CatalogRepo)
	env.AccountSvc = account.NewService(env.AccountRepo)
	env.EnrollmentSvc = enrollment.NewService(
		db, env.EnrollmentRepo, env.AccountSvc, inmemdb.NewCourseRegistrar(db), validate, core.NewNopLogger(),
	)
	return env
}

func CreateProgram(t *testing.T, repo catalog.Repository, orgKey string, courseKeys ...string) catalog.Program {
	t.Helper()

	program, err := repo.UpsertProgram(context.Background(), catalog.Program{
		UUID:            uuid.New(),
		Title:           "Master of " + orgKey,
		OrganizationKey: orgKey,
		CourseKeys:      courseKeys,
	})
	if err != nil {
		t.Fatalf("CreateProgram() failed: %v", err)
	}
	return program
}

func CreateAccount(t *testing.T, repo account.Repository, orgKey, externalKey string) account.Account {
	t.Helper()

	acc, err := repo.CreateAccount(context.Background(), account.Account{
		Username:        orgKey + "-" + externalKey,
		Email:           externalKey + "@" + orgKey + ".test",
		OrganizationKey: orgKey,
		ExternalUserKey: externalKey,
	})
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

// PrepareDB opens the database at TEST_DATABASE_URL, migrates it and empties every table.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	if _, err = db.Exec(`TRUNCATE program_course_enrollments, program_enrollments, course_registrations,
		learner_accounts, program_courses, programs RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("PrepareDB() failed to truncate: %v", err)
	}
	return db
}
