package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/catalog"
)

type catalogRepository struct {
	repository
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(exec core.DBExecutor) *catalogRepository {
	return &catalogRepository{repository{exec: exec}}
}

func (repo catalogRepository) GetProgram(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) (catalog.Program, error) {
	var (
		program    catalog.Program
		courseKeys pq.StringArray
	)
	err := repo.getExec(exec).QueryRowContext(ctx, q(
		`SELECT p.uuid, p.title, p.organization_key,
			COALESCE(array_agg(pc.course_key ORDER BY pc.position) FILTER (WHERE pc.course_key IS NOT NULL), '{}')
		FROM programs p LEFT JOIN program_courses pc ON pc.program_uuid = p.uuid
		WHERE p.uuid = ?
		GROUP BY p.uuid`),
		programUUID,
	).Scan(&program.UUID, &program.Title, &program.OrganizationKey, &courseKeys)
	if err != nil {
		if err == sql.ErrNoRows {
			return catalog.Program{}, catalog.ErrProgramNotFound
		}
		return catalog.Program{}, errors.Wrap(err, "selecting program")
	}
	program.CourseKeys = courseKeys
	return program, nil
}

// UpsertProgram replaces the program and its course list.
// Without a transaction from the caller, one is opened when the executor can begin it.
func (repo catalogRepository) UpsertProgram(ctx context.Context, program catalog.Program, exec ...core.DBExecutor) (catalog.Program, error) {
	ex := repo.getExec(exec)
	if db, ok := ex.(core.DB); ok {
		err := core.NewTxRunner(db).RunInTx(ctx, func(tx core.DBExecutor) error {
			return repo.upsertProgram(ctx, tx, program)
		})
		return program, err
	}
	return program, repo.upsertProgram(ctx, ex, program)
}

func (repo catalogRepository) upsertProgram(ctx context.Context, exec core.DBExecutor, program catalog.Program) error {
	_, err := exec.ExecContext(ctx, q(
		`INSERT INTO programs (uuid, title, organization_key) VALUES (?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET title = EXCLUDED.title, organization_key = EXCLUDED.organization_key, updated_at = now()`),
		program.UUID, program.Title, program.OrganizationKey,
	)
	if err != nil {
		return errors.Wrap(err, "upserting program")
	}
	if _, err = exec.ExecContext(ctx, q(`DELETE FROM program_courses WHERE program_uuid = ?`), program.UUID); err != nil {
		return errors.Wrap(err, "deleting program courses")
	}
	_, err = exec.ExecContext(ctx, q(
		`INSERT INTO program_courses (program_uuid, course_key, position)
		SELECT ?::uuid, t.course_key, t.position FROM unnest(?::text[]) WITH ORDINALITY AS t(course_key, position)`),
		program.UUID, pq.Array(program.CourseKeys),
	)
	return errors.Wrap(err, "inserting program courses")
}
