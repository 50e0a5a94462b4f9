package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/enrollment"
)

const (
	programEnrollmentCols = `pe.id, pe.external_user_key, pe.program_uuid, pe.curriculum_uuid, pe.user_id, pe.status, pe.created_at, pe.updated_at`

	courseEnrollmentCols = `pce.id, pce.program_enrollment_id, pce.course_key, pce.course_registration_id, pce.status,
		pce.created_at, pce.updated_at, pe.external_user_key, pe.user_id`
	courseEnrollmentFrom = ` FROM program_course_enrollments pce JOIN program_enrollments pe ON pe.id = pce.program_enrollment_id`
)

type (
	programEnrollmentRow struct {
		ID              int64       `db:"id"`
		ExternalUserKey string      `db:"external_user_key"`
		ProgramUUID     uuid.UUID   `db:"program_uuid"`
		CurriculumUUID  null.String `db:"curriculum_uuid"`
		UserID          null.Int64  `db:"user_id"`
		Status          string      `db:"status"`
		CreatedAt       time.Time   `db:"created_at"`
		UpdatedAt       time.Time   `db:"updated_at"`
	}

	courseEnrollmentRow struct {
		ID                   int64      `db:"id"`
		ProgramEnrollmentID  int64      `db:"program_enrollment_id"`
		CourseKey            string     `db:"course_key"`
		CourseRegistrationID null.Int64 `db:"course_registration_id"`
		Status               string     `db:"status"`
		CreatedAt            time.Time  `db:"created_at"`
		UpdatedAt            time.Time  `db:"updated_at"`
		ExternalUserKey      string     `db:"external_user_key"`
		UserID               null.Int64 `db:"user_id"`
	}
)

func (r programEnrollmentRow) toModel() enrollment.ProgramEnrollment {
	pe := enrollment.ProgramEnrollment{
		ID:              r.ID,
		ExternalUserKey: r.ExternalUserKey,
		ProgramUUID:     r.ProgramUUID,
		UserID:          r.UserID.Ptr(),
		Status:          enrollment.Status(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.CurriculumUUID.Valid {
		if curriculum, err := uuid.Parse(r.CurriculumUUID.String); err == nil {
			pe.CurriculumUUID = &curriculum
		}
	}
	return pe
}

func (r courseEnrollmentRow) toModel() enrollment.ProgramCourseEnrollment {
	return enrollment.ProgramCourseEnrollment{
		ID:                   r.ID,
		ProgramEnrollmentID:  r.ProgramEnrollmentID,
		CourseKey:            r.CourseKey,
		CourseRegistrationID: r.CourseRegistrationID.Ptr(),
		Status:               enrollment.Status(r.Status),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		ExternalUserKey:      r.ExternalUserKey,
		UserID:               r.UserID.Ptr(),
	}
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(exec core.DBExecutor) *enrollmentRepository {
	return &enrollmentRepository{repository{exec: exec}}
}

func (repo enrollmentRepository) queryProgramEnrollments(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]enrollment.ProgramEnrollment, error) {
	rows, err := exec.QueryContext(ctx, q(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var found []programEnrollmentRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, err
	}
	pes := make([]enrollment.ProgramEnrollment, len(found))
	for i, r := range found {
		pes[i] = r.toModel()
	}
	return pes, nil
}

func (repo enrollmentRepository) queryCourseEnrollments(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) ([]enrollment.ProgramCourseEnrollment, error) {
	rows, err := exec.QueryContext(ctx, q(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var found []courseEnrollmentRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, err
	}
	pces := make([]enrollment.ProgramCourseEnrollment, len(found))
	for i, r := range found {
		pces[i] = r.toModel()
	}
	return pces, nil
}

func (repo enrollmentRepository) GetProgramEnrollmentsByKeys(ctx context.Context, programUUID uuid.UUID, keys []string, exec ...core.DBExecutor) ([]enrollment.ProgramEnrollment, error) {
	pes, err := repo.queryProgramEnrollments(ctx, repo.getExec(exec),
		`SELECT `+programEnrollmentCols+` FROM program_enrollments pe
		WHERE pe.program_uuid = ? AND pe.external_user_key = ANY(?) ORDER BY pe.id`,
		programUUID, pq.Array(keys),
	)
	return pes, errors.Wrap(err, "selecting program enrollments by keys")
}

func (repo enrollmentRepository) CreateProgramEnrollment(ctx context.Context, pe enrollment.ProgramEnrollment, exec ...core.DBExecutor) (enrollment.ProgramEnrollment, error) {
	var curriculum null.String
	if pe.CurriculumUUID != nil {
		curriculum = null.StringFrom(pe.CurriculumUUID.String())
	}
	err := repo.getExec(exec).QueryRowContext(ctx, q(
		`INSERT INTO program_enrollments (external_user_key, program_uuid, curriculum_uuid, user_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (program_uuid, external_user_key) DO NOTHING
		RETURNING id`),
		pe.ExternalUserKey, pe.ProgramUUID, curriculum, null.Int64FromPtr(pe.UserID), string(pe.Status),
		pe.CreatedAt.UTC(), pe.UpdatedAt.UTC(),
	).Scan(&pe.ID)
	if err != nil {
		if err == sql.ErrNoRows || isUniqueViolation(err) {
			return enrollment.ProgramEnrollment{}, enrollment.ErrConflict
		}
		return enrollment.ProgramEnrollment{}, errors.Wrap(err, "inserting program enrollment")
	}
	return pe, nil
}

func (repo enrollmentRepository) QueryProgramEnrollments(ctx context.Context, programUUID uuid.UUID, pg core.PageQuery, exec ...core.DBExecutor) ([]enrollment.ProgramEnrollment, bool, error) {
	clause, args := pageClause(pg, "pe.id", []interface{}{programUUID})
	pes, err := repo.queryProgramEnrollments(ctx, repo.getExec(exec),
		`SELECT `+programEnrollmentCols+` FROM program_enrollments pe WHERE pe.program_uuid = ?`+clause,
		args...,
	)
	if err != nil {
		return nil, false, errors.Wrap(err, "selecting program enrollments")
	}
	n, hasMore := trimPage(len(pes), pg, func(i, j int) { pes[i], pes[j] = pes[j], pes[i] })
	return pes[:n], hasMore, nil
}

func (repo enrollmentRepository) QueryWaitingProgramEnrollments(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) ([]enrollment.ProgramEnrollment, error) {
	pes, err := repo.queryProgramEnrollments(ctx, repo.getExec(exec),
		`SELECT `+programEnrollmentCols+` FROM program_enrollments pe
		WHERE pe.program_uuid = ? AND pe.user_id IS NULL ORDER BY pe.id`,
		programUUID,
	)
	return pes, errors.Wrap(err, "selecting waiting program enrollments")
}

func (repo enrollmentRepository) LinkProgramEnrollmentAccount(ctx context.Context, id, userID int64, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		q(`UPDATE program_enrollments SET user_id = ?, updated_at = now() WHERE id = ?`),
		userID, id,
	)
	return errors.Wrap(err, "updating program enrollment")
}

func (repo enrollmentRepository) DeleteProgramEnrollments(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) (int64, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, q(`DELETE FROM program_enrollments WHERE program_uuid = ?`), programUUID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting program enrollments")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "counting deleted program enrollments")
}

func (repo enrollmentRepository) GetProgramCourseEnrollments(ctx context.Context, courseKey string, programEnrollmentIDs []int64, exec ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, error) {
	pces, err := repo.queryCourseEnrollments(ctx, repo.getExec(exec),
		`SELECT `+courseEnrollmentCols+courseEnrollmentFrom+`
		WHERE pce.course_key = ? AND pce.program_enrollment_id = ANY(?) ORDER BY pce.id`,
		courseKey, pq.Array(programEnrollmentIDs),
	)
	return pces, errors.Wrap(err, "selecting program course enrollments")
}

func (repo enrollmentRepository) CreateProgramCourseEnrollment(ctx context.Context, pce enrollment.ProgramCourseEnrollment, exec ...core.DBExecutor) (enrollment.ProgramCourseEnrollment, error) {
	err := repo.getExec(exec).QueryRowContext(ctx, q(
		`INSERT INTO program_course_enrollments (program_enrollment_id, course_key, course_registration_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (program_enrollment_id, course_key) DO NOTHING
		RETURNING id`),
		pce.ProgramEnrollmentID, pce.CourseKey, null.Int64FromPtr(pce.CourseRegistrationID), string(pce.Status),
		pce.CreatedAt.UTC(), pce.UpdatedAt.UTC(),
	).Scan(&pce.ID)
	if err != nil {
		if err == sql.ErrNoRows || isUniqueViolation(err) {
			return enrollment.ProgramCourseEnrollment{}, enrollment.ErrConflict
		}
		return enrollment.ProgramCourseEnrollment{}, errors.Wrap(err, "inserting program course enrollment")
	}
	return pce, nil
}

func (repo enrollmentRepository) QueryProgramCourseEnrollments(ctx context.Context, programUUID uuid.UUID, courseKey string, pg core.PageQuery, exec ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, bool, error) {
	clause, args := pageClause(pg, "pce.id", []interface{}{programUUID, courseKey})
	pces, err := repo.queryCourseEnrollments(ctx, repo.getExec(exec),
		`SELECT `+courseEnrollmentCols+courseEnrollmentFrom+`
		WHERE pe.program_uuid = ? AND pce.course_key = ?`+clause,
		args...,
	)
	if err != nil {
		return nil, false, errors.Wrap(err, "selecting program course enrollments")
	}
	n, hasMore := trimPage(len(pces), pg, func(i, j int) { pces[i], pces[j] = pces[j], pces[i] })
	return pces[:n], hasMore, nil
}

func (repo enrollmentRepository) QueryUnregisteredCourseEnrollments(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, error) {
	pces, err := repo.queryCourseEnrollments(ctx, repo.getExec(exec),
		`SELECT `+courseEnrollmentCols+courseEnrollmentFrom+`
		WHERE pe.program_uuid = ? AND pe.user_id IS NOT NULL AND pce.course_registration_id IS NULL
		ORDER BY pce.id`,
		programUUID,
	)
	return pces, errors.Wrap(err, "selecting unregistered program course enrollments")
}

func (repo enrollmentRepository) SetCourseRegistration(ctx context.Context, id, registrationID int64, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		q(`UPDATE program_course_enrollments SET course_registration_id = ?, updated_at = now() WHERE id = ?`),
		registrationID, id,
	)
	return errors.Wrap(err, "updating program course enrollment")
}
