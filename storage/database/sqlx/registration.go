package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/enrollment"
)

type courseRegistrar struct {
	repository
}

var _ enrollment.CourseRegistrar = (*courseRegistrar)(nil) // interface compliance check

func NewCourseRegistrar(exec core.DBExecutor) *courseRegistrar {
	return &courseRegistrar{repository{exec: exec}}
}

func (r courseRegistrar) RegisterForCourse(ctx context.Context, userID int64, courseKey, mode string, active bool, exec ...core.DBExecutor) (enrollment.CourseRegistration, error) {
	var reg enrollment.CourseRegistration
	err := r.getExec(exec).QueryRowContext(ctx, q(
		`INSERT INTO course_registrations (user_id, course_key, mode, is_active) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, course_key) DO UPDATE SET mode = EXCLUDED.mode, is_active = EXCLUDED.is_active, updated_at = now()
		RETURNING id, user_id, course_key, mode, is_active`),
		userID, courseKey, mode, active,
	).Scan(&reg.ID, &reg.UserID, &reg.CourseKey, &reg.Mode, &reg.IsActive)
	return reg, errors.Wrap(err, "upserting course registration")
}
