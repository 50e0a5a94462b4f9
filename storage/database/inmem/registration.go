package inmemdb

import (
	"context"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/enrollment"
)

type courseRegistrar struct {
	db *DB
}

var _ enrollment.CourseRegistrar = (*courseRegistrar)(nil)

func NewCourseRegistrar(db *DB) enrollment.CourseRegistrar {
	return &courseRegistrar{db: db}
}

func (r *courseRegistrar) RegisterForCourse(_ context.Context, userID int64, courseKey, mode string, active bool, _ ...core.DBExecutor) (enrollment.CourseRegistration, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	for id, reg := range r.db.registrations {
		if reg.UserID == userID && reg.CourseKey == courseKey {
			reg.Mode = mode
			reg.IsActive = active
			r.db.registrations[id] = reg
			return reg, nil
		}
	}
	reg := enrollment.CourseRegistration{
		ID:        r.db.nextPK(),
		UserID:    userID,
		CourseKey: courseKey,
		Mode:      mode,
		IsActive:  active,
	}
	r.db.registrations[reg.ID] = reg
	return reg, nil
}

// Registrations returns the course registrations of a user, keyed by course.
func (db *DB) Registrations(userID int64) map[string]enrollment.CourseRegistration {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	regs := make(map[string]enrollment.CourseRegistration)
	for _, reg := range db.registrations {
		if reg.UserID == userID {
			regs[reg.CourseKey] = reg
		}
	}
	return regs
}
