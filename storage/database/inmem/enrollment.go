package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) GetProgramEnrollmentsByKeys(_ context.Context, programUUID uuid.UUID, keys []string, _ ...core.DBExecutor) ([]enrollment.ProgramEnrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		wanted[key] = true
	}
	pes := make([]enrollment.ProgramEnrollment, 0, len(keys))
	for _, pe := range repo.db.programEnrollments {
		if pe.ProgramUUID == programUUID && wanted[pe.ExternalUserKey] {
			pes = append(pes, pe)
		}
	}
	sort.Slice(pes, func(i, j int) bool { return pes[i].ID < pes[j].ID })
	return pes, nil
}

func (repo *enrollmentRepository) CreateProgramEnrollment(_ context.Context, pe enrollment.ProgramEnrollment, _ ...core.DBExecutor) (enrollment.ProgramEnrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.programEnrollments {
		if e.ProgramUUID == pe.ProgramUUID && e.ExternalUserKey == pe.ExternalUserKey {
			return enrollment.ProgramEnrollment{}, enrollment.ErrConflict
		}
	}
	pe.ID = repo.db.nextPK()
	repo.db.programEnrollments[pe.ID] = pe
	return pe, nil
}

func (repo *enrollmentRepository) QueryProgramEnrollments(_ context.Context, programUUID uuid.UUID, q core.PageQuery, _ ...core.DBExecutor) ([]enrollment.ProgramEnrollment, bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]int64, 0)
	for id, pe := range repo.db.programEnrollments {
		if pe.ProgramUUID == programUUID {
			ids = append(ids, id)
		}
	}
	ids, hasMore := paginate(ids, q)
	pes := make([]enrollment.ProgramEnrollment, len(ids))
	for i, id := range ids {
		pes[i] = repo.db.programEnrollments[id]
	}
	return pes, hasMore, nil
}

func (repo *enrollmentRepository) QueryWaitingProgramEnrollments(_ context.Context, programUUID uuid.UUID, _ ...core.DBExecutor) ([]enrollment.ProgramEnrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	pes := make([]enrollment.ProgramEnrollment, 0)
	for _, pe := range repo.db.programEnrollments {
		if pe.ProgramUUID == programUUID && pe.UserID == nil {
			pes = append(pes, pe)
		}
	}
	sort.Slice(pes, func(i, j int) bool { return pes[i].ID < pes[j].ID })
	return pes, nil
}

func (repo *enrollmentRepository) LinkProgramEnrollmentAccount(_ context.Context, id, userID int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pe, ok := repo.db.programEnrollments[id]
	if !ok {
		return nil
	}
	pe.UserID = &userID
	repo.db.programEnrollments[id] = pe
	return nil
}

func (repo *enrollmentRepository) DeleteProgramEnrollments(_ context.Context, programUUID uuid.UUID, _ ...core.DBExecutor) (int64, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int64
	for id, pe := range repo.db.programEnrollments {
		if pe.ProgramUUID != programUUID {
			continue
		}
		for pceID, pce := range repo.db.courseEnrollments {
			if pce.ProgramEnrollmentID == id {
				delete(repo.db.courseEnrollments, pceID)
			}
		}
		delete(repo.db.programEnrollments, id)
		n++
	}
	return n, nil
}

// withOwner fills the read-only fields of pce from its program enrollment. Requires the read lock.
func (repo *enrollmentRepository) withOwner(pce enrollment.ProgramCourseEnrollment) enrollment.ProgramCourseEnrollment {
	pe := repo.db.programEnrollments[pce.ProgramEnrollmentID]
	pce.ExternalUserKey = pe.ExternalUserKey
	pce.UserID = pe.UserID
	return pce
}

func (repo *enrollmentRepository) GetProgramCourseEnrollments(_ context.Context, courseKey string, programEnrollmentIDs []int64, _ ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[int64]bool, len(programEnrollmentIDs))
	for _, id := range programEnrollmentIDs {
		wanted[id] = true
	}
	pces := make([]enrollment.ProgramCourseEnrollment, 0, len(programEnrollmentIDs))
	for _, pce := range repo.db.courseEnrollments {
		if pce.CourseKey == courseKey && wanted[pce.ProgramEnrollmentID] {
			pces = append(pces, repo.withOwner(pce))
		}
	}
	sort.Slice(pces, func(i, j int) bool { return pces[i].ID < pces[j].ID })
	return pces, nil
}

func (repo *enrollmentRepository) CreateProgramCourseEnrollment(_ context.Context, pce enrollment.ProgramCourseEnrollment, _ ...core.DBExecutor) (enrollment.ProgramCourseEnrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.courseEnrollments {
		if e.ProgramEnrollmentID == pce.ProgramEnrollmentID && e.CourseKey == pce.CourseKey {
			return enrollment.ProgramCourseEnrollment{}, enrollment.ErrConflict
		}
	}
	pce.ID = repo.db.nextPK()
	pce.ExternalUserKey, pce.UserID = "", nil
	repo.db.courseEnrollments[pce.ID] = pce
	return repo.withOwner(pce), nil
}

func (repo *enrollmentRepository) QueryProgramCourseEnrollments(_ context.Context, programUUID uuid.UUID, courseKey string, q core.PageQuery, _ ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]int64, 0)
	for id, pce := range repo.db.courseEnrollments {
		if pce.CourseKey == courseKey && repo.db.programEnrollments[pce.ProgramEnrollmentID].ProgramUUID == programUUID {
			ids = append(ids, id)
		}
	}
	ids, hasMore := paginate(ids, q)
	pces := make([]enrollment.ProgramCourseEnrollment, len(ids))
	for i, id := range ids {
		pces[i] = repo.withOwner(repo.db.courseEnrollments[id])
	}
	return pces, hasMore, nil
}

func (repo *enrollmentRepository) QueryUnregisteredCourseEnrollments(_ context.Context, programUUID uuid.UUID, _ ...core.DBExecutor) ([]enrollment.ProgramCourseEnrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	pces := make([]enrollment.ProgramCourseEnrollment, 0)
	for _, pce := range repo.db.courseEnrollments {
		if pce.CourseRegistrationID != nil {
			continue
		}
		pe := repo.db.programEnrollments[pce.ProgramEnrollmentID]
		if pe.ProgramUUID == programUUID && pe.UserID != nil {
			pces = append(pces, repo.withOwner(pce))
		}
	}
	sort.Slice(pces, func(i, j int) bool { return pces[i].ID < pces[j].ID })
	return pces, nil
}

func (repo *enrollmentRepository) SetCourseRegistration(_ context.Context, id, registrationID int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pce, ok := repo.db.courseEnrollments[id]
	if !ok {
		return nil
	}
	pce.CourseRegistrationID = &registrationID
	repo.db.courseEnrollments[id] = pce
	return nil
}

// Counts returns the number of stored program and program course enrollments.
func (db *DB) Counts() (programEnrollments, courseEnrollments int) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.programEnrollments), len(db.courseEnrollments)
}
