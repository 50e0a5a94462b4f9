package enrollment

import (
	"time"

	"github.com/google/uuid"
)

// MaxBatchSize is the largest number of records a single enrollment request may carry.
const MaxBatchSize = 25

// Status is either an applied enrollment status or the error tag of a rejected record.
type Status string

const (
	// program enrollment statuses
	StatusEnrolled  Status = "enrolled"
	StatusPending   Status = "pending"
	StatusSuspended Status = "suspended"
	StatusWithdrawn Status = "withdrawn"

	// program course enrollment statuses
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"

	// record errors
	StatusDuplicated   Status = "duplicated"
	StatusConflict     Status = "conflict"
	StatusInvalid      Status = "invalid-status"
	StatusNotInProgram Status = "not-in-program"
)

var (
	ProgramStatuses = []Status{StatusEnrolled, StatusPending, StatusSuspended, StatusWithdrawn}
	CourseStatuses  = []Status{StatusActive, StatusInactive}
)

func (s Status) in(allowed []Status) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// IsError reports whether s tags a rejected record.
func (s Status) IsError() bool {
	switch s {
	case StatusDuplicated, StatusConflict, StatusInvalid, StatusNotInProgram:
		return true
	}
	return false
}

type (
	// NewProgramEnrollment is one record of a program enrollment request.
	NewProgramEnrollment struct {
		ExternalUserKey string `json:"external_user_key" validate:"required,notblank"`
		Status          Status `json:"status" validate:"required,programstatus"`
		CurriculumUUID  string `json:"curriculum_uuid" validate:"omitempty,curriculum"`
	}

	// NewCourseEnrollment is one record of a program course enrollment request.
	NewCourseEnrollment struct {
		StudentKey string `json:"student_key" validate:"required,notblank"`
		Status     Status `json:"status" validate:"required,coursestatus"`
	}
)

// ProgramEnrollment is a learner's membership in a program.
// A nil UserID marks a waiting enrollment: the learner has no account yet.
type ProgramEnrollment struct {
	ID              int64
	ExternalUserKey string
	ProgramUUID     uuid.UUID
	CurriculumUUID  *uuid.UUID
	UserID          *int64
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (pe ProgramEnrollment) AccountExists() bool {
	return pe.UserID != nil
}

// ProgramCourseEnrollment links a program enrollment to one course of the program.
// CourseRegistrationID is nil until the learner has an account.
type ProgramCourseEnrollment struct {
	ID                   int64
	ProgramEnrollmentID  int64
	CourseKey            string
	CourseRegistrationID *int64
	Status               Status
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// read-only, from the owning program enrollment
	ExternalUserKey string
	UserID          *int64
}

func (pce ProgramCourseEnrollment) AccountExists() bool {
	return pce.UserID != nil
}

// CourseRegistration is the learner's seat in a course run.
type CourseRegistration struct {
	ID        int64
	UserID    int64
	CourseKey string
	Mode      string
	IsActive  bool
}

// ModeMasters is the course mode of every registration made through a program.
const ModeMasters = "masters"

// Outcome is the aggregate result of an enrollment batch.
type Outcome int

const (
	FullyApplied Outcome = iota
	PartiallyApplied
	FullyRejected
)

func (o Outcome) String() string {
	switch o {
	case FullyApplied:
		return "fully_applied"
	case PartiallyApplied:
		return "partially_applied"
	case FullyRejected:
		return "fully_rejected"
	}
	return "unknown"
}

// BatchResult reports the outcome of every key submitted in a batch.
type BatchResult struct {
	Requested int
	Applied   int
	Statuses  map[string]Status
}

// Outcome computes the aggregate outcome from the applied/requested ratio.
// An empty batch is fully applied.
func (r BatchResult) Outcome() Outcome {
	switch {
	case r.Requested > 0 && r.Applied == 0:
		return FullyRejected
	case r.Applied < r.Requested:
		return PartiallyApplied
	default:
		return FullyApplied
	}
}
