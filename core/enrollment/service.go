package enrollment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
	"github.com/cmeonline/enrollments/core/catalog"
)

var (
	// errors
	ErrConflict = errors.New("enrollment already exists")
)

type (
	Repository interface {
		// GetProgramEnrollmentsByKeys returns, in one read, the enrollments of the program matching any of keys.
		GetProgramEnrollmentsByKeys(ctx context.Context, programUUID uuid.UUID, keys []string, exec ...core.DBExecutor) ([]ProgramEnrollment, error)
		// CreateProgramEnrollment returns ErrConflict if the key is already enrolled in the program.
		CreateProgramEnrollment(ctx context.Context, pe ProgramEnrollment, exec ...core.DBExecutor) (ProgramEnrollment, error)
		// QueryProgramEnrollments returns at most q.Limit enrollments in ascending ID order
		// and whether more exist beyond them in the direction of the query.
		QueryProgramEnrollments(ctx context.Context, programUUID uuid.UUID, q core.PageQuery, exec ...core.DBExecutor) ([]ProgramEnrollment, bool, error)
		QueryWaitingProgramEnrollments(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) ([]ProgramEnrollment, error)
		LinkProgramEnrollmentAccount(ctx context.Context, id, userID int64, exec ...core.DBExecutor) error
		DeleteProgramEnrollments(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) (int64, error)

		// GetProgramCourseEnrollments returns, in one read, the course links of the given program enrollments.
		GetProgramCourseEnrollments(ctx context.Context, courseKey string, programEnrollmentIDs []int64, exec ...core.DBExecutor) ([]ProgramCourseEnrollment, error)
		// CreateProgramCourseEnrollment returns ErrConflict if the program enrollment is already linked to the course.
		CreateProgramCourseEnrollment(ctx context.Context, pce ProgramCourseEnrollment, exec ...core.DBExecutor) (ProgramCourseEnrollment, error)
		QueryProgramCourseEnrollments(ctx context.Context, programUUID uuid.UUID, courseKey string, q core.PageQuery, exec ...core.DBExecutor) ([]ProgramCourseEnrollment, bool, error)
		// QueryUnregisteredCourseEnrollments returns the course links of the program that have no course registration
		// although their program enrollment is linked to an account.
		QueryUnregisteredCourseEnrollments(ctx context.Context, programUUID uuid.UUID, exec ...core.DBExecutor) ([]ProgramCourseEnrollment, error)
		SetCourseRegistration(ctx context.Context, id, registrationID int64, exec ...core.DBExecutor) error
	}

	// AccountFinder resolves external user keys to learner accounts.
	AccountFinder interface {
		FindByExternalKeys(ctx context.Context, orgKey string, keys []string, exec ...core.DBExecutor) (map[string]account.Account, error)
	}

	// CourseRegistrar creates or updates the course registration of a learner.
	// Registering an already registered learner updates the registration in place.
	CourseRegistrar interface {
		RegisterForCourse(ctx context.Context, userID int64, courseKey, mode string, active bool, exec ...core.DBExecutor) (CourseRegistration, error)
	}

	Service struct {
		tx        core.TxRunner
		repo      Repository
		accounts  AccountFinder
		registrar CourseRegistrar
		validate  *validator.Validate
		log       core.Logger
	}
)

func NewService(
	tx core.TxRunner,
	repo Repository,
	accounts AccountFinder,
	registrar CourseRegistrar,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		tx:        tx,
		repo:      repo,
		accounts:  accounts,
		registrar: registrar,
		validate:  validate,
		log:       logger,
	}
}

// EnrollInProgram creates one program enrollment per valid, unknown key of the batch.
// Learners with an account in the program's organization are linked to it, the others are left waiting.
func (svc *Service) EnrollInProgram(ctx context.Context, program catalog.Program, reqs []NewProgramEnrollment) (BatchResult, error) {
	recs := make([]batchRecord, len(reqs))
	for i, req := range reqs {
		recs[i] = batchRecord{key: req.ExternalUserKey, value: req}
	}
	result, remaining, err := screenBatch(svc.validate, recs)
	if err != nil {
		return BatchResult{}, err
	}
	if len(remaining) == 0 {
		return result, nil
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		keys := make([]string, 0, len(remaining))
		for _, i := range remaining {
			keys = append(keys, reqs[i].ExternalUserKey)
		}

		existing, err := svc.repo.GetProgramEnrollmentsByKeys(ctx, program.UUID, keys, exec)
		if err != nil {
			return errors.Wrap(err, "getting existing program enrollments")
		}
		for _, pe := range existing {
			result.Statuses[pe.ExternalUserKey] = StatusConflict
		}

		applicable := make([]NewProgramEnrollment, 0, len(remaining))
		applicableKeys := make([]string, 0, len(remaining))
		for _, i := range remaining {
			if _, tagged := result.Statuses[reqs[i].ExternalUserKey]; !tagged {
				applicable = append(applicable, reqs[i])
				applicableKeys = append(applicableKeys, reqs[i].ExternalUserKey)
			}
		}
		if len(applicable) == 0 {
			return nil
		}

		accounts, err := svc.accounts.FindByExternalKeys(ctx, program.OrganizationKey, applicableKeys, exec)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, req := range applicable {
			pe := ProgramEnrollment{
				ExternalUserKey: req.ExternalUserKey,
				ProgramUUID:     program.UUID,
				Status:          req.Status,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if req.CurriculumUUID != "" {
				curriculum := uuid.MustParse(req.CurriculumUUID)
				pe.CurriculumUUID = &curriculum
			}
			if acc, ok := accounts[req.ExternalUserKey]; ok {
				userID := acc.ID
				pe.UserID = &userID
			}

			if _, err := svc.repo.CreateProgramEnrollment(ctx, pe, exec); err != nil {
				if errors.Cause(err) == ErrConflict {
					result.Statuses[req.ExternalUserKey] = StatusConflict
					continue
				}
				return errors.Wrapf(err, "creating program enrollment for %q", req.ExternalUserKey)
			}
			result.Statuses[req.ExternalUserKey] = req.Status
			result.Applied++
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// EnrollInProgramCourse links program enrollments to a course of the program.
// Learners with an account get a course registration right away, the others once LinkAccounts finds their account.
func (svc *Service) EnrollInProgramCourse(ctx context.Context, program catalog.Program, courseKey string, reqs []NewCourseEnrollment) (BatchResult, error) {
	if !program.HasCourse(courseKey) {
		return BatchResult{}, catalog.ErrCourseNotFound
	}

	recs := make([]batchRecord, len(reqs))
	for i, req := range reqs {
		recs[i] = batchRecord{key: req.StudentKey, value: req}
	}
	result, remaining, err := screenBatch(svc.validate, recs)
	if err != nil {
		return BatchResult{}, err
	}
	if len(remaining) == 0 {
		return result, nil
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		keys := make([]string, 0, len(remaining))
		for _, i := range remaining {
			keys = append(keys, reqs[i].StudentKey)
		}

		pes, err := svc.repo.GetProgramEnrollmentsByKeys(ctx, program.UUID, keys, exec)
		if err != nil {
			return errors.Wrap(err, "getting program enrollments")
		}
		byKey := make(map[string]ProgramEnrollment, len(pes))
		peIDs := make([]int64, 0, len(pes))
		for _, pe := range pes {
			byKey[pe.ExternalUserKey] = pe
			peIDs = append(peIDs, pe.ID)
		}
		for _, key := range keys {
			if _, ok := byKey[key]; !ok {
				result.Statuses[key] = StatusNotInProgram
			}
		}

		if len(peIDs) > 0 {
			links, err := svc.repo.GetProgramCourseEnrollments(ctx, courseKey, peIDs, exec)
			if err != nil {
				return errors.Wrap(err, "getting program course enrollments")
			}
			for _, link := range links {
				result.Statuses[link.ExternalUserKey] = StatusConflict
			}
		}

		now := time.Now().UTC()
		for _, i := range remaining {
			req := reqs[i]
			if _, tagged := result.Statuses[req.StudentKey]; tagged {
				continue
			}
			pe := byKey[req.StudentKey]
			pce, err := svc.repo.CreateProgramCourseEnrollment(ctx, ProgramCourseEnrollment{
				ProgramEnrollmentID: pe.ID,
				CourseKey:           courseKey,
				Status:              req.Status,
				CreatedAt:           now,
				UpdatedAt:           now,
			}, exec)
			if err != nil {
				if errors.Cause(err) == ErrConflict {
					result.Statuses[req.StudentKey] = StatusConflict
					continue
				}
				return errors.Wrapf(err, "creating program course enrollment for %q", req.StudentKey)
			}

			if pe.UserID != nil {
				if err := svc.register(ctx, pce.ID, *pe.UserID, courseKey, req.Status, exec); err != nil {
					return err
				}
			}
			result.Statuses[req.StudentKey] = req.Status
			result.Applied++
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

func (svc *Service) register(ctx context.Context, linkID, userID int64, courseKey string, status Status, exec core.DBExecutor) error {
	reg, err := svc.registrar.RegisterForCourse(ctx, userID, courseKey, ModeMasters, status == StatusActive, exec)
	if err != nil {
		return errors.Wrapf(err, "registering user %d for course %s", userID, courseKey)
	}
	if err := svc.repo.SetCourseRegistration(ctx, linkID, reg.ID, exec); err != nil {
		return errors.Wrap(err, "setting course registration")
	}
	return nil
}

func (svc *Service) ListProgramEnrollments(ctx context.Context, program catalog.Program, q core.PageQuery) ([]ProgramEnrollment, core.Page, error) {
	pes, hasMore, err := svc.repo.QueryProgramEnrollments(ctx, program.UUID, q)
	if err != nil {
		return nil, core.Page{}, errors.Wrap(err, "querying program enrollments")
	}
	ids := make([]int64, len(pes))
	for i, pe := range pes {
		ids[i] = pe.ID
	}
	return pes, core.NewPage(q, ids, hasMore), nil
}

func (svc *Service) ListProgramCourseEnrollments(ctx context.Context, program catalog.Program, courseKey string, q core.PageQuery) ([]ProgramCourseEnrollment, core.Page, error) {
	if !program.HasCourse(courseKey) {
		return nil, core.Page{}, catalog.ErrCourseNotFound
	}
	pces, hasMore, err := svc.repo.QueryProgramCourseEnrollments(ctx, program.UUID, courseKey, q)
	if err != nil {
		return nil, core.Page{}, errors.Wrap(err, "querying program course enrollments")
	}
	ids := make([]int64, len(pces))
	for i, pce := range pces {
		ids[i] = pce.ID
	}
	return pces, core.NewPage(q, ids, hasMore), nil
}

// LinkResult counts what LinkAccounts changed.
type LinkResult struct {
	Accounts      int // waiting enrollments linked to an account
	Registrations int // deferred course registrations completed
}

// LinkAccounts links the waiting enrollments of the program to accounts created since,
// then completes the course registrations that were deferred for lack of an account.
func (svc *Service) LinkAccounts(ctx context.Context, program catalog.Program) (LinkResult, error) {
	var res LinkResult
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		waiting, err := svc.repo.QueryWaitingProgramEnrollments(ctx, program.UUID, exec)
		if err != nil {
			return errors.Wrap(err, "querying waiting program enrollments")
		}
		if len(waiting) > 0 {
			keys := make([]string, len(waiting))
			for i, pe := range waiting {
				keys[i] = pe.ExternalUserKey
			}
			accounts, err := svc.accounts.FindByExternalKeys(ctx, program.OrganizationKey, keys, exec)
			if err != nil {
				return err
			}
			for _, pe := range waiting {
				acc, ok := accounts[pe.ExternalUserKey]
				if !ok {
					continue
				}
				if err := svc.repo.LinkProgramEnrollmentAccount(ctx, pe.ID, acc.ID, exec); err != nil {
					return errors.Wrapf(err, "linking program enrollment %d", pe.ID)
				}
				res.Accounts++
			}
		}

		pces, err := svc.repo.QueryUnregisteredCourseEnrollments(ctx, program.UUID, exec)
		if err != nil {
			return errors.Wrap(err, "querying unregistered course enrollments")
		}
		for _, pce := range pces {
			if pce.UserID == nil {
				continue
			}
			if err := svc.register(ctx, pce.ID, *pce.UserID, pce.CourseKey, pce.Status, exec); err != nil {
				return err
			}
			res.Registrations++
		}
		return nil
	})
	if err != nil {
		return LinkResult{}, err
	}
	if res.Accounts > 0 || res.Registrations > 0 {
		svc.log.Info("linked program enrollments to accounts", map[string]interface{}{
			"program":       program.UUID.String(),
			"accounts":      res.Accounts,
			"registrations": res.Registrations,
		})
	}
	return res, nil
}

// DeleteProgramEnrollments removes every enrollment of the program along with their course links.
// It exists for administration and tests only.
func (svc *Service) DeleteProgramEnrollments(ctx context.Context, program catalog.Program) (int64, error) {
	n, err := svc.repo.DeleteProgramEnrollments(ctx, program.UUID)
	return n, errors.Wrap(err, "deleting program enrollments")
}
