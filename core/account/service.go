package account

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
)

var (
	// errors
	ErrAccountExists = errors.New("an account with this external user key already exists in the organization")
)

type (
	Repository interface {
		// FindByExternalKeys returns the accounts of the organization matching any of keys, in one read.
		FindByExternalKeys(ctx context.Context, orgKey string, keys []string, exec ...core.DBExecutor) ([]Account, error)
		CreateAccount(ctx context.Context, acc Account, exec ...core.DBExecutor) (Account, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FindByExternalKeys maps external user keys to the accounts that exist for them.
func (svc *Service) FindByExternalKeys(ctx context.Context, orgKey string, keys []string, exec ...core.DBExecutor) (map[string]Account, error) {
	if len(keys) == 0 {
		return map[string]Account{}, nil
	}
	accounts, err := svc.repo.FindByExternalKeys(ctx, orgKey, keys, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "finding accounts by external keys")
	}
	byKey := make(map[string]Account, len(accounts))
	for _, acc := range accounts {
		byKey[acc.ExternalUserKey] = acc
	}
	return byKey, nil
}

func (svc *Service) Create(ctx context.Context, validate *validator.Validate, na NewAccount) (Account, error) {
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.OrganizationKey = core.CleanString(na.OrganizationKey)
	na.ExternalUserKey = core.CleanString(na.ExternalUserKey)
	if err := validate.Struct(na); err != nil {
		return Account{}, err
	}
	acc, err := svc.repo.CreateAccount(ctx, Account{
		Username:        na.Username,
		Email:           na.Email,
		OrganizationKey: na.OrganizationKey,
		ExternalUserKey: na.ExternalUserKey,
	})
	if err != nil {
		if errors.Cause(err) == ErrAccountExists {
			return Account{}, core.NewValidationError(ErrAccountExists, core.FieldError{
				Field: "external_user_key", Error: ErrAccountExists.Error(),
			})
		}
		return Account{}, errors.Wrap(err, "creating account")
	}
	return acc, nil
}
