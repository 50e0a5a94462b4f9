package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
)

type accountRow struct {
	ID              int64  `db:"id"`
	Username        string `db:"username"`
	Email           string `db:"email"`
	OrganizationKey string `db:"organization_key"`
	ExternalUserKey string `db:"external_user_key"`
}

type accountRepository struct {
	repository
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(exec core.DBExecutor) *accountRepository {
	return &accountRepository{repository{exec: exec}}
}

func (repo accountRepository) FindByExternalKeys(ctx context.Context, orgKey string, keys []string, exec ...core.DBExecutor) ([]account.Account, error) {
	rows, err := repo.getExec(exec).QueryContext(ctx, q(
		`SELECT id, username, email, organization_key, external_user_key FROM learner_accounts
		WHERE organization_key = ? AND external_user_key = ANY(?) ORDER BY id`),
		orgKey, pq.Array(keys),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting accounts")
	}
	defer func() { _ = rows.Close() }()

	var found []accountRow
	if err = sqlx.StructScan(rows, &found); err != nil {
		return nil, errors.Wrap(err, "scanning accounts")
	}
	accounts := make([]account.Account, len(found))
	for i, r := range found {
		accounts[i] = account.Account(r)
	}
	return accounts, nil
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	err := repo.getExec(exec).QueryRowContext(ctx, q(
		`INSERT INTO learner_accounts (username, email, organization_key, external_user_key)
		VALUES (?, ?, ?, ?) RETURNING id`),
		acc.Username, acc.Email, acc.OrganizationKey, acc.ExternalUserKey,
	).Scan(&acc.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return account.Account{}, account.ErrAccountExists
		}
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}
