package inmemdb

import (
	"context"
	"sort"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil)

func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) FindByExternalKeys(_ context.Context, orgKey string, keys []string, _ ...core.DBExecutor) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		wanted[key] = true
	}
	accounts := make([]account.Account, 0, len(keys))
	for _, acc := range repo.db.accounts {
		if acc.OrganizationKey == orgKey && wanted[acc.ExternalUserKey] {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, a := range repo.db.accounts {
		if (a.OrganizationKey == acc.OrganizationKey && a.ExternalUserKey == acc.ExternalUserKey) || a.Username == acc.Username {
			return account.Account{}, account.ErrAccountExists
		}
	}
	acc.ID = repo.db.nextPK()
	repo.db.accounts[acc.ID] = acc
	return acc, nil
}
