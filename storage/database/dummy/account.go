package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CreateAccount(_ context.Context, acc account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, a := range repo.db.t.accounts {
		if a.Email == acc.Email {
			return account.Account{}, account.ErrEmailExists
		}
		if a.PersonID == acc.PersonID {
			return account.Account{}, account.ErrAccountExists
		}
	}
	acc.ID = uuid.New().String()
	repo.db.t.accounts[acc.ID] = acc
	return acc, nil
}

func (repo *accountRepository) GetAccount(_ context.Context, filter account.GetFilter, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if acc, ok := repo.db.t.accounts[filter.ID]; ok {
			return acc, nil
		}
		return account.Account{}, account.ErrNotFound
	}
	for _, acc := range repo.db.t.accounts {
		if (filter.PersonID != "" && acc.PersonID == filter.PersonID) || (filter.Email != "" && acc.Email == filter.Email) {
			return acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) QueryAccounts(_ context.Context, personIDs []string, _ ...core.DBExecutor) ([]account.Account, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	wanted := make(map[string]struct{}, len(personIDs))
	for _, id := range personIDs {
		wanted[id] = struct{}{}
	}
	accounts := make([]account.Account, 0, len(personIDs))
	for _, acc := range repo.db.t.accounts {
		if _, ok := wanted[acc.PersonID]; ok {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })
	return accounts, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, acc account.Account, _ ...core.DBExecutor) (account.Account, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.accounts[acc.ID]; !ok {
		return account.Account{}, account.ErrNotFound
	}
	for id, a := range repo.db.t.accounts {
		if id != acc.ID && a.Email == acc.Email {
			return account.Account{}, account.ErrEmailExists
		}
	}
	repo.db.t.accounts[acc.ID] = acc
	return acc, nil
}
