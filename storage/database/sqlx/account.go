package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
)

const accountColumns = "id, person_id, email, is_active, is_staff, password_hash, date_joined, last_login"

type accountRow struct {
	ID           string     `db:"id"`
	PersonID     string     `db:"person_id"`
	Email        string     `db:"email"`
	IsActive     bool       `db:"is_active"`
	IsStaff      bool       `db:"is_staff"`
	PasswordHash null.Bytes `db:"password_hash"`
	DateJoined   time.Time  `db:"date_joined"`
	LastLogin    null.Time  `db:"last_login"`
}

func toAccountRow(acc account.Account) accountRow {
	return accountRow{
		ID:           acc.ID,
		PersonID:     acc.PersonID,
		Email:        acc.Email,
		IsActive:     acc.IsActive,
		IsStaff:      acc.IsStaff,
		PasswordHash: null.NewBytes(acc.PasswordHash, len(acc.PasswordHash) > 0),
		DateJoined:   acc.DateJoined.UTC(),
		LastLogin:    null.NewTime(acc.LastLogin.UTC(), !acc.LastLogin.IsZero()),
	}
}

func (row accountRow) account() account.Account {
	acc := account.Account{
		ID:         row.ID,
		PersonID:   row.PersonID,
		Email:      row.Email,
		IsActive:   row.IsActive,
		IsStaff:    row.IsStaff,
		DateJoined: row.DateJoined.UTC(),
	}
	if row.PasswordHash.Valid {
		acc.PasswordHash = row.PasswordHash.Bytes
	}
	if row.LastLogin.Valid {
		acc.LastLogin = row.LastLogin.Time.UTC()
	}
	return acc
}

type accountRepository struct {
	store
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{store: store{db: db}}
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	acc.ID = uuid.New().String()
	row := toAccountRow(acc)

	q := repo.db.Rebind(`
		INSERT INTO account (id, person_id, email, is_active, is_staff, password_hash, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.getExec(exec).ExecContext(ctx, q, row.ID, row.PersonID, row.Email, row.IsActive, row.IsStaff,
		row.PasswordHash, row.DateJoined, row.LastLogin)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return row.account(), nil
}

func (repo accountRepository) GetAccount(ctx context.Context, filter account.GetFilter, exec ...core.DBExecutor) (account.Account, error) {
	var (
		where string
		arg   string
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return account.Account{}, account.ErrNotFound
		}
		where, arg = "id = ?", filter.ID
	case filter.PersonID != "":
		where, arg = "person_id = ?", filter.PersonID
	case filter.Email != "":
		where, arg = "email = ?", filter.Email
	default:
		return account.Account{}, account.ErrNotFound
	}

	var row accountRow
	q := repo.db.Rebind("SELECT " + accountColumns + " FROM account WHERE " + where)
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "selecting account")
	}
	return row.account(), nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, personIDs []string, exec ...core.DBExecutor) ([]account.Account, error) {
	accounts := make([]account.Account, 0, len(personIDs))
	if len(personIDs) == 0 {
		return accounts, nil
	}
	q, args, err := repo.in("SELECT "+accountColumns+" FROM account WHERE person_id IN (?) ORDER BY email", personIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building accounts query")
	}
	var rows []accountRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting accounts")
	}
	for _, row := range rows {
		accounts = append(accounts, row.account())
	}
	return accounts, nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account, exec ...core.DBExecutor) (account.Account, error) {
	row := toAccountRow(acc)
	q := repo.db.Rebind(`
		UPDATE account SET email = ?, is_active = ?, is_staff = ?, password_hash = ?, last_login = ?
		WHERE id = ?`)
	res, err := repo.getExec(exec).ExecContext(ctx, q, row.Email, row.IsActive, row.IsStaff, row.PasswordHash,
		row.LastLogin, row.ID)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return account.Account{}, account.ErrNotFound
	}
	return row.account(), nil
}
