package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/troopconnect/troopconnect/core"
)

// store is shared by the repositories: it runs queries on the executor a service hands over
// (usually a transaction), or on the database itself.
type store struct {
	db *sqlx.DB
}

func (s store) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		switch exec := svcExec[0].(type) {
		case sqlx.ExtContext:
			return exec
		case *sql.Tx:
			return &sqlx.Tx{Tx: exec, Mapper: s.db.Mapper}
		case *sql.DB:
			return sqlx.NewDb(exec, s.db.DriverName())
		}
	}
	return s.db
}

// in expands the slice arguments of query and rebinds it for the database driver.
func (s store) in(query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return s.db.Rebind(query), args, nil
}
