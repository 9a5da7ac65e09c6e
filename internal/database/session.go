package database

import (
	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

// NewSessionStore returns the scs store matching the driver. The sessions
// table is created by the migrations.
func (db *DB) NewSessionStore() scs.Store {
	switch db.Driver {
	case DriverMySQL:
		return mysqlstore.New(db.DB)
	case DriverSQLite:
		return sqlite3store.New(db.DB)
	}
	return memstore.New()
}
