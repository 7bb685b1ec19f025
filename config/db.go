package config

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"
)

// StateDBID names the database holding the versioned application state.
const StateDBID = "state"

// DBContext specifies config information for loading a new DB.
type DBContext struct {
	ID     string
	Config *Config
}

// DBProvider takes a DBContext and returns an instantiated DB.
type DBProvider func(*DBContext) (dbm.DB, error)

// DefaultDBProvider opens the database ctx.ID under the configured DBDir
// with the configured backend.
func DefaultDBProvider(ctx *DBContext) (dbm.DB, error) {
	db, err := dbm.NewDB(ctx.ID, dbm.BackendType(ctx.Config.DBBackend), ctx.Config.DBDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database (backend %q): %w", ctx.ID, ctx.Config.DBBackend, err)
	}
	return db, nil
}

// OpenStateDB opens the application state database with DefaultDBProvider.
func (cfg *Config) OpenStateDB() (dbm.DB, error) {
	return DefaultDBProvider(&DBContext{ID: StateDBID, Config: cfg})
}
