package database

import (
	"github.com/starcoinorg/smolstc/domain/consensus/model"
	infrastructuredatabase "github.com/starcoinorg/smolstc/infrastructure/db/database"
)

type dbManager struct {
	db infrastructuredatabase.Database
}

func (dbw *dbManager) Get(key model.DBKey) ([]byte, error) {
	return dbw.db.Get(dbKeyToDatabaseKey(key))
}

func (dbw *dbManager) Has(key model.DBKey) (bool, error) {
	return dbw.db.Has(dbKeyToDatabaseKey(key))
}

func (dbw *dbManager) Begin() (model.DBTransaction, error) {
	transaction, err := dbw.db.Begin()
	if err != nil {
		return nil, err
	}
	return newDBTransaction(transaction), nil
}

// DBManager is a consensus-level wrapper around an infrastructure
// database: it exposes model proxies over the raw byte store.
type DBManager interface {
	model.DBReader

	Begin() (model.DBTransaction, error)
}

// New returns a new DBManager over the given database handle.
func New(db infrastructuredatabase.Database) DBManager {
	return &dbManager{db: db}
}

type dbTransaction struct {
	transaction infrastructuredatabase.Transaction
}

func (dbt *dbTransaction) Get(key model.DBKey) ([]byte, error) {
	return dbt.transaction.Get(dbKeyToDatabaseKey(key))
}

func (dbt *dbTransaction) Has(key model.DBKey) (bool, error) {
	return dbt.transaction.Has(dbKeyToDatabaseKey(key))
}

func (dbt *dbTransaction) Put(key model.DBKey, value []byte) error {
	return dbt.transaction.Put(dbKeyToDatabaseKey(key), value)
}

func (dbt *dbTransaction) Delete(key model.DBKey) error {
	return dbt.transaction.Delete(dbKeyToDatabaseKey(key))
}

// Commit commits the underlying database transaction.
func (dbt *dbTransaction) Commit() error {
	return dbt.transaction.Commit()
}

// Rollback rolls the underlying transaction back.
func (dbt *dbTransaction) Rollback() error {
	return dbt.transaction.Rollback()
}

// RollbackUnlessClosed rolls the underlying transaction back
// unless it was already closed.
func (dbt *dbTransaction) RollbackUnlessClosed() error {
	return dbt.transaction.RollbackUnlessClosed()
}

func newDBTransaction(transaction infrastructuredatabase.Transaction) *dbTransaction {
	return &dbTransaction{transaction: transaction}
}
