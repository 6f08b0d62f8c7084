// Package store persists match records and server state in PostgreSQL.
package store

import (
	"context"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lefinal/pug-server/errors"
	"go.uber.org/zap"
)

// Mall implements all database operations.
type Mall struct {
	logger *zap.Logger
	// db is the actual database to perform operations in.
	db *pgxpool.Pool
	// dialect is the SQL dialect for building queries.
	dialect goqu.DialectWrapper
}

// NewMall creates a new Mall using the given database. It uses the PostgreSQL
// dialect for queries.
func NewMall(logger *zap.Logger, db *pgxpool.Pool) *Mall {
	return &Mall{
		logger:  logger,
		db:      db,
		dialect: goqu.Dialect("postgres"),
	}
}

// rollbackTx rolls back the given pgx.Tx. The encapsulation is needed because
// rolling back might return an error which does not need to be returned but
// definitely logged with the original reason the rollback was performed.
func (m *Mall) rollbackTx(ctx context.Context, tx pgx.Tx, reason string) {
	err := tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		errors.Log(m.logger, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindDBRollback,
			Message: "rollback tx",
			Err:     err,
			Details: errors.Details{"rollbackReason": reason},
		})
	}
}
