package app

import (
	"context"
	nativeerrors "errors"
	"fmt"
	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lefinal/pug-server/embedded"
	"github.com/lefinal/pug-server/errors"
	"go.uber.org/zap"
)

// defaultMaxDBConnections is the maximum number of database connections that
// is used when no other one is provided in the Config.
const defaultMaxDBConnections = 16

// pgUndefinedTable is the PostgreSQL error code for relations that do not
// exist.
const pgUndefinedTable = "42P01"

// keyValTable is the table holding general key-value pairs like the database
// version.
const keyValTable = "pug"

// dbVersionKey is the key in keyValTable for the database version.
const dbVersionKey = "db-version"

// dbVersion is used for determining the current database version. If the
// version does not exist, the database needs to be initialized. If it is and
// the latest version is greater, migrations are performed.
type dbVersion string

// dbVersionZero is used when no database version could be found, and
// therefore we conclude that it has not been initialized yet.
const dbVersionZero dbVersion = "0"

// dbMigration is used for performing and checking database migrations.
type dbMigration struct {
	version dbVersion
	up      string
}

// dbMigrations are the SQL migrations in an ordered (!) list. The order is
// used to determine which migrations need to be done when the current
// database version is not the latest one.
var dbMigrations = []dbMigration{
	{
		version: "1.0",
		up:      embedded.DBMigration1x0,
	},
	{
		version: "1.1",
		up:      embedded.DBMigration1x1,
	},
}

// connectDB connects to the database with the given connection string,
// performs migrations and returns the connection pool.
func connectDB(ctx context.Context, logger *zap.Logger, connectionStr string, maxDBConnections int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connectionStr)
	if err != nil {
		return nil, errors.Error{
			Code:    errors.ErrFatal,
			Kind:    errors.KindInvalidConfig,
			Err:     err,
			Message: "parse database connection string",
		}
	}
	if maxDBConnections <= 0 {
		maxDBConnections = defaultMaxDBConnections
	}
	poolConfig.MaxConns = int32(maxDBConnections)
	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Error{
			Code:    errors.ErrFatal,
			Kind:    errors.KindDB,
			Err:     err,
			Message: "connect to database",
		}
	}
	// Perform test query.
	err = testDBConnection(ctx, db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "test db connection", nil)
	}
	// Perform db migrations.
	err = performDBMigrations(ctx, logger, db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "perform db migrations", nil)
	}
	return db, nil
}

// testDBConnection tests the database connection by simply querying 1.
func testDBConnection(ctx context.Context, db *pgxpool.Pool) error {
	q, _, err := goqu.Select(goqu.V(1)).ToSQL()
	if err != nil {
		return errors.NewQueryToSQLError(err, nil)
	}
	var got int
	err = db.QueryRow(ctx, q).Scan(&got)
	if err != nil {
		return errors.NewScanDBRowError(err, "test query failed", q)
	}
	if got != 1 {
		return errors.Error{
			Code:    errors.ErrFatal,
			Kind:    errors.KindDB,
			Message: fmt.Sprintf("test db connection: expected 1 as result but got %d", got),
			Details: errors.Details{"got": got},
		}
	}
	return nil
}

// performDBMigrations performs all needed database migrations according to the
// (un)set database version.
func performDBMigrations(ctx context.Context, logger *zap.Logger, db *pgxpool.Pool) error {
	currentVersion, err := retrieveCurrentDBVersion(ctx, db)
	if err != nil {
		return errors.Wrap(err, "retrieve current db version", nil)
	}
	logger.Info("current database version", zap.Any("version", currentVersion))
	migrationsToDo, err := getDBMigrationsToDo(currentVersion)
	if err != nil {
		return errors.Wrap(err, "get db migrations to do", nil)
	}
	if len(migrationsToDo) == 0 {
		return nil
	}
	updateVersionQuery, err := updateDBVersionQuery(currentVersion, migrationsToDo[len(migrationsToDo)-1].version)
	if err != nil {
		return errors.Wrap(err, "update db version query", nil)
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return errors.NewDBTxBeginError(err)
	}
	defer rollbackTx(ctx, logger, tx, "database migration failed")
	for i, migration := range migrationsToDo {
		logger.Info(fmt.Sprintf("performing database migration %d/%d...", i+1, len(migrationsToDo)),
			zap.Any("target_version", migration.version))
		_, err = tx.Exec(ctx, migration.up)
		if err != nil {
			return errors.NewExecQueryError(err, fmt.Sprintf("migrate to %v", migration.version), migration.up)
		}
	}
	_, err = tx.Exec(ctx, updateVersionQuery)
	if err != nil {
		return errors.NewExecQueryError(err, "update database version", updateVersionQuery)
	}
	err = tx.Commit(ctx)
	if err != nil {
		return errors.NewDBTxCommitError(err)
	}
	return nil
}

// updateDBVersionQuery builds the query for setting the database version to
// the new one. If the current version is dbVersionZero, the entry is inserted.
func updateDBVersionQuery(currentVersion dbVersion, newVersion dbVersion) (string, error) {
	var q string
	var err error
	if currentVersion == dbVersionZero {
		q, _, err = goqu.Dialect("postgres").Insert(goqu.T(keyValTable)).Rows(goqu.Record{
			"key":   dbVersionKey,
			"value": newVersion,
		}).ToSQL()
	} else {
		q, _, err = goqu.Dialect("postgres").Update(goqu.T(keyValTable)).
			Set(goqu.Record{"value": newVersion}).
			Where(goqu.C("key").Eq(dbVersionKey)).ToSQL()
	}
	if err != nil {
		return "", errors.NewQueryToSQLError(err, errors.Details{"new_version": newVersion})
	}
	return q, nil
}

// getDBMigrationsToDo retrieves all database migrations that need to be
// performed. If the version is dbVersionZero, it will return all migrations.
// If the version is unknown, an error will be returned.
func getDBMigrationsToDo(currentVersion dbVersion) ([]dbMigration, error) {
	if currentVersion == dbVersionZero {
		return dbMigrations, nil
	}
	found := false
	migrationsToDo := make([]dbMigration, 0)
	for _, migration := range dbMigrations {
		if migration.version == currentVersion {
			if found {
				return nil, errors.Error{
					Code:    errors.ErrInternal,
					Kind:    errors.KindUnexpected,
					Message: fmt.Sprintf("duplicate database version %v in available migrations", currentVersion),
					Details: errors.Details{"version": currentVersion},
				}
			}
			found = true
			// Everything up to this version is already done.
			continue
		}
		if found {
			migrationsToDo = append(migrationsToDo, migration)
		}
	}
	if !found {
		return nil, errors.NewResourceNotFoundError(fmt.Sprintf("no database version found matching %v", currentVersion),
			errors.Details{"version": currentVersion})
	}
	return migrationsToDo, nil
}

// retrieveCurrentDBVersion retrieves the current dbVersion from the given
// database. If no version could be found, dbVersionZero will be returned.
func retrieveCurrentDBVersion(ctx context.Context, db *pgxpool.Pool) (dbVersion, error) {
	q, _, err := goqu.Dialect("postgres").From(goqu.T(keyValTable)).
		Select(goqu.C("value")).
		Where(goqu.C("key").Eq(dbVersionKey)).ToSQL()
	if err != nil {
		return "", errors.NewQueryToSQLError(err, nil)
	}
	var version string
	err = db.QueryRow(ctx, q).Scan(&version)
	if err != nil {
		if isNotInitialized(err) {
			return dbVersionZero, nil
		}
		return "", errors.NewScanDBRowError(err, "retrieve db version", q)
	}
	return dbVersion(version), nil
}

// isNotInitialized checks whether the given error from reading the database
// version means that the database is not set up yet.
func isNotInitialized(err error) bool {
	if nativeerrors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return nativeerrors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

// rollbackTx rolls back the given pgx.Tx. Rolling back a committed transaction
// is not an error.
func rollbackTx(ctx context.Context, logger *zap.Logger, tx pgx.Tx, reason string) {
	err := tx.Rollback(ctx)
	if err != nil && !nativeerrors.Is(err, pgx.ErrTxClosed) {
		errors.Log(logger, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindDBRollback,
			Message: "rollback tx",
			Err:     err,
			Details: errors.Details{"rollback_reason": reason},
		})
	}
}
