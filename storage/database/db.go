package database

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/fs"
)

// EngineInmem selects the in-memory store, which has no database to bootstrap or migrate.
const EngineInmem = "inmem"

// maintenanceDB is the database the admin connection opens to create the enrollments database.
const maintenanceDB = "postgres"

// DSN returns the connection URL of dbName. admin connects as the admin user when one is configured.
func DSN(conf core.DatabaseConfig, dbName string, admin bool) string {
	user := url.UserPassword(conf.User, conf.Password)
	if admin && conf.AdminUser != "" {
		user = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}
	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := url.Values{"sslmode": {sslMode}, "timezone": {"utc"}}
	u := url.URL{Scheme: conf.Engine, User: user, Host: conf.Address(), Path: dbName, RawQuery: q.Encode()}
	return u.String()
}

// Open connects to the enrollments database as the app user.
func Open(conf *core.Config) (*sql.DB, error) {
	return connect(conf.Database.Engine, DSN(conf.Database, conf.Database.Name, false))
}

// OpenURL connects to a postgres database from a connection URL, eg: TEST_DATABASE_URL.
func OpenURL(dsn string) (*sql.DB, error) {
	return connect("postgres", dsn)
}

func connect(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(db, 30, 100*time.Millisecond); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitReady pings db until it answers, sleeping one more step after each failed attempt.
func waitReady(db *sql.DB, attempts int, step time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(i) * step)
	}
	return errors.Wrap(err, "DB ping timeout")
}

// Bootstrap creates the enrollments database, owned by the app user, unless it exists.
// The app user role itself is provisioned with the server.
func Bootstrap(conf *core.Config) error {
	if conf.Database.Engine == EngineInmem {
		return nil
	}

	db, err := connect(conf.Database.Engine, DSN(conf.Database, maintenanceDB, true))
	if err != nil {
		return errors.Wrap(err, "connecting as admin")
	}
	defer func() { _ = db.Close() }()

	var exists bool
	row := db.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name)
	if err = row.Scan(&exists); err != nil {
		return errors.Wrap(err, "checking database")
	}
	if exists {
		return nil
	}

	q := "CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)
	if owner := conf.Database.User; owner != "" && owner != conf.Database.AdminUser {
		q += " OWNER " + pq.QuoteIdentifier(owner)
	}
	if _, err = db.Exec(q); err != nil {
		return errors.Wrapf(err, "creating database %s", conf.Database.Name)
	}
	return nil
}

// MigrationsDir is the directory of appfs.FS holding the goose migrations.
const MigrationsDir = "migrations"

// Migrate applies all pending migrations.
func Migrate(db *sql.DB) error {
	if err := goose.RunFS("up", db, appfs.FS, MigrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
