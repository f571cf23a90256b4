package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func ensureTestDriverRegistered() {
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
}

func withTestDriver(t *testing.T) func() {
	t.Helper()
	ensureTestDriverRegistered()
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	return func() {
		openDB = prev
	}
}

func resetSingleton() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singletonDB != nil {
		singletonDB.Close()
	}
	singletonDB = nil
}

func TestGetSingletonReusesPool(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()
	resetSingleton()
	defer resetSingleton()

	db1, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleLambda))
	if err != nil {
		t.Fatalf("GetSingleton first: %v", err)
	}
	db2, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleLambda))
	if err != nil {
		t.Fatalf("GetSingleton second: %v", err)
	}
	if db1 != db2 {
		t.Fatalf("expected warm invocations to share one pool")
	}
	if got := db1.Stats().MaxOpenConnections; got != 2 {
		t.Fatalf("expected lambda pool of 2, got %d", got)
	}
}

func TestDefaultOptionsByRole(t *testing.T) {
	cases := []struct {
		role     Role
		maxOpen  int
		maxIdle  int
		lifetime time.Duration
	}{
		{RoleAPI, 10, 5, time.Hour},
		{RoleWorker, 6, 3, time.Hour},
		{RoleScheduler, 3, 2, time.Hour},
		{RoleMigrate, 1, 1, time.Hour},
		{RoleLambda, 2, 1, 15 * time.Minute},
		{Role("unknown"), 10, 5, time.Hour},
	}
	for _, tc := range cases {
		opts := DefaultOptions(tc.role)
		if opts.MaxOpenConns != tc.maxOpen || opts.MaxIdleConns != tc.maxIdle {
			t.Fatalf("%s: got open=%d idle=%d", tc.role, opts.MaxOpenConns, opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime != tc.lifetime {
			t.Fatalf("%s: got lifetime %s", tc.role, opts.ConnMaxLifetime)
		}
	}
}

func TestApplyOptionsCapsIdleAtOpen(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	db, err := Connect(context.Background(), "ignored", Options{MaxOpenConns: 2, MaxIdleConns: 8})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if got := db.Stats().MaxOpenConnections; got != 2 {
		t.Fatalf("expected MaxOpenConnections=2, got %d", got)
	}
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultOptions(RoleAPI))
	db, err := Connect(context.Background(), "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
	if opts.MaxIdleConns != 3 {
		t.Fatalf("expected MaxIdleConns=3, got %d", opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("expected ConnMaxLifetime=20m, got %s", opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime != 45*time.Second {
		t.Fatalf("expected ConnMaxIdleTime=45s, got %s", opts.ConnMaxIdleTime)
	}
	if opts.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %s", opts.PingTimeout)
	}
}

func TestGetSingletonRetriesAfterFailure(t *testing.T) {
	var calls int32
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, driver.ErrBadConn
		}
		ensureTestDriverRegistered()
		return sql.Open("dbtest", dsn)
	}
	defer func() { openDB = prev }()
	resetSingleton()
	defer resetSingleton()

	if _, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleLambda)); err == nil {
		t.Fatalf("expected first call to fail")
	}
	db2, err := GetSingleton(context.Background(), "ignored", DefaultOptions(RoleLambda))
	if err != nil {
		t.Fatalf("expected second call to succeed: %v", err)
	}
	if db2 == nil {
		t.Fatalf("expected db after retry")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 open attempts, got %d", got)
	}
}

func TestConnectTagsApplicationName(t *testing.T) {
	ensureTestDriverRegistered()
	prev := openDB
	defer func() { openDB = prev }()

	var seen string
	openDB = func(name, dsn string) (*sql.DB, error) {
		seen = dsn
		return sql.Open("dbtest", dsn)
	}

	db, err := Connect(context.Background(), "postgres://esign:pw@localhost:5432/esign?sslmode=disable", DefaultOptions(RoleMigrate))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if seen != "postgres://esign:pw@localhost:5432/esign?application_name=esign-backend&sslmode=disable" {
		t.Fatalf("unexpected dsn %q", seen)
	}
}

func TestWithApplicationNameKeepsExplicitValues(t *testing.T) {
	cases := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "explicit", dsn: "postgres://h/db?application_name=psql", want: "postgres://h/db?application_name=psql"},
		{name: "keyword form", dsn: "host=localhost dbname=esign", want: "host=localhost dbname=esign"},
		{name: "postgresql scheme", dsn: "postgresql://h/db", want: "postgresql://h/db?application_name=esign-backend"},
	}
	for _, tc := range cases {
		if got := withApplicationName(tc.dsn); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", DefaultOptions(RoleAPI)); err != ErrNoDatabaseURL {
		t.Fatalf("expected ErrNoDatabaseURL, got %v", err)
	}
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	err := Migrate(context.Background(), nil, "upp")
	if err == nil || !strings.Contains(err.Error(), `unknown migrate command "upp"`) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestMigrateWithoutDatabaseIsNoop(t *testing.T) {
	if err := Migrate(context.Background(), nil, "status"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 3 {
		t.Fatalf("expected embedded migrations, got %d", len(entries))
	}
}
