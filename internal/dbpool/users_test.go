package dbpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

func newTestUserStore(users map[string]string) *UserStore {
	return &UserStore{users: users}
}

func TestLoginAcceptsMatchingCredentials(t *testing.T) {
	s := newTestUserStore(map[string]string{"alice": "hunter2"})
	if !s.Login("alice", "hunter2") {
		t.Errorf("expected login to succeed for matching credentials")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestUserStore(map[string]string{"alice": "hunter2"})
	if s.Login("alice", "wrong") {
		t.Errorf("expected login to fail for mismatched password")
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	s := newTestUserStore(map[string]string{"alice": "hunter2"})
	if s.Login("bob", "hunter2") {
		t.Errorf("expected login to fail for unknown user")
	}
}

// fakeDupKeyError stands in for a go-sql-driver/mysql *MySQLError reporting
// ER_DUP_ENTRY (1062), exercised through the same errors.As(&mysqlDup, ...)
// shape Register checks against.
type fakeDupKeyError struct{}

func (fakeDupKeyError) Error() string  { return "Error 1062: Duplicate entry 'alice' for key 'PRIMARY'" }
func (fakeDupKeyError) Number() uint16 { return 1062 }

// execTrackingConn records whether ExecContext was invoked and returns a
// caller-supplied error, so Register's INSERT attempt can be observed
// directly instead of inferred.
type execTrackingConn struct {
	execCalled bool
	execErr    error
}

func (c *execTrackingConn) Prepare(query string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *execTrackingConn) Close() error                              { return nil }
func (c *execTrackingConn) Begin() (driver.Tx, error)                 { return nil, driver.ErrSkip }

func (c *execTrackingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execCalled = true
	return nil, c.execErr
}

type execTrackingDriver struct {
	conn *execTrackingConn
}

func (d execTrackingDriver) Open(name string) (driver.Conn, error) { return d.conn, nil }

func newExecTrackingUserStore(t *testing.T, driverName string, users map[string]string, execErr error) (*UserStore, *execTrackingConn) {
	t.Helper()
	conn := &execTrackingConn{execErr: execErr}
	sql.Register(driverName, execTrackingDriver{conn: conn})

	db, err := sql.Open(driverName, "test")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)

	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	p := &Pool{db: db, sem: sem}

	return &UserStore{pool: p, users: users}, conn
}

// TestRegisterAttemptsInsertForInMemoryDuplicate pins spec.md §8 scenario 4:
// a username already present in the startup-loaded map must still reach the
// database as an INSERT attempt, with the resulting duplicate-key failure
// surfaced as ErrUserExists rather than short-circuited locally.
func TestRegisterAttemptsInsertForInMemoryDuplicate(t *testing.T) {
	s, conn := newExecTrackingUserStore(t, "dbpool_fake_dup", map[string]string{"alice": "hunter2"}, fakeDupKeyError{})

	err := s.Register(context.Background(), "alice", "newpass")
	if !conn.execCalled {
		t.Fatalf("expected Register to attempt the INSERT even for an in-memory duplicate")
	}
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists from a duplicate-key DB error, got %v", err)
	}
}

// TestRegisterSurfacesNonDuplicateDBFailure confirms a DB error that is not
// a duplicate-key violation is returned as-is, not mapped to ErrUserExists.
func TestRegisterSurfacesNonDuplicateDBFailure(t *testing.T) {
	wantErr := errors.New("connection reset by peer")
	s, conn := newExecTrackingUserStore(t, "dbpool_fake_generic_fail", map[string]string{}, wantErr)

	err := s.Register(context.Background(), "carol", "hunter3")
	if !conn.execCalled {
		t.Fatalf("expected Register to attempt the INSERT")
	}
	if err == nil || err.Error() != wantErr.Error() {
		t.Fatalf("expected the raw DB error to be surfaced, got %v", err)
	}
}

// TestRegisterSucceedsUpdatesMap confirms a successful INSERT is reflected
// back into the in-memory map so a subsequent Login succeeds without a
// database round-trip.
func TestRegisterSucceedsUpdatesMap(t *testing.T) {
	s, conn := newExecTrackingUserStore(t, "dbpool_fake_ok", map[string]string{}, nil)

	if err := s.Register(context.Background(), "dave", "hunter4"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !conn.execCalled {
		t.Fatalf("expected Register to attempt the INSERT")
	}
	if !s.Login("dave", "hunter4") {
		t.Errorf("expected the newly registered user to be reflected in the in-memory map")
	}
}
