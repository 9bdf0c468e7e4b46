package dbpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"
)

// fakeDriver backs the pool tests with an in-process stand-in for MySQL so
// the semaphore and lease discipline can be exercised without a live
// server, matching the stdlib-only test style used across this corpus.
type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return &fakeConn{}, nil }

type fakeConn struct{}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *fakeConn) Close() error                              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)                  { return nil, driver.ErrSkip }

var registerOnce sync.Once

func newTestPool(t *testing.T, maxConn int) *Pool {
	t.Helper()
	registerOnce.Do(func() { sql.Register("dbpool_fake", fakeDriver{}) })

	db, err := sql.Open("dbpool_fake", "test")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(maxConn)

	sem := make(chan struct{}, maxConn)
	for i := 0; i < maxConn; i++ {
		sem <- struct{}{}
	}
	return &Pool{db: db, sem: sem}
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	l, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(p.sem) != 1 {
		t.Fatalf("expected 1 free slot after acquire, got %d", len(p.sem))
	}
	l.Release()
	if len(p.sem) != 2 {
		t.Fatalf("expected 2 free slots after release, got %d", len(p.sem))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := newTestPool(t, 1)
	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	l.Release()
	l.Release() // must not double-credit the semaphore
	if len(p.sem) != 1 {
		t.Fatalf("expected semaphore capped at 1, got %d", len(p.sem))
	}
}

func TestAcquireBlocksUntilCapacityFrees(t *testing.T) {
	p := newTestPool(t, 1)
	l1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	done := make(chan struct{})
	go func() {
		l2, err := p.Acquire(context.Background())
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		l2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("second Acquire returned before the first Lease was released")
	case <-time.After(20 * time.Millisecond):
	}

	l1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second Acquire never unblocked after release")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := newTestPool(t, 1)
	l, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.Acquire(ctx); err == nil {
		t.Errorf("expected context deadline error when pool is exhausted")
	}
}
