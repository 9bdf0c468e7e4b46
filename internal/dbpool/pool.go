// Package dbpool implements the bounded MySQL connection pool of §4.C: a
// fixed number of pre-authenticated handles, acquired through a counting
// semaphore, returned via a scoped Lease that releases on every exit path.
package dbpool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// ErrInit wraps any failure encountered while establishing the pool's
// initial handles; per §4.C this is always fatal at startup.
var ErrInit = errors.New("dbpool: initialization failed")

// Config describes the MySQL endpoint and pool sizing. Matches the
// constructor arguments of the original init(): host, user, password,
// database, port, and the pool's max_conn.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// MaxConn is the number of handles the pool holds. Default 8 per §6.
	MaxConn int
}

func (c *Config) applyDefaults() {
	if c.MaxConn <= 0 {
		c.MaxConn = 8
	}
	if c.Port == 0 {
		c.Port = 3306
	}
}

func (c Config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Pool is a bounded set of database/sql connections, semaphore-gated to
// the configured MaxConn, handed out as scoped Leases.
type Pool struct {
	db  *sql.DB
	sem chan struct{}
}

// Open establishes the underlying *sql.DB and verifies connectivity with a
// Ping, failing fast — per §4.C, any handle failing to authenticate at
// construction is fatal and the caller is expected to abort startup.
func Open(cfg Config) (*Pool, error) {
	cfg.applyDefaults()

	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}
	db.SetMaxOpenConns(cfg.MaxConn)
	db.SetMaxIdleConns(cfg.MaxConn)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}

	p := &Pool{
		db:  db,
		sem: make(chan struct{}, cfg.MaxConn),
	}
	for i := 0; i < cfg.MaxConn; i++ {
		p.sem <- struct{}{}
	}
	return p, nil
}

// Lease is a scoped borrow of one pooled connection. Release must be
// called exactly once, on every exit path — success, query error, or a
// recovered panic in the caller's defer chain.
type Lease struct {
	pool *Pool
	conn *sql.Conn
}

// Acquire blocks until a handle is free; per §4.C runtime acquisition
// never fails on its own — it only returns an error if ctx is canceled or
// the underlying connection cannot be established, mirroring the
// "degrades to that request failing" contract for a dead handle.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case <-p.sem:
	default:
		acquireWaitTotal.Inc()
		select {
		case <-p.sem:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.sem <- struct{}{}
		return nil, err
	}
	leasesInUse.Inc()
	return &Lease{pool: p, conn: conn}, nil
}

// Conn exposes the underlying connection for queries.
func (l *Lease) Conn() *sql.Conn { return l.conn }

// Release returns the handle to the pool. Safe to call more than once;
// only the first call has effect. Released handles are not health-checked
// per §4.C — a worker observing a dead handle on next use simply logs and
// lets that request fail.
func (l *Lease) Release() {
	if l == nil || l.conn == nil {
		return
	}
	l.conn.Close()
	l.conn = nil
	l.pool.sem <- struct{}{}
	leasesInUse.Dec()
}

// Close shuts down the underlying *sql.DB. Callers must have released all
// outstanding leases first.
func (p *Pool) Close() error {
	return p.db.Close()
}
