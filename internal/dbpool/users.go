package dbpool

import (
	"context"
	"errors"
	"sync"
)

// ErrUserExists is returned by Register when the username is already taken.
var ErrUserExists = errors.New("dbpool: username already registered")

// UserStore mirrors the original's in-memory credential map: loaded once at
// startup from the user table, consulted on login, and written through to
// the database on register. Guarded by a single mutex per §5's
// shared-resource policy ("the user credential map has a single dedicated
// mutex").
type UserStore struct {
	pool *Pool

	mu    sync.Mutex
	users map[string]string
}

// LoadUsers runs the startup query (`SELECT username, passwd FROM user`)
// and populates the in-memory map consulted by Login.
func LoadUsers(ctx context.Context, p *Pool) (*UserStore, error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.Conn().QueryContext(ctx, "SELECT username, passwd FROM user")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &UserStore{pool: p, users: make(map[string]string)}
	for rows.Next() {
		var user, passwd string
		if err := rows.Scan(&user, &passwd); err != nil {
			return nil, err
		}
		s.users[user] = passwd
	}
	return s, rows.Err()
}

// Login checks the in-memory map only; no database round-trip is made.
func (s *UserStore) Login(user, passwd string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	got, ok := s.users[user]
	return ok && got == passwd
}

// Register always attempts the INSERT, per spec.md §8 scenario 4 ("POST
// /register with duplicate username... DB INSERT is attempted and its
// failure surfaced") — the in-memory map is not consulted ahead of the
// database call, so a username already present at startup (or registered by
// a concurrent request) is rejected by the table's own uniqueness
// constraint, and that failure is what Register surfaces as ErrUserExists.
func (s *UserStore) Register(ctx context.Context, user, passwd string) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn().ExecContext(ctx, "INSERT INTO user(username, passwd) VALUES (?, ?)", user, passwd)
	if err != nil {
		var mysqlDup interface{ Number() uint16 }
		if errors.As(err, &mysqlDup) && mysqlDup.Number() == 1062 {
			return ErrUserExists
		}
		return err
	}

	s.mu.Lock()
	s.users[user] = passwd
	s.mu.Unlock()
	return nil
}
