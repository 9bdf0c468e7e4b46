//go:build !linux

package reactor

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wattproject/watt-httpd/internal/httpconn"
	"github.com/wattproject/watt-httpd/internal/workerpool"
)

// fallbackReactor is the portable substitute for the Linux epoll loop: one
// goroutine per connection, each doing ordinary blocking I/O, grounded on
// shockwave/pkg/shockwave/server/server_shockwave.go's Serve/
// handleConnection (accept loop + per-connection goroutine + WaitGroup
// drain on shutdown). Idle eviction is done with net.Conn read deadlines
// instead of the timer list, since there is no single thread to drive it.
type fallbackReactor struct {
	cfg  Config
	deps Deps

	ln net.Listener
	wg sync.WaitGroup

	stats    Stats
	shutdown atomic.Bool
	done     chan struct{}
}

func newPlatformReactor(cfg Config, deps Deps) (Reactor, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, err
	}
	return &fallbackReactor{cfg: cfg, deps: deps, ln: ln, done: make(chan struct{})}, nil
}

func (r *fallbackReactor) Stats() Snapshot { return r.stats.snapshot() }

func (r *fallbackReactor) Run() error {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if r.shutdown.Load() {
				return nil
			}
			continue
		}

		r.stats.onAccept()
		r.wg.Add(1)
		go r.handleConnection(conn)
	}
}

func (r *fallbackReactor) handleConnection(netConn net.Conn) {
	defer r.wg.Done()
	defer netConn.Close()
	defer r.stats.onClose()

	opts := httpConnOptions(r.cfg, r.deps)
	c := httpconn.New(netConn, opts)

	for {
		netConn.SetReadDeadline(r.cfg.idleDeadline(time.Now()))
		if !c.ReadOnce() {
			return
		}

		if r.deps.Pool != nil {
			done := make(chan struct{})
			task := processTask{conn: c, done: done}
			if !r.submitProcess(task) {
				r.stats.onReject()
				return
			}
			<-done
		} else {
			c.Process()
		}

		netConn.SetWriteDeadline(time.Now().Add(r.cfg.TimeSlot))
		if !c.Write() {
			return
		}
		if c.State() == httpconn.ConnClosed {
			return
		}
	}
}

// processTask and submitProcess let the fallback reactor still exercise
// the shared worker pool for request processing (DB-lease acquisition
// happens there), while keeping the read/write loop itself on the
// connection's own goroutine since there is no shared epoll thread here.
type processTask struct {
	conn *httpconn.Conn
	done chan struct{}
}

type processOnlyConn struct {
	*httpconn.Conn
	done chan struct{}
}

func (p *processOnlyConn) Process() {
	p.Conn.Process()
	close(p.done)
}

func (r *fallbackReactor) submitProcess(t processTask) bool {
	wrapped := &processOnlyConn{Conn: t.conn, done: t.done}
	return r.deps.Pool.Append(workerpool.Task{Kind: workerpool.Process, Conn: wrapped})
}

func (r *fallbackReactor) Shutdown() error {
	if !r.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	_ = r.ln.Close()

	if r.cfg.GracefulClose {
		waitCh := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(waitCh)
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		select {
		case <-waitCh:
		case <-ctx.Done():
		}
	}
	return nil
}
