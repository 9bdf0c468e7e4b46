//go:build linux

package reactor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wattproject/watt-httpd/internal/httpconn"
	"github.com/wattproject/watt-httpd/internal/timer"
	"github.com/wattproject/watt-httpd/internal/workerpool"
)

const (
	maxEpollEvents = 1024
	// pendingPollMillis bounds how long epoll_wait may block while one or
	// more connections are awaiting re-arm after a worker finished with
	// them; this realizes the original's busy-wait on improv/timer_flag
	// as a bounded poll instead of spinning a core.
	pendingPollMillis = 10
)

// connEntry is the reactor-thread-exclusive bookkeeping record for one
// accepted connection, grounded on http_conn.hpp's per-connection state
// (fd, the Conn state machine, and its timer slot).
type connEntry struct {
	fd   int
	conn *httpconn.Conn
	slot *timer.Slot
}

type linuxReactor struct {
	cfg  Config
	deps Deps

	listenFD int
	epfd     int
	pipeR    int
	pipeW    int

	timers *timer.List

	mu      sync.Mutex
	conns   map[int]*connEntry
	pending map[int]*connEntry

	stats Stats

	sigCh    chan os.Signal
	shutdown chan struct{}
	closed   chan struct{}
	doneOnce sync.Once
}

func newPlatformReactor(cfg Config, deps Deps) (Reactor, error) {
	listenFD, err := newListenSocket(cfg.ListenAddr, cfg.Port)
	if err != nil {
		return nil, err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(listenFD)
		return nil, err
	}

	var pipeFDs [2]int
	if err := unix.Pipe2(pipeFDs[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		unix.Close(listenFD)
		return nil, err
	}

	r := &linuxReactor{
		cfg:      cfg,
		deps:     deps,
		listenFD: listenFD,
		epfd:     epfd,
		pipeR:    pipeFDs[0],
		pipeW:    pipeFDs[1],
		conns:    make(map[int]*connEntry),
		pending:  make(map[int]*connEntry),
		sigCh:    make(chan os.Signal, 8),
		shutdown: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	r.timers = timer.New(r.onTimerExpired)

	if err := r.epollAdd(listenFD, unix.EPOLLIN); err != nil {
		r.closeAll()
		return nil, err
	}
	if err := r.epollAdd(r.pipeR, unix.EPOLLIN); err != nil {
		r.closeAll()
		return nil, err
	}

	return r, nil
}

func (r *linuxReactor) Stats() Snapshot { return r.stats.snapshot() }

func (r *linuxReactor) epollAdd(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (r *linuxReactor) epollMod(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (r *linuxReactor) epollDel(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Run drives the single-threaded epoll loop until Shutdown is called.
// Per §5, every epoll-registered fd is this goroutine's exclusive
// business: the timer list, the conns map, and socket state are never
// touched from any other goroutine.
func (r *linuxReactor) Run() error {
	signal.Notify(r.sigCh, syscall.SIGALRM, syscall.SIGTERM, syscall.SIGPIPE)
	defer signal.Stop(r.sigCh)

	go r.forwardSignals()

	ticker := time.NewTicker(r.cfg.TimeSlot)
	defer ticker.Stop()
	go r.tickAlarm(ticker)

	events := make([]unix.EpollEvent, maxEpollEvents)

	for {
		select {
		case <-r.shutdown:
			r.doneOnce.Do(func() { close(r.closed) })
			return nil
		default:
		}

		timeout := -1
		r.mu.Lock()
		if len(r.pending) > 0 {
			timeout = pendingPollMillis
		}
		r.mu.Unlock()

		n, err := unix.EpollWait(r.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case r.listenFD:
				r.acceptLoop()
			case r.pipeR:
				r.drainSelfPipe()
			default:
				r.handleConnEvent(fd, events[i].Events)
			}
		}

		r.reapPending()
	}
}

// forwardSignals relays Go's signal-safe channel delivery into the
// self-pipe, so the single epoll_wait call is the only place the
// reactor ever blocks: a real sigaction handler cannot safely do more
// than write a byte, and this goroutine is the Go-idiomatic equivalent
// of that handler.
func (r *linuxReactor) forwardSignals() {
	for {
		select {
		case sig := <-r.sigCh:
			var tag byte
			switch sig {
			case syscall.SIGALRM:
				tag = 'A'
			case syscall.SIGTERM:
				tag = 'T'
			case syscall.SIGPIPE:
				tag = 'P'
			default:
				continue
			}
			_, _ = unix.Write(r.pipeW, []byte{tag})
		case <-r.closed:
			return
		}
	}
}

// tickAlarm re-raises SIGALRM on a fixed period, matching the original's
// alarm(TIMESLOT) re-armed from within its own handler.
func (r *linuxReactor) tickAlarm(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
			_ = unix.Kill(os.Getpid(), syscall.SIGALRM)
		case <-r.closed:
			return
		}
	}
}

func (r *linuxReactor) drainSelfPipe() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.pipeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
		for _, tag := range buf[:n] {
			switch tag {
			case 'A':
				r.onAlarm()
			case 'T':
				r.initiateShutdown()
			case 'P':
				// A write() already failed with EPIPE and was handled
				// at the call site; nothing further to do.
			}
		}
	}
}

func (r *linuxReactor) onAlarm() {
	r.timers.Tick(time.Now())
}

func (r *linuxReactor) initiateShutdown() {
	select {
	case <-r.shutdown:
	default:
		close(r.shutdown)
	}
}

func (r *linuxReactor) acceptLoop() {
	for {
		nfd, _, err := unix.Accept4(r.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EINTR {
				continue
			}
			return
		}
		setQuickAck(nfd)
		r.registerConn(nfd)
	}
}

func (r *linuxReactor) registerConn(fd int) {
	opts := httpConnOptions(r.cfg, r.deps)
	c := httpconn.New(&rawConn{fd: fd}, opts)
	entry := &connEntry{fd: fd, conn: c}
	entry.slot = r.timers.Add(r.cfg.idleDeadline(time.Now()), entry)

	r.mu.Lock()
	r.conns[fd] = entry
	r.mu.Unlock()

	r.stats.onAccept()

	events := uint32(unix.EPOLLIN | unix.EPOLLONESHOT)
	if r.cfg.ConnTrigger == EdgeTriggered {
		events |= unix.EPOLLET
	}
	if err := r.epollAdd(fd, events); err != nil {
		r.closeConn(entry)
	}
}

// onTimerExpired is the timer.List's CloseFunc: it fires from inside
// Tick, which only ever runs on this goroutine, so it is free to touch
// conns/epoll directly.
func (r *linuxReactor) onTimerExpired(owner interface{}) {
	entry, ok := owner.(*connEntry)
	if !ok {
		return
	}
	entry.slot = nil
	r.stats.onTimedOut()
	r.closeConn(entry)
}

func (r *linuxReactor) handleConnEvent(fd int, events uint32) {
	r.mu.Lock()
	entry, ok := r.conns[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	if entry.slot != nil {
		r.timers.Adjust(entry.slot, r.cfg.idleDeadline(time.Now()))
	}

	var kind workerpool.TaskKind
	switch {
	case events&unix.EPOLLOUT != 0:
		kind = workerpool.WriteReady
	default:
		kind = workerpool.ReadReady
	}

	r.mu.Lock()
	r.pending[fd] = entry
	r.mu.Unlock()

	if !r.deps.Pool.Append(workerpool.Task{Kind: kind, Conn: entry.conn}) {
		// Queue is saturated: close the connection rather than block
		// the reactor thread waiting for room.
		r.stats.onReject()
		r.closeConn(entry)
	}
}

// reapPending re-arms every connection whose worker task has finished
// (Improv() true) and closes any whose read or write failed
// (TimerExpired() true), matching the original's "improv" handback
// contract of §4.D/§4.E.
func (r *linuxReactor) reapPending() {
	r.mu.Lock()
	ready := make([]*connEntry, 0, len(r.pending))
	for fd, entry := range r.pending {
		if entry.conn.Improv() {
			ready = append(ready, entry)
			delete(r.pending, fd)
		}
	}
	r.mu.Unlock()

	for _, entry := range ready {
		if entry.conn.TimerExpired() {
			r.closeConn(entry)
			continue
		}
		if entry.conn.State() == httpconn.ConnClosed {
			r.closeConn(entry)
			continue
		}
		r.rearm(entry)
	}
}

func (r *linuxReactor) rearm(entry *connEntry) {
	events := uint32(unix.EPOLLONESHOT)
	if r.cfg.ConnTrigger == EdgeTriggered {
		events |= unix.EPOLLET
	}
	if entry.conn.NeedsWrite() {
		events |= unix.EPOLLOUT
	} else {
		events |= unix.EPOLLIN
	}
	if err := r.epollMod(entry.fd, events); err != nil {
		r.closeConn(entry)
	}
}

func (r *linuxReactor) closeConn(entry *connEntry) {
	r.mu.Lock()
	delete(r.conns, entry.fd)
	delete(r.pending, entry.fd)
	r.mu.Unlock()

	if entry.slot != nil {
		r.timers.Remove(entry.slot)
		entry.slot = nil
	}
	r.epollDel(entry.fd)
	_ = entry.conn.CloseConn()
	r.stats.onClose()
}

// Shutdown asks the reactor to stop accepting and close its sockets. If
// GracefulClose is set, it waits for already-accepted connections to
// finish their in-flight request before tearing them down; otherwise it
// closes everything immediately.
func (r *linuxReactor) Shutdown() error {
	r.initiateShutdown()
	<-r.closed

	if r.cfg.GracefulClose {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			r.mu.Lock()
			n := len(r.conns)
			r.mu.Unlock()
			if n == 0 {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	r.closeAll()
	return nil
}

func (r *linuxReactor) closeAll() {
	r.mu.Lock()
	entries := make([]*connEntry, 0, len(r.conns))
	for _, e := range r.conns {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		r.closeConn(e)
	}

	unix.Close(r.listenFD)
	unix.Close(r.epfd)
	unix.Close(r.pipeR)
	unix.Close(r.pipeW)
}
