// Package workerpool implements the bounded FIFO task queue and fixed
// worker set of §4.D: N workers drain a non-blocking bounded queue and
// dispatch by task tag, under one of two execution policies (Reactor mode
// or Simple mode per §4.D).
package workerpool

import (
	"context"
	"sync"

	"github.com/wattproject/watt-httpd/internal/dbpool"
	"github.com/wattproject/watt-httpd/internal/logger"
)

// Mode selects the dispatch policy. ReactorMode corresponds to
// actor_model == 1 in the original (labeled "proactor" in its comments but
// semantically a reactor); SimpleMode corresponds to actor_model != 1.
type Mode int

const (
	ReactorMode Mode = iota
	SimpleMode
)

const (
	// DefaultWorkers is the worker count per §6 ("worker count (8)").
	DefaultWorkers = 8
	// DefaultQueueCapacity is the bounded FIFO queue size per §4.D.
	DefaultQueueCapacity = 10000
)

// Config sizes and configures a Pool.
type Config struct {
	Workers       int
	QueueCapacity int
	Mode          Mode
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
}

// Pool is the fixed-size worker pool consuming a bounded task queue.
type Pool struct {
	cfg Config
	db  *dbpool.Pool
	log *logger.Logger

	queue chan Task
	done  chan struct{}
	wg    sync.WaitGroup
}

// New constructs a Pool. Call Start to spawn its workers.
func New(cfg Config, db *dbpool.Pool, log *logger.Logger) *Pool {
	cfg.applyDefaults()
	return &Pool{
		cfg:   cfg,
		db:    db,
		log:   log,
		queue: make(chan Task, cfg.QueueCapacity),
		done:  make(chan struct{}),
	}
}

// Start spawns the fixed worker set. Workers run until Shutdown.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Append enqueues a task, returning false if the queue is at capacity —
// back-pressure to the reactor, which per §4.E closes the connection when
// this happens rather than blocking the single reactor thread.
func (p *Pool) Append(t Task) bool {
	select {
	case p.queue <- t:
		queueDepth.Inc()
		return true
	default:
		rejectedTotal.Inc()
		return false
	}
}

// QueueLen reports the current number of tasks awaiting a worker.
func (p *Pool) QueueLen() int { return len(p.queue) }

// Shutdown signals all workers to drain the queue and exit, then waits for
// them. Per §5, workers finish in-flight and queued tasks before exiting.
func (p *Pool) Shutdown() {
	close(p.done)
	p.wg.Wait()
}

// run drains the queue until empty before honoring done, so a shutdown
// never drops tasks that were already enqueued.
func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.queue:
			queueDepth.Dec()
			p.dispatchSafely(t)
			continue
		default:
		}

		select {
		case t := <-p.queue:
			queueDepth.Dec()
			p.dispatchSafely(t)
		case <-p.done:
			return
		}
	}
}

// dispatchSafely recovers a panic from user code at the worker boundary so
// one bad request cannot kill a worker goroutine, per §4.D's failure
// semantics.
func (p *Pool) dispatchSafely(t Task) {
	defer func() {
		if r := recover(); r != nil {
			if p.log != nil {
				p.log.Log(logger.ErrorLevel, "workerpool: recovered panic in task %s: %v", t.Kind, r)
			}
		}
	}()

	if t.Conn == nil {
		return
	}

	busyTotal.Inc()
	defer busyTotal.Dec()

	switch p.cfg.Mode {
	case ReactorMode:
		p.dispatchReactor(t)
	default:
		p.dispatchSimple(t)
	}
}

func (p *Pool) dispatchReactor(t Task) {
	switch t.Kind {
	case ReadReady:
		if t.Conn.ReadOnce() {
			p.processWithLease(t.Conn)
			t.Conn.SetImprov()
		} else {
			t.Conn.SetImprov()
			// An incomplete read (request still arriving across more
			// than one readiness event) just re-arms for another read;
			// only a real I/O error or malformed request closes.
			if t.Conn.NeedsClose() {
				t.Conn.SetTimerFlag()
			}
		}
	case WriteReady:
		if t.Conn.Write() {
			t.Conn.SetImprov()
		} else {
			t.Conn.SetImprov()
			if t.Conn.NeedsClose() {
				t.Conn.SetTimerFlag()
			}
		}
	case Process:
		p.processWithLease(t.Conn)
	}
}

func (p *Pool) dispatchSimple(t Task) {
	p.processWithLease(t.Conn)
}

// processWithLease acquires a DB lease (if a pool is configured) before
// running Process, guaranteeing release via defer on every exit path
// including a panic, which dispatchSafely's recover above then catches.
func (p *Pool) processWithLease(c Conn) {
	if p.db == nil {
		c.Process()
		return
	}
	lease, err := p.db.Acquire(context.Background())
	if err != nil {
		if p.log != nil {
			p.log.Log(logger.ErrorLevel, "workerpool: failed to acquire db lease: %v", err)
		}
		return
	}
	defer lease.Release()
	c.Process()
}
