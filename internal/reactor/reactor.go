// Package reactor implements the single-threaded I/O demultiplexer of
// §4.E: a Linux edge-triggered one-shot epoll loop (reactor_linux.go) with
// a portable goroutine-per-connection fallback (reactor_other.go) for
// every other platform, grounded on
// shockwave/pkg/shockwave/server/server_shockwave.go's Serve/
// handleConnection shape.
package reactor

import (
	"time"

	"github.com/wattproject/watt-httpd/internal/dbpool"
	"github.com/wattproject/watt-httpd/internal/httpconn"
	"github.com/wattproject/watt-httpd/internal/logger"
	"github.com/wattproject/watt-httpd/internal/workerpool"
)

// TriggerMode selects level- or edge-triggered readiness notification,
// configurable independently for the listen socket and client
// connections per §6 ("listen trigger mode, connection trigger mode").
type TriggerMode int

const (
	LevelTriggered TriggerMode = iota
	EdgeTriggered
)

const (
	// DefaultTimeSlot is the alarm tick period; idle connections are
	// closed after 3*TimeSlot of no successful I/O per §5.
	DefaultTimeSlot = 5 * time.Second
)

// Config configures a Reactor.
type Config struct {
	ListenAddr string
	Port       int

	ListenTrigger TriggerMode
	ConnTrigger   TriggerMode

	TimeSlot time.Duration

	DocRoot       string
	KeepAlive     bool
	GracefulClose bool
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.TimeSlot <= 0 {
		c.TimeSlot = DefaultTimeSlot
	}
}

// idleDeadline is the absolute "3 * TIMESLOT" expiry §3 assigns a
// ConnectionRecord on accept and extends on every successful I/O.
func (c Config) idleDeadline(now time.Time) time.Time {
	return now.Add(3 * c.TimeSlot)
}

// Deps bundles the already-constructed leaf components a Reactor wires
// together, matching the "leaves first" dependency order of §2. The
// reactor owns its own timer.List internally (§5: the timer list is
// driven exclusively by the reactor's alarm tick), so it is not part of
// Deps.
type Deps struct {
	Pool  *workerpool.Pool
	Log   *logger.Logger
	Users *dbpool.UserStore
	DB    *dbpool.Pool
}

// Reactor is the platform-specific event loop. Run blocks until Shutdown
// is called (or a fatal error occurs); Shutdown closes the listen socket
// and lets in-flight connections drain per §5.
type Reactor interface {
	Run() error
	Shutdown() error
	Stats() Snapshot
}

// New builds the platform-appropriate Reactor: an epoll-based event loop
// on Linux (reactor_linux.go), or a goroutine-per-connection listener
// everywhere else (reactor_other.go).
func New(cfg Config, deps Deps) (Reactor, error) {
	cfg.applyDefaults()
	return newPlatformReactor(cfg, deps)
}

// httpConnOptions builds the httpconn.Options shared by every accepted
// connection.
func httpConnOptions(cfg Config, deps Deps) httpconn.Options {
	return httpconn.Options{
		DocRoot:   cfg.DocRoot,
		Users:     deps.Users,
		DB:        deps.DB,
		Log:       deps.Log,
		KeepAlive: cfg.KeepAlive,
	}
}
