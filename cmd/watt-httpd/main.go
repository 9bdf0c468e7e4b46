// Command watt-httpd is the process entry point: it loads configuration
// through cobra/viper, constructs the core components leaves-first
// (logger, DB pool, worker pool, reactor — matching §2's component table;
// the reactor builds its own timer list), installs signal handling, and
// blocks until shutdown.
// Wiring order mirrors original_source's main(): log init, then sql pool,
// then thread pool, then the epoll loop — without carrying over its CLI
// flags verbatim.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wattproject/watt-httpd/internal/config"
	"github.com/wattproject/watt-httpd/internal/dbpool"
	"github.com/wattproject/watt-httpd/internal/logger"
	"github.com/wattproject/watt-httpd/internal/reactor"
	"github.com/wattproject/watt-httpd/internal/timer"
	"github.com/wattproject/watt-httpd/internal/workerpool"
)

var (
	cfgFile     string
	metricsAddr string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watt-httpd",
		Short: "A reactor-based HTTP/1.1 server with a worker pool and async logger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "path to a config file (yaml/json/ini); searched in ./ and /etc/watt-httpd if unset")
	flags.Int("port", 8080, "TCP listen port")
	flags.String("doc-root", "./webroot", "static file document root")
	flags.Bool("log-enable", true, "enable logging")
	flags.String("log-dir", "./log", "directory for rotated log files")
	flags.String("log-level", "info", "minimum log level (fatal|error|warn|info|debug|trace)")
	flags.Bool("log-sync", false, "persist log lines as soon as possible (near-zero consumer flush timeout); lines still go through the async ring")
	flags.String("listen-trigger", "edge", "listen-socket trigger mode (level|edge)")
	flags.String("conn-trigger", "edge", "client-socket trigger mode (level|edge)")
	flags.Int("sql-pool-size", 8, "number of pooled MySQL handles")
	flags.String("sql-host", "127.0.0.1", "MySQL host")
	flags.Int("sql-port", 3306, "MySQL port")
	flags.String("sql-user", "root", "MySQL user")
	flags.String("sql-password", "", "MySQL password")
	flags.String("sql-database", "watt_httpd", "MySQL database")
	flags.Int("worker-count", workerpool.DefaultWorkers, "fixed HTTP worker count")
	flags.Int("queue-capacity", workerpool.DefaultQueueCapacity, "bounded task queue capacity")
	flags.Int("actor-model", 1, "1 = reactor mode (workers do I/O + process), 0 = simple mode (workers only process)")
	flags.Bool("graceful-close", true, "drain in-flight connections on shutdown")
	flags.Bool("keep-alive", true, "honor Connection: keep-alive")
	flags.StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on; empty disables it")

	// Every flag above binds into viper under the same key with dashes
	// turned to underscores (port, doc-root -> doc_root, ...), so flags,
	// WATT_*-prefixed environment variables, and a config file all
	// resolve into the same config.Config via mapstructure tags.
	for _, name := range []string{
		"port", "doc-root", "log-enable", "log-dir", "log-level", "log-sync",
		"listen-trigger", "conn-trigger", "sql-pool-size", "sql-host",
		"sql-port", "sql-user", "sql-password", "sql-database",
		"worker-count", "queue-capacity", "actor-model", "graceful-close",
		"keep-alive",
	} {
		key := strings.ReplaceAll(name, "-", "_")
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}

	return cmd
}

func run(v *viper.Viper) error {
	v.SetEnvPrefix("watt")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("watt-httpd")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/watt-httpd")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("config: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logDir := cfg.LogDir
	if !cfg.LogEnable {
		// An empty Dir makes the consumer never open a file (see
		// logger.Logger.persist): lines are still accepted and ring-
		// buffered but silently discarded at persist time, which is a
		// cheap way to honor log_enable=false without a second code
		// path through the ring discipline itself.
		logDir = ""
	}
	logCfg := logger.Config{
		Dir:      logDir,
		ProgName: "watt-httpd",
		Level:    logger.ParseLevel(cfg.LogLevel),
	}
	if cfg.LogSync {
		// §4.A's contract is non-negotiable (a caller must never block
		// on disk I/O), so "sync" mode here means "persist as soon as
		// physically possible" — a near-zero consumer flush timeout —
		// rather than writing on the producer's own goroutine.
		logCfg.FlushTimeout = time.Millisecond
	}
	log, err := logger.New(logCfg)
	if err != nil {
		// Fatal per §7: log init failure terminates the process.
		return fmt.Errorf("fatal: logger init: %w", err)
	}
	defer log.Close()
	log.Log(logger.InfoLevel, "watt-httpd starting: port=%d workers=%d actor_model=%d", cfg.Port, cfg.WorkerCount, cfg.ActorModel)

	reg := prometheus.NewRegistry()
	logger.MustRegister(reg)

	dbPool, err := dbpool.Open(dbpool.Config{
		Host:     cfg.SQLHost,
		Port:     cfg.SQLPort,
		User:     cfg.SQLUser,
		Password: cfg.SQLPassword,
		Database: cfg.SQLDatabase,
		MaxConn:  cfg.SQLPoolSize,
	})
	if err != nil {
		return fmt.Errorf("fatal: %w", err)
	}
	defer dbPool.Close()
	dbpool.MustRegister(reg)

	users, err := dbpool.LoadUsers(context.Background(), dbPool)
	if err != nil {
		log.Log(logger.ErrorLevel, "failed to load user credential map at startup: %v", err)
		users = nil
	}

	pool := workerpool.New(workerpool.Config{
		Workers:       cfg.WorkerCount,
		QueueCapacity: cfg.QueueCapacity,
		Mode:          cfg.WorkerMode(),
	}, dbPool, log)
	pool.Start()
	defer pool.Shutdown()
	workerpool.MustRegister(reg)

	rc, err := reactor.New(reactor.Config{
		Port:          cfg.Port,
		ListenTrigger: cfg.ListenTriggerMode(),
		ConnTrigger:   cfg.ConnTriggerMode(),
		DocRoot:       cfg.DocRoot,
		KeepAlive:     cfg.KeepAlive,
		GracefulClose: cfg.GracefulClose,
	}, reactor.Deps{
		Pool:  pool,
		Log:   log,
		Users: users,
		DB:    dbPool,
	})
	if err != nil {
		return fmt.Errorf("fatal: reactor init: %w", err)
	}
	reactor.MustRegister(reg)
	timer.MustRegister(reg)

	var metricsSrv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Log(logger.WarnLevel, "metrics server stopped: %v", err)
			}
		}()
	}

	// SIGTERM is also routed through the reactor's own self-pipe on
	// Linux; this top-level handler exists so the portable (non-Linux)
	// fallback reactor and Ctrl+C during local runs still shut down
	// cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Log(logger.InfoLevel, "shutdown signal received")
		if metricsSrv != nil {
			_ = metricsSrv.Close()
		}
		if err := rc.Shutdown(); err != nil {
			log.Log(logger.ErrorLevel, "reactor shutdown: %v", err)
		}
	}()

	if err := rc.Run(); err != nil {
		log.Log(logger.ErrorLevel, "reactor exited with error: %v", err)
		return err
	}
	log.Log(logger.InfoLevel, "watt-httpd stopped")
	return nil
}
