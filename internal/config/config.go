// Package config loads the runtime options of §6 (port, log switch,
// trigger modes, pool sizes, actor model, ...) through spf13/viper, with
// spf13/cobra supplying the flag surface that binds into it. Grounded on
// nabbar-golib's use of viper as the single source of truth for
// configuration (nabbar-golib/viper) and cobra for command wiring
// (nabbar-golib/cobra), simplified here to a flat struct since this
// server has no sub-commands or hot-reload requirement.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/wattproject/watt-httpd/internal/reactor"
	"github.com/wattproject/watt-httpd/internal/workerpool"
)

// Config is the full set of runtime options named in §6, with the
// defaults §6 lists in parentheses.
type Config struct {
	Port int `mapstructure:"port"`

	DocRoot string `mapstructure:"doc_root"`

	LogEnable bool   `mapstructure:"log_enable"`
	LogDir    string `mapstructure:"log_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogSync   bool   `mapstructure:"log_sync"`

	ListenTrigger string `mapstructure:"listen_trigger"` // "level" | "edge"
	ConnTrigger   string `mapstructure:"conn_trigger"`   // "level" | "edge"

	SQLPoolSize int    `mapstructure:"sql_pool_size"`
	SQLHost     string `mapstructure:"sql_host"`
	SQLPort     int    `mapstructure:"sql_port"`
	SQLUser     string `mapstructure:"sql_user"`
	SQLPassword string `mapstructure:"sql_password"`
	SQLDatabase string `mapstructure:"sql_database"`

	WorkerCount   int  `mapstructure:"worker_count"`
	QueueCapacity int  `mapstructure:"queue_capacity"`
	ActorModel    int  `mapstructure:"actor_model"`
	GracefulClose bool `mapstructure:"graceful_close"`
	KeepAlive     bool `mapstructure:"keep_alive"`
}

// applyDefaults mirrors §6's default column: port, log-enable, trigger
// modes, SQL pool size (8), worker count (8), actor model (1), graceful
// close, log write mode.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("doc_root", "./webroot")

	v.SetDefault("log_enable", true)
	v.SetDefault("log_dir", "./log")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_sync", false)

	v.SetDefault("listen_trigger", "edge")
	v.SetDefault("conn_trigger", "edge")

	v.SetDefault("sql_pool_size", 8)
	v.SetDefault("sql_host", "127.0.0.1")
	v.SetDefault("sql_port", 3306)
	v.SetDefault("sql_user", "root")
	v.SetDefault("sql_password", "")
	v.SetDefault("sql_database", "watt_httpd")

	v.SetDefault("worker_count", workerpool.DefaultWorkers)
	v.SetDefault("queue_capacity", workerpool.DefaultQueueCapacity)
	v.SetDefault("actor_model", 1)
	v.SetDefault("graceful_close", true)
	v.SetDefault("keep_alive", true)
}

// Load reads the bound viper instance into a Config, applying §6's
// defaults for anything neither a flag, an environment variable, nor a
// config file set.
func Load(v *viper.Viper) (*Config, error) {
	applyDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func parseTrigger(s string) reactor.TriggerMode {
	if s == "level" {
		return reactor.LevelTriggered
	}
	return reactor.EdgeTriggered
}

// WorkerMode translates the §6 "actor model" option into workerpool.Mode:
// actor_model == 1 is Reactor mode (the default, labeled "proactor" in the
// original's comments but semantically a reactor per the GLOSSARY).
func (c *Config) WorkerMode() workerpool.Mode {
	if c.ActorModel == 1 {
		return workerpool.ReactorMode
	}
	return workerpool.SimpleMode
}

// ListenTriggerMode and ConnTriggerMode expose the parsed reactor.TriggerMode
// for the two independently configurable trigger settings of §6.
func (c *Config) ListenTriggerMode() reactor.TriggerMode { return parseTrigger(c.ListenTrigger) }
func (c *Config) ConnTriggerMode() reactor.TriggerMode   { return parseTrigger(c.ConnTrigger) }
