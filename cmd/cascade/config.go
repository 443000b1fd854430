package main

import "time"

const (
	defaultBindHost         = "127.0.0.1"
	defaultTCPPort          = 4600
	defaultAPIPort          = 4700
	defaultDispatchQueue    = 10_000
	defaultDispatchWorkers  = 2
	defaultScheduleInterval = time.Minute
	defaultRetentionDays    = 30 // 0 = disabled
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	NamespaceFile    string        `mapstructure:"namespace-file"`
	TCPEnabled       bool          `mapstructure:"tcp-enabled"`
	TCPPort          int           `mapstructure:"tcp-port"`
	TCPAddr          string        `mapstructure:"tcp-addr"`
	APIEnabled       bool          `mapstructure:"api-enabled"`
	APIPort          int           `mapstructure:"api-port"`
	APIAddr          string        `mapstructure:"api-addr"`
	LineFormat       string        `mapstructure:"line-format"`
	DispatchQueue    int           `mapstructure:"dispatch-queue-size"`
	DispatchWorkers  int           `mapstructure:"dispatch-workers"`
	ScheduleEnabled  bool          `mapstructure:"schedule-enabled"`
	ScheduleInterval time.Duration `mapstructure:"schedule-interval"`
	LogRetention     int           `mapstructure:"log-retention"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}
