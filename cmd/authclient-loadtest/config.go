package main

import (
	"errors"
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type config struct {
	Env          string        `yaml:"env" env:"LOADTEST_ENV" env-default:"local"`
	Workers      int           `yaml:"workers" env:"LOADTEST_WORKERS" env-default:"64"`
	Requests     int           `yaml:"requests" env:"LOADTEST_REQUESTS" env-default:"20000"`
	AccessTTL    time.Duration `yaml:"access_ttl" env:"LOADTEST_ACCESS_TTL" env-default:"2s"`
	ExpireEvery  time.Duration `yaml:"expire_every" env:"LOADTEST_EXPIRE_EVERY" env-default:"300ms"`
	RefreshDelay time.Duration `yaml:"refresh_delay" env:"LOADTEST_REFRESH_DELAY" env-default:"5ms"`
	Timeout      time.Duration `yaml:"timeout" env:"LOADTEST_TIMEOUT" env-default:"10s"`
	Username     string        `yaml:"username" env:"LOADTEST_USERNAME" env-default:"mhs1"`
	RedisAddr    string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPrefix  string        `yaml:"redis_prefix" env:"LOADTEST_REDIS_PREFIX" env-default:"authclient-loadtest"`
	PrintMetrics bool          `yaml:"print_metrics" env:"LOADTEST_PRINT_METRICS"`
	Audit        bool          `yaml:"audit" env:"LOADTEST_AUDIT"`
}

// loadConfig reads CONFIG_PATH when set, otherwise the environment, then
// applies command-line overrides from args.
func loadConfig(args []string) (config, error) {
	var cfg config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, err
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("authclient-loadtest", flag.ContinueOnError)
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent workers")
	fs.IntVar(&cfg.Requests, "requests", cfg.Requests, "total requests across all workers")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "lifetime of issued access tokens")
	fs.DurationVar(&cfg.ExpireEvery, "expire-every", cfg.ExpireEvery, "invalidate all access tokens at this interval; 0 disables")
	fs.DurationVar(&cfg.RefreshDelay, "refresh-delay", cfg.RefreshDelay, "artificial latency of the refresh endpoint")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	fs.StringVar(&cfg.Username, "user", cfg.Username, "seeded account to sign in as")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address; if empty, miniredis is used")
	fs.BoolVar(&cfg.PrintMetrics, "metrics", cfg.PrintMetrics, "print Prometheus metrics after the run")
	fs.BoolVar(&cfg.Audit, "audit", cfg.Audit, "write audit events as JSON to stderr")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.Workers <= 0 || c.Requests <= 0 {
		return errors.New("workers and requests must be > 0")
	}
	if c.AccessTTL <= 0 || c.Timeout <= 0 {
		return errors.New("access-ttl and timeout must be > 0")
	}
	if c.ExpireEvery < 0 || c.RefreshDelay < 0 {
		return errors.New("expire-every and refresh-delay must be >= 0")
	}
	return nil
}
