package internal

import "time"

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	CacheTTL           time.Duration `env:"CACHE_TTL,default=300s"`
	CacheSweepInterval time.Duration `env:"CACHE_SWEEP_INTERVAL,default=1m"`
	// Empty means the in-memory cache; set to host:port to use Redis.
	RedisAddr string `env:"REDIS_ADDR"`

	NumberOfWorkers    int           `env:"NUMBER_OF_WORKERS,default=4"`
	MaxAttempts        int           `env:"MAX_ATTEMPTS,default=3"`
	BackoffBase        time.Duration `env:"BACKOFF_BASE,default=1s"`
	BackoffCap         time.Duration `env:"BACKOFF_CAP,default=30s"`
	LeaseDuration      time.Duration `env:"LEASE_DURATION,default=30s"`
	LeaseSweepInterval time.Duration `env:"LEASE_SWEEP_INTERVAL,default=5s"`
	PollInterval       time.Duration `env:"POLL_INTERVAL,default=250ms"`
	HandlerTimeout     time.Duration `env:"HANDLER_TIMEOUT,default=10s"`

	NotificationLatency time.Duration `env:"NOTIFICATION_LATENCY,default=1s"`
	ConnectionBuffer    int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
}
