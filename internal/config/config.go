package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by COGSYNC_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("COGSYNC_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// SyncPort is the TCP port the sync listener binds.
func SyncPort() int {
	port, err := strconv.Atoi(os.Getenv("SYNC_PORT"))
	if err != nil {
		return 4273
	}
	return port
}

func SyncAddr() string {
	return fmt.Sprintf(":%d", SyncPort())
}

// DatabaseURL is the optional Postgres DSN for snapshots. Empty disables
// snapshotting entirely.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// ConflictPolicy returns the configured conflict policy name.
// Defaults to "merge_belief" if not set.
// Valid values: latest_wins, highest_confidence, merge_belief, manual
func ConflictPolicy() string {
	p := os.Getenv("CONFLICT_POLICY")
	if p == "" {
		return "merge_belief"
	}
	return p
}

// SyncInterval returns how often the scheduler pushes incremental syncs.
// Defaults to 60s if not set or unparsable.
func SyncInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("SYNC_INTERVAL"))
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// SyncSchedulerEnabled reports whether the background scheduler should run.
// Defaults to true.
func SyncSchedulerEnabled() bool {
	v := os.Getenv("SYNC_SCHEDULER")
	if v == "" {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
