package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds service configuration.
type Config struct {
	ServerAddr         string
	LogLevel           string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	EventBufferSize    int
	SSEClientBuffer    int

	// Optional sinks; empty disables them.
	RedisURL           string
	RedisStreamPrefix  string
	ArchiveDatabaseURL string
	MigrationsDir      string
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	return &Config{
		ServerAddr:         getenv("SERVER_ADDR", "0.0.0.0:8080"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "*")),
		RequestTimeout:     parseDuration(os.Getenv("REQUEST_TIMEOUT"), 30*time.Second),
		EventBufferSize:    parseInt(os.Getenv("EVENT_BUFFER_SIZE"), 1024),
		SSEClientBuffer:    parseInt(os.Getenv("SSE_CLIENT_BUFFER"), 64),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisStreamPrefix:  getenv("REDIS_STREAM_PREFIX", "tracker:execution:"),
		ArchiveDatabaseURL: os.Getenv("ARCHIVE_DATABASE_URL"),
		MigrationsDir:      getenv("MIGRATIONS_DIR", "internal/migrations"),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
