package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the custody engine.
type Server struct {
	Addr string

	// DatabaseURL selects the postgres stores when set; empty means the
	// in-memory stores (development, tests).
	DatabaseURL string

	// RedisURL enables the pub/sub print-job notifier when set.
	RedisURL string

	// KafkaBrokers enables the audit outbox worker when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	// AccessCodeSigningKey signs print-job delegation access codes.
	AccessCodeSigningKey string

	// ConflictRetries bounds the number of automatic retries on a
	// transient concurrency conflict.
	ConflictRetries int

	// JobPollInterval bounds how stale an active printing session's view
	// of its job state may be.
	JobPollInterval time.Duration

	// ShutdownTimeout bounds the drain of in-flight requests on SIGTERM.
	ShutdownTimeout time.Duration
}

const (
	defaultAddr            = ":8080"
	defaultAuditTopic      = "pharmatrace.audit"
	defaultConflictRetries = 3
	defaultJobPollInterval = 1200 * time.Millisecond
	defaultShutdownTimeout = 10 * time.Second
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PHARMATRACE_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	signingKey := os.Getenv("ACCESS_CODE_SIGNING_KEY")
	if signingKey == "" {
		// Development fallback; override in any real deployment.
		signingKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = defaultAuditTopic
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	retries := defaultConflictRetries
	if raw := os.Getenv("CONFLICT_RETRIES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			retries = parsed
		}
	}

	poll := defaultJobPollInterval
	if raw := os.Getenv("JOB_POLL_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			poll = parsed
		}
	}

	shutdown := defaultShutdownTimeout
	if raw := os.Getenv("SHUTDOWN_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			shutdown = parsed
		}
	}

	return Server{
		Addr:                 addr,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		KafkaBrokers:         brokers,
		AuditTopic:           topic,
		AccessCodeSigningKey: signingKey,
		ConflictRetries:      retries,
		JobPollInterval:      poll,
		ShutdownTimeout:      shutdown,
	}
}
