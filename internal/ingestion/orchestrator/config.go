package orchestrator

import (
	"fmt"
	"time"

	"github.com/yungbote/winegraph/internal/domain"
)

type Policy string

const (
	// PolicyStrict aborts the run before any write when a record is invalid.
	PolicyStrict Policy = "strict"
	// PolicySkip reports invalid records and ingests the rest.
	PolicySkip Policy = "skip"
)

type Config struct {
	BatchSize        int           `yaml:"batch_size"`
	Policy           Policy        `yaml:"policy"`
	MaxBatchAttempts int           `yaml:"max_batch_attempts"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

func DefaultConfig() Config {
	return Config{
		BatchSize:        domain.DefaultBatchSize,
		Policy:           PolicyStrict,
		MaxBatchAttempts: 1,
		RetryBackoff:     2 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return &domain.ConfigError{Field: "batch_size", Reason: "must be positive"}
	}
	switch c.Policy {
	case PolicyStrict, PolicySkip:
	default:
		return &domain.ConfigError{Field: "policy", Reason: fmt.Sprintf("unknown policy %q (want strict or skip)", c.Policy)}
	}
	if c.MaxBatchAttempts < 1 {
		return &domain.ConfigError{Field: "max_batch_attempts", Reason: "must be at least 1"}
	}
	if c.RetryBackoff < 0 {
		return &domain.ConfigError{Field: "retry_backoff", Reason: "must not be negative"}
	}
	return nil
}
