// Package worker implements the delivery worker pool. Workers drain the
// Redis queue, confirm deliveries with the registry, and push failed
// messages back for linear retry.
package worker

import (
	"fmt"
	"time"

	"github.com/courierhq/courier/internal/tlsutil"
)

// Config configures the delivery worker pool.
type Config struct {
	// WorkerIDPrefix names the workers in logs, metrics and delivery
	// confirmations. Workers are numbered prefix-1 .. prefix-N.
	// Default: "worker"
	WorkerIDPrefix string `mapstructure:"worker_id_prefix" yaml:"worker_id_prefix"`

	// Concurrency is the number of worker goroutines. Default: 4
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,min=1" yaml:"concurrency"`

	// RetryInterval is the linear backoff between delivery attempts.
	// Default: 30s
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`

	// MaxAttempts is the attempt ceiling; a message that reaches it is
	// marked failed and dropped from the queue. Default: 10000
	MaxAttempts int `mapstructure:"max_attempts" validate:"omitempty,min=1" yaml:"max_attempts"`

	// RegistryURL is the base URL of the registry's internal surface.
	// Default: http://localhost:8080
	RegistryURL string `mapstructure:"registry_url" yaml:"registry_url"`

	// RegistryTLS configures the client side of the registry connection.
	RegistryTLS tlsutil.ClientConfig `mapstructure:"registry_tls" yaml:"registry_tls"`

	// RegistryTimeout bounds each registry call. Default: 5s
	RegistryTimeout time.Duration `mapstructure:"registry_timeout" yaml:"registry_timeout"`

	// QueueSampleInterval is how often the queue depth gauge is refreshed.
	// Default: 10s
	QueueSampleInterval time.Duration `mapstructure:"queue_sample_interval" yaml:"queue_sample_interval"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.WorkerIDPrefix == "" {
		c.WorkerIDPrefix = "worker"
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 10000
	}
	if c.RegistryURL == "" {
		c.RegistryURL = "http://localhost:8080"
	}
	if c.RegistryTimeout == 0 {
		c.RegistryTimeout = 5 * time.Second
	}
	if c.QueueSampleInterval == 0 {
		c.QueueSampleInterval = 10 * time.Second
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("worker concurrency cannot be negative")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("worker max_attempts cannot be negative")
	}
	return nil
}
