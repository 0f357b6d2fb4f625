package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cypher-asi/zero-os-sub006/internal/kernel"
)

// DaemonConfig tunes the gateway a booted kernel runs with. Zero
// values mean "use the kernel default", so a partial file only
// overrides what it names.
type DaemonConfig struct {
	// MaxMessageSize caps send payloads in bytes.
	MaxMessageSize int `yaml:"max_message_size"`

	// MaxQueueDepth caps pending messages per endpoint.
	MaxQueueDepth int `yaml:"max_queue_depth"`

	// AuditCapacity bounds the in-memory audit buffer; oldest events
	// are dropped past it. Zero keeps the kernel default, -1 means
	// unbounded.
	AuditCapacity int `yaml:"audit_capacity"`
}

// LoadDaemonConfig reads a YAML daemon config. Unknown keys are
// rejected so a typo fails loudly instead of silently keeping a
// default.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg DaemonConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return DaemonConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no gateway can run with.
func (c DaemonConfig) Validate() error {
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("max_message_size must not be negative: %d", c.MaxMessageSize)
	}
	if c.MaxQueueDepth < 0 {
		return fmt.Errorf("max_queue_depth must not be negative: %d", c.MaxQueueDepth)
	}
	if c.AuditCapacity < -1 {
		return fmt.Errorf("audit_capacity must be -1, 0, or positive: %d", c.AuditCapacity)
	}
	return nil
}

// KernelOptions converts the config into kernel options, skipping
// fields left at their zero value.
func (c DaemonConfig) KernelOptions() []kernel.KernelOption {
	var opts []kernel.KernelOption
	if c.MaxMessageSize > 0 {
		opts = append(opts, kernel.WithMaxMessageSize(c.MaxMessageSize))
	}
	if c.MaxQueueDepth > 0 {
		opts = append(opts, kernel.WithMaxQueueDepth(c.MaxQueueDepth))
	}
	if c.AuditCapacity != 0 {
		n := c.AuditCapacity
		if n == -1 {
			n = 0 // kernel treats zero or less as unbounded
		}
		opts = append(opts, kernel.WithAuditCapacity(n))
	}
	return opts
}
