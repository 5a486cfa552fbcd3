package config

import (
	"path/filepath"
	"runtime"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds global daemon configuration.
type Config struct {
	// RootDir is the base directory for persistent data: the operation
	// store, audit log, and git source sandboxes all default to paths
	// under it.
	RootDir string `json:"root_dir"`
	// PoolSize is the goroutine pool size for concurrent operations.
	// Defaults to runtime.NumCPU() if zero.
	PoolSize int `json:"pool_size"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log"`

	// StorePath overrides the Operation Store's on-disk location.
	// Defaults under the sandbox state directory (StoreDir()) when empty.
	StorePath string `json:"store_path"`
	// StoreBackend selects the Operation Store backend: "bolt" (default,
	// transactional) or "json" (flock-protected single document).
	StoreBackend string `json:"store_backend"`
	// AuditLogPath overrides the Audit Log's on-disk location. Defaults
	// under the sandbox state directory (StoreDir()) when empty.
	AuditLogPath string `json:"audit_log_path"`

	// GitCloneTimeoutSec bounds each git subprocess invocation during
	// source provisioning.
	GitCloneTimeoutSec int `json:"git_clone_timeout_secs"`
	// GitAllowedDomains, when non-empty, restricts git source URLs to
	// hosts in this list.
	GitAllowedDomains []string `json:"git_allowed_domains"`

	// VerbTimeoutSec bounds each synthesized command's execution.
	VerbTimeoutSec int `json:"verb_timeout_secs"`
	// MockExecution runs the Command Synthesizer's mock tool paths
	// instead of invoking a container runner, for tests and local dev.
	MockExecution bool `json:"mock_execution"`
	// ImageTag selects the container image tag the synthesizer targets
	// when MockExecution is false.
	ImageTag string `json:"image_tag"`

	// DefaultActor/DefaultSession seed the audit trail's actor/session
	// fields when a request context carries neither.
	DefaultActor   string `json:"default_actor"`
	DefaultSession string `json:"default_session"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootDir:  "/var/lib/buildopd",
		PoolSize: runtime.NumCPU(),
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
		StoreBackend:       "bolt",
		GitCloneTimeoutSec: 300, //nolint:mnd
		VerbTimeoutSec:     1800,
		ImageTag:           "latest",
		DefaultActor:       "unknown",
	}
}

// StoreDir returns the directory persistent daemon state (the Operation
// Store and the Audit Log) lives under: state/ nested within the sandbox
// directory, not a sibling of it — there is one persisted-state root per
// project, not two disjoint ones.
func (c *Config) StoreDir() string {
	return filepath.Join(c.SandboxDir(), "state")
}

// ResolvedStorePath returns StorePath if set, else a backend-appropriate
// default under StoreDir().
func (c *Config) ResolvedStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	if c.StoreBackend == "json" {
		return filepath.Join(c.StoreDir(), "core-store.json")
	}
	return filepath.Join(c.StoreDir(), "core-store.db")
}

// ResolvedAuditLogPath returns AuditLogPath if set, else the default under
// StoreDir().
func (c *Config) ResolvedAuditLogPath() string {
	if c.AuditLogPath != "" {
		return c.AuditLogPath
	}
	return filepath.Join(c.StoreDir(), "audit-log.jsonl")
}

// SandboxDir returns the directory git source provisioning creates
// temporary clone sandboxes under.
func (c *Config) SandboxDir() string {
	return filepath.Join(c.RootDir, "agent-sandbox")
}
