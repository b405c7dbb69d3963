package slop

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultListen is the default TCP endpoint the gateway binds to.
	DefaultListen = ":5000"
	// DefaultListenProto controls the listener network when none is configured.
	DefaultListenProto = "tcp"
	// DefaultMetricsListen is the default metrics endpoint (Prometheus scrape).
	// Empty disables metrics unless explicitly configured.
	DefaultMetricsListen = ""
	// DefaultPprofListen is the default pprof debug listener (empty disables).
	DefaultPprofListen = ""
	// DefaultJSONMaxBytes bounds incoming JSON payloads.
	DefaultJSONMaxBytes = int64(1 << 20)
	// DefaultSweepInterval sets the tick frequency for expired-entry sweeps in
	// the memory store.
	DefaultSweepInterval = 1 * time.Minute
	// DefaultShutdownTimeout caps graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultModel is the model id reported when no model list is configured.
	DefaultModel = "slop-synth-1"
	// DefaultConfigFileName is the config file searched for when --config is
	// omitted.
	DefaultConfigFileName = "config.yaml"
)

// Config carries every tunable of the gateway. The zero value is not usable
// directly; Validate fills defaults and rejects inconsistent settings.
type Config struct {
	// Listen is the server bind address (for example ":5000").
	Listen string
	// ListenProto selects the listener network (for example "tcp" or "unix").
	ListenProto string
	// MetricsListen is the metrics endpoint bind address; empty disables
	// the Prometheus scrape listener.
	MetricsListen string
	// PprofListen is the pprof endpoint bind address; empty disables pprof.
	PprofListen string
	// EnableProfilingMetrics adds Go runtime metrics to the metrics endpoint.
	EnableProfilingMetrics bool
	// OTLPEndpoint enables OTel trace export when non-empty. The scheme picks
	// the exporter: grpc://, grpcs://, http:// or https://; a bare host:port
	// implies insecure gRPC.
	OTLPEndpoint string
	// HTTPTracing wraps every route in otelhttp spans. Only meaningful when
	// OTLPEndpoint is set.
	HTTPTracing bool
	// JSONMaxBytes caps incoming JSON payload size.
	JSONMaxBytes int64
	// SweepInterval controls how often expired memory entries are reconciled.
	// Zero disables the background sweeper; lazy expiry on access still holds.
	SweepInterval time.Duration
	// SweepIntervalSet reports whether SweepInterval was explicitly set by
	// caller/flags/env, allowing an explicit zero to disable sweeping.
	SweepIntervalSet bool
	// ShutdownTimeout caps the total graceful shutdown time.
	ShutdownTimeout time.Duration
	// Models lists the model ids reported by GET /models.
	Models []string
}

// Validate normalises the configuration in place, filling defaults and
// rejecting settings the server cannot honour.
func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ListenProto == "" {
		c.ListenProto = DefaultListenProto
	}
	switch c.ListenProto {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		return fmt.Errorf("config: unsupported listen proto %q", c.ListenProto)
	}
	if c.EnableProfilingMetrics && strings.TrimSpace(c.MetricsListen) == "" {
		return fmt.Errorf("config: profiling metrics require metrics-listen")
	}
	if c.JSONMaxBytes <= 0 {
		c.JSONMaxBytes = DefaultJSONMaxBytes
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("config: sweep interval must be >= 0")
	}
	if c.SweepInterval == 0 && !c.SweepIntervalSet {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: shutdown timeout must be >= 0")
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if len(c.Models) == 0 {
		c.Models = []string{DefaultModel}
	}
	for _, m := range c.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("config: model ids must not be blank")
		}
	}
	return nil
}
