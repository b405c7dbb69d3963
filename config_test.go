package slop

import (
	"testing"
	"time"
)

func TestConfigValidateFillsDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Fatalf("Listen = %q, want %q", cfg.Listen, DefaultListen)
	}
	if cfg.ListenProto != DefaultListenProto {
		t.Fatalf("ListenProto = %q, want %q", cfg.ListenProto, DefaultListenProto)
	}
	if cfg.JSONMaxBytes != DefaultJSONMaxBytes {
		t.Fatalf("JSONMaxBytes = %d, want %d", cfg.JSONMaxBytes, DefaultJSONMaxBytes)
	}
	if cfg.SweepInterval != DefaultSweepInterval {
		t.Fatalf("SweepInterval = %v, want %v", cfg.SweepInterval, DefaultSweepInterval)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if len(cfg.Models) != 1 || cfg.Models[0] != DefaultModel {
		t.Fatalf("Models = %v, want [%s]", cfg.Models, DefaultModel)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "bad proto", cfg: Config{ListenProto: "udp"}},
		{name: "profiling without metrics", cfg: Config{EnableProfilingMetrics: true}},
		{name: "negative sweep", cfg: Config{SweepInterval: -time.Second}},
		{name: "negative shutdown", cfg: Config{ShutdownTimeout: -time.Second}},
		{name: "blank model", cfg: Config{Models: []string{"ok", " "}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %+v", tc.cfg)
			}
		})
	}
}

func TestConfigExplicitZeroSweepDisablesSweeper(t *testing.T) {
	cfg := Config{SweepIntervalSet: true}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("explicit zero sweep interval was overridden to %v", cfg.SweepInterval)
	}
}
