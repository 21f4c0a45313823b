package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Stream: StreamConfig{ID: "m1", IntervalMs: 65, BatchSize: 3},
		Source: SourceConfig{Mode: "synthetic", Seed: 42},
		Persist: PersistConfig{
			Mode:               "local",
			Root:               "/var/lib/candlepipe",
			FlushInterval:      5 * time.Second,
			SegmentTargetBytes: 16384,
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// go test -v --run TestValidateAccepts
func TestValidateAccepts(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg = validConfig()
	cfg.Persist = PersistConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled persistence rejected: %v", err)
	}

	cfg = validConfig()
	cfg.Source = SourceConfig{Mode: "replay", ReplayPath: "/data/history.csv"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("replay config rejected: %v", err)
	}
}

// go test -v --run TestValidateRejects
func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty stream id":        func(c *Config) { c.Stream.ID = "" },
		"zero tick interval":     func(c *Config) { c.Stream.IntervalMs = 0 },
		"zero batch size":        func(c *Config) { c.Stream.BatchSize = 0 },
		"unknown source mode":    func(c *Config) { c.Source.Mode = "exchange" },
		"replay without path":    func(c *Config) { c.Source.Mode = "replay"; c.Source.ReplayPath = "" },
		"unknown persist mode":   func(c *Config) { c.Persist.Mode = "s3" },
		"local without root":     func(c *Config) { c.Persist.Root = "" },
		"zero flush interval":    func(c *Config) { c.Persist.FlushInterval = 0 },
		"zero segment target":    func(c *Config) { c.Persist.SegmentTargetBytes = 0 },
		"archive without a host": func(c *Config) { c.Persist.Archive = true },
	}

	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", name)
		}
	}
}
