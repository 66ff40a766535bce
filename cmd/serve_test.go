package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facesync/internal/config"
)

func newServeFlagsCmd() *cobra.Command {
	c := &cobra.Command{Use: "serve"}
	c.Flags().Int("port", 0, "")
	c.Flags().String("host", "", "")
	c.Flags().Duration("interval", 0, "")
	return c
}

func TestApplyServeFlags_OnlyChangedFlagsOverride(t *testing.T) {
	c := newServeFlagsCmd()
	if err := c.Flags().Parse([]string{"--port", "9090", "--interval", "15m"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := &config.Config{
		Web:  config.WebConfig{Host: "127.0.0.1", Port: 8080},
		Sync: config.SyncConfig{Interval: time.Hour},
	}
	applyServeFlags(c, cfg)

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("host should keep env value, got %q", cfg.Web.Host)
	}
	if cfg.Sync.Interval != 15*time.Minute {
		t.Errorf("expected 15m interval, got %v", cfg.Sync.Interval)
	}
}

func TestApplyServeFlags_ZeroIntervalDisables(t *testing.T) {
	c := newServeFlagsCmd()
	if err := c.Flags().Parse([]string{"--interval", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := &config.Config{Sync: config.SyncConfig{Interval: time.Hour}}
	applyServeFlags(c, cfg)

	if cfg.Sync.Interval != 0 {
		t.Errorf("expected interval disabled, got %v", cfg.Sync.Interval)
	}
}
