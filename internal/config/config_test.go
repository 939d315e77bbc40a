package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateBackend != BackendFile || cfg.Clock != ClockSystem {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Tax4dBps != 5000 || cfg.Tax6dBps != 2500 {
		t.Fatalf("unexpected tax defaults %d/%d", cfg.Tax4dBps, cfg.Tax6dBps)
	}
	if cfg.RewardPool != "0x70997970C51812dc3A010C7d01b50e0d17dc79C8" {
		t.Fatalf("unexpected reward pool %s", cfg.RewardPool)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	cfgFile := filepath.Join(dir, "sushibar.yaml")
	content := "state-backend: leveldb\nstate-path: ./db\ntax-4d-bps: 6000\nlog-level: debug\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SUSHIBAR_TAX_6D_BPS", "1000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=warn"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateBackend != BackendLevelDB || cfg.StatePath != "./db" {
		t.Fatalf("file settings not applied: %+v", cfg)
	}
	if cfg.Tax4dBps != 6000 {
		t.Fatalf("tax-4d-bps = %d", cfg.Tax4dBps)
	}
	if cfg.Tax6dBps != 1000 {
		t.Fatalf("env override not applied: %d", cfg.Tax6dBps)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("flag override not applied: %s", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		StateBackend: BackendFile,
		StatePath:    "state.json",
		Clock:        ClockSystem,
		Deployer:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		RewardPool:   "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StateBackend = "redis" }},
		{"postgres without dsn", func(c *Config) { c.StateBackend = BackendPostgres }},
		{"chain clock without rpc", func(c *Config) { c.Clock = ClockChain }},
		{"tax above 100%", func(c *Config) { c.Tax4dBps = 10001 }},
		{"bad reward pool", func(c *Config) { c.RewardPool = "0x1234" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseAdvance(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "2d", want: 172800},
		{in: "36h", want: 129600},
		{in: "90s", want: 90},
		{in: "1h30m", want: 5400},
		{in: "2.5d", wantErr: true},
		{in: "213503982334601d", want: 213503982334601 * 86400},
		{in: "213503982334602d", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseAdvance(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %d want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAddress(t *testing.T) {
	got, err := ParseAddress(" 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8") {
		t.Fatalf("parsed %s", got.Hex())
	}
	if _, err := ParseAddress("nope"); err == nil {
		t.Fatalf("expected error")
	}
}
