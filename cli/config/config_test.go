package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `server:
  url: http://localhost:8000
  timeout: 30s

poll:
  interval: 3s

notify:
  url: redis://localhost:6379/0
  channel: teller:chat_updated

cache:
  dir: /var/cache/teller

defaults:
  strategy: Conservative
  target_apy: 12.5
  max_drawdown: 25
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "server.url", cfg.Server.URL, "http://localhost:8000")
	if cfg.Server.Timeout.Duration != 30*time.Second {
		t.Errorf("expected server.timeout=30s, got %v", cfg.Server.Timeout.Duration)
	}

	if cfg.Poll.Interval.Duration != 3*time.Second {
		t.Errorf("expected poll.interval=3s, got %v", cfg.Poll.Interval.Duration)
	}

	assertEqual(t, "notify.url", cfg.Notify.URL, "redis://localhost:6379/0")
	assertEqual(t, "notify.channel", cfg.Notify.Channel, "teller:chat_updated")

	assertEqual(t, "cache.dir", cfg.Cache.Dir, "/var/cache/teller")

	assertEqual(t, "defaults.strategy", cfg.Defaults.Strategy, "Conservative")
	if cfg.Defaults.TargetAPY == nil || *cfg.Defaults.TargetAPY != 12.5 {
		t.Error("expected defaults.target_apy=12.5")
	}
	if cfg.Defaults.MaxDrawdown == nil || *cfg.Defaults.MaxDrawdown != 25 {
		t.Error("expected defaults.max_drawdown=25")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.URL != "" {
		t.Errorf("expected empty server.url, got %q", cfg.Server.URL)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/teller.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SERVER_URL", "http://advisor.internal:8000")

	yaml := "server:\n  url: ${TEST_SERVER_URL}\n"
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "server.url", cfg.Server.URL, "http://advisor.internal:8000")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `server:
  url: http://localhost:8000
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `poll:
  interval: 3s
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.Server.URL != "" {
		t.Errorf("expected empty server.url, got %q", cfg.Server.URL)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
	if cfg.Server.URL != "" {
		t.Errorf("expected empty server.url, got %q", cfg.Server.URL)
	}
}

func TestLoad_TargetAPYZeroDistinctFromNil(t *testing.T) {
	// target_apy: 0 should parse as *float64(0), not nil.
	yaml := `defaults:
  target_apy: 0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Defaults.TargetAPY == nil {
		t.Fatal("expected target_apy to be non-nil (*float64(0)), got nil")
	}
	if *cfg.Defaults.TargetAPY != 0 {
		t.Errorf("expected target_apy=0, got %v", *cfg.Defaults.TargetAPY)
	}
}

func TestLoad_TargetAPYOmittedIsNil(t *testing.T) {
	yaml := `defaults:
  strategy: Passive
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Defaults.TargetAPY != nil {
		t.Errorf("expected target_apy to be nil, got %v", *cfg.Defaults.TargetAPY)
	}
}

func TestLoad_UnknownStrategyRejected(t *testing.T) {
	yaml := `defaults:
  strategy: YOLO
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
	if !strings.Contains(err.Error(), "YOLO") {
		t.Errorf("error should mention the strategy, got: %v", err)
	}
}

func TestLoad_OutOfRangeDefaultsRejected(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"target_apy too high", "defaults:\n  target_apy: 500\n"},
		{"target_apy negative", "defaults:\n  target_apy: -1\n"},
		{"max_drawdown too high", "defaults:\n  max_drawdown: 150\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestDuration_InvalidFormat(t *testing.T) {
	yaml := `server:
  timeout: not-a-duration
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error should mention invalid duration, got: %v", err)
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	yaml := `server:
  url: http://localhost:8000
  timeout: ""
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Timeout.Duration != 0 {
		t.Errorf("expected zero duration, got %v", cfg.Server.Timeout.Duration)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	yaml := `poll:
  interval: 45s
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Poll.Interval.Duration != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.Poll.Interval.Duration)
	}
}

func TestLoad_NotifyChannelOmitted(t *testing.T) {
	yaml := `notify:
  url: redis://localhost:6379/0
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "notify.url", cfg.Notify.URL, "redis://localhost:6379/0")
	assertEqual(t, "notify.channel", cfg.Notify.Channel, "")
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "teller.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
