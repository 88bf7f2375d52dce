package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  console: true
storage:
  path: ./tracker.db
monitor:
  check_interval: 30m
fetch:
  mode: static
  rate_per_minute: 10
telegram:
  enabled: false
http:
  addr: 127.0.0.1:9090
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Storage.Path != "./tracker.db" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
	if d := DurationOr(cfg.Monitor.CheckInterval, time.Hour); d != 30*time.Minute {
		t.Errorf("check interval = %v", d)
	}
	if cfg.Fetch.Mode != "static" || cfg.Fetch.RatePerMinute != 10 {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9090" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "logging": {"level": "info", "console": true},
  "storage": {"path": "/var/lib/tracker/tracker.db"},
  "monitor": {},
  "fetch": {},
  "telegram": {"enabled": false},
  "http": {}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Path != "/var/lib/tracker/tracker.db" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.yaml", `
storage:
  path: ./tracker.db
somewhere:
  else: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing storage path",
			yaml: `{}`,
			want: "storage.path",
		},
		{
			name: "telegram without token",
			yaml: "storage: {path: ./t.db}\ntelegram: {enabled: true, chat_id: 1}",
			want: "telegram.token",
		},
		{
			name: "telegram without chat id",
			yaml: "storage: {path: ./t.db}\ntelegram: {enabled: true, token: abc}",
			want: "telegram.chat_id",
		},
		{
			name: "bad fetch mode",
			yaml: "storage: {path: ./t.db}\nfetch: {mode: carrier-pigeon}",
			want: "fetch.mode",
		},
		{
			name: "bad duration",
			yaml: "storage: {path: ./t.db}\nmonitor: {check_interval: often}",
			want: "monitor.check_interval",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", c.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}
