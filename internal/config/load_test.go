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
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleYAML = `
logging:
  level: debug
  console: true
probe:
  timeout: 3s
  poll_delay: 10s
  out_of_stock_pattern: "We are out of inventory"
catalog:
  url_template: "https://shop.example/{size}/{color_name}?id={color}_{size}"
  colors:
    white: Cloud_White
    blue: Midnight_Blue
  sizes: ["32", "64"]
subscribers_file: ./subscribers.yaml
notify:
  channel: smtp
  smtp:
    host: smtp.example.com
    from: watcher@example.com
eventlog:
  path: ./events.json
  checkpoint_every: 5s
`

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Probe.Timeout != "3s" || cfg.Probe.PollDelay != "10s" {
		t.Fatalf("unexpected probe config: %+v", cfg.Probe)
	}
	if len(cfg.Catalog.Colors) != 2 || len(cfg.Catalog.Sizes) != 2 {
		t.Fatalf("unexpected catalog config: %+v", cfg.Catalog)
	}
	if cfg.Notify.SMTP.Host != "smtp.example.com" {
		t.Fatalf("unexpected smtp config: %+v", cfg.Notify.SMTP)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML+"\nbogus_section:\n  x: 1\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "bogus_section") {
		t.Fatalf("error should name the unknown key, got: %v", err)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no items",
			yaml: "subscribers_file: ./subs.yaml\neventlog:\n  path: ./e.json\n",
			want: "no items declared",
		},
		{
			name: "missing subscribers file",
			yaml: "catalog:\n  items:\n    - key: a\n      url: https://x\neventlog:\n  path: ./e.json\n",
			want: "subscribers_file",
		},
		{
			name: "item without url",
			yaml: "catalog:\n  items:\n    - key: a\nsubscribers_file: ./s.yaml\neventlog:\n  path: ./e.json\n",
			want: "url is required",
		},
		{
			name: "missing eventlog path",
			yaml: "catalog:\n  items:\n    - key: a\n      url: https://x\nsubscribers_file: ./s.yaml\n",
			want: "eventlog.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoadSubscribers(t *testing.T) {
	path := writeFile(t, "subscribers.yaml", `
a@x.com:
b@x.com:
  match:
    color: white
  interval: 1h
ops-chat:
  channel: telegram
  chat_id: 12345
  interval: 30m
`)

	subs, err := LoadSubscribers(path)
	if err != nil {
		t.Fatalf("LoadSubscribers: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 subscribers, got %d", len(subs))
	}
	if subs["a@x.com"] != nil {
		t.Fatalf("nil-valued entry should stay nil, got %+v", subs["a@x.com"])
	}
	b := subs["b@x.com"]
	if b == nil || b.Match["color"] != "white" || b.Interval != "1h" {
		t.Fatalf("unexpected entry for b@x.com: %+v", b)
	}
	tg := subs["ops-chat"]
	if tg == nil || tg.Channel != "telegram" || tg.ChatID != 12345 {
		t.Fatalf("unexpected telegram entry: %+v", tg)
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("probe.timeout", "5s")
	if err != nil || d != 5*time.Second {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("probe.timeout", "five"); err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if _, err := ParseDurationField("probe.timeout", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	d, err = ParseDurationOrDefault("probe.timeout", "", 7*time.Second)
	if err != nil || d != 7*time.Second {
		t.Fatalf("default not applied: (%v, %v)", d, err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STOCKWATCH_SMTP_PASSWORD", "hunter2")
	t.Setenv("STOCKWATCH_TELEGRAM_TOKEN", "tok")

	cfg := &Config{}
	cfg.ApplyEnv()
	if cfg.Notify.SMTP.Password != "hunter2" {
		t.Fatalf("smtp password not filled from env")
	}
	if cfg.Notify.Telegram.Token != "tok" {
		t.Fatalf("telegram token not filled from env")
	}

	cfg = &Config{}
	cfg.Notify.SMTP.Password = "explicit"
	cfg.ApplyEnv()
	if cfg.Notify.SMTP.Password != "explicit" {
		t.Fatal("explicit config value must win over env")
	}
}
