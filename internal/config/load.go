package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Load reads and strictly decodes the main config file (YAML or JSON).
// Unknown keys are rejected so typos surface at startup instead of being
// silently ignored.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := decodeStrict(jb, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadSubscribers reads the subscribers file: a map from subscriber
// address to constraints. A nil value is allowed and means "all items,
// no re-notify interval".
func LoadSubscribers(path string) (map[string]*SubscriberConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var subs map[string]*SubscriberConfig
	if err := decodeStrict(jb, &subs); err != nil {
		return nil, fmt.Errorf("subscribers %s: %w", path, err)
	}
	for addr := range subs {
		if strings.TrimSpace(addr) == "" {
			return nil, fmt.Errorf("subscribers %s: empty subscriber address", path)
		}
	}
	return subs, nil
}

func decodeStrict(jb []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated documents)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("trailing data")
		}
		return err
	}
	return nil
}

// Validate checks the parts of the config that must be right before
// anything starts. Per-component defaults are applied by the components
// themselves.
func (c *Config) Validate() error {
	if len(c.Catalog.Items) == 0 && (c.Catalog.URLTemplate == "" || len(c.Catalog.Colors) == 0 || len(c.Catalog.Sizes) == 0) {
		return fmt.Errorf("catalog: no items declared (need items or a url_template grid)")
	}
	if strings.TrimSpace(c.SubscribersFile) == "" {
		return fmt.Errorf("subscribers_file is required")
	}
	if strings.TrimSpace(c.EventLog.Path) == "" {
		return fmt.Errorf("eventlog.path is required")
	}
	for i, it := range c.Catalog.Items {
		if strings.TrimSpace(it.Key) == "" {
			return fmt.Errorf("catalog.items[%d]: key is required", i)
		}
		if strings.TrimSpace(it.URL) == "" {
			return fmt.Errorf("catalog.items[%d] (%s): url is required", i, it.Key)
		}
	}
	return nil
}

// ApplyEnv fills secrets that were omitted from the config file from the
// environment (possibly populated from a .env file by the caller).
func (c *Config) ApplyEnv() {
	if c.Notify.SMTP.Password == "" {
		c.Notify.SMTP.Password = os.Getenv("STOCKWATCH_SMTP_PASSWORD")
	}
	if c.Notify.Telegram.Token == "" {
		c.Notify.Telegram.Token = os.Getenv("STOCKWATCH_TELEGRAM_TOKEN")
	}
}

// coerceToJSONBytes converts YAML config to JSON bytes so the strict JSON
// decoder (DisallowUnknownFields) serves both formats.
//
// Returns (jsonBytes, format, err) where format is "json" or "yaml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
