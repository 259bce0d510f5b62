package bind

import (
	"errors"
	"testing"
	"time"

	"github.com/rbaliyan/flatwire"
)

type serverConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
	Tags    []string      `mapstructure:"tags"`
	TLS     tlsConfig     `mapstructure:"tls"`
}

type tlsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cert    string `mapstructure:"cert"`
}

func TestBinder_Bind(t *testing.T) {
	decoded := map[string]any{
		"host":    "localhost",
		"port":    float64(8080),
		"timeout": "30s",
		"tags":    []any{"a", "b"},
		"tls": map[string]any{
			"enabled": true,
			"cert":    "/etc/cert.pem",
		},
	}

	var cfg serverConfig
	if err := New().Bind(decoded, &cfg); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if cfg.Host != "localhost" || cfg.Port != 8080 {
		t.Errorf("Got %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout: got %v, want 30s", cfg.Timeout)
	}
	if len(cfg.Tags) != 2 || cfg.Tags[0] != "a" {
		t.Errorf("Tags: %v", cfg.Tags)
	}
	if !cfg.TLS.Enabled || cfg.TLS.Cert != "/etc/cert.pem" {
		t.Errorf("TLS: %+v", cfg.TLS)
	}
}

func TestBinder_Unmarshal(t *testing.T) {
	data, err := flatwire.Marshal(map[string]any{
		"host": "example.com",
		"port": 443,
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var cfg serverConfig
	if err := New().Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if cfg.Host != "example.com" || cfg.Port != 443 {
		t.Errorf("Got %+v", cfg)
	}
}

func TestBinder_SharedReferencesBindAsCopies(t *testing.T) {
	shared := []any{"x"}
	data, err := flatwire.Marshal(map[string]any{
		"tags": shared,
		"host": "h",
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var cfg serverConfig
	if err := New().Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(cfg.Tags) != 1 || cfg.Tags[0] != "x" {
		t.Errorf("Tags: %v", cfg.Tags)
	}
}

func TestBinder_CycleRejected(t *testing.T) {
	cyclic := map[string]any{"host": "h"}
	cyclic["self"] = cyclic

	var cfg serverConfig
	err := New().Bind(cyclic, &cfg)
	if !errors.Is(err, ErrCyclicValue) {
		t.Errorf("Expected ErrCyclicValue, got: %v", err)
	}
	if cfg.Host != "" {
		t.Error("Target written despite cycle rejection")
	}
}

func TestBinder_Strict(t *testing.T) {
	decoded := map[string]any{
		"host":    "h",
		"unknown": "field",
	}

	var cfg serverConfig
	if err := New().Bind(decoded, &cfg); err != nil {
		t.Fatalf("Loose bind failed: %v", err)
	}

	err := New(WithStrict()).Bind(decoded, &cfg)
	if err == nil {
		t.Error("Strict bind accepted an unknown field")
	}
	var be *BindError
	if !errors.As(err, &be) {
		t.Errorf("Expected BindError, got: %T", err)
	}
}

func TestBinder_CustomTag(t *testing.T) {
	type cfg struct {
		Name string `conf:"name"`
	}

	var c cfg
	if err := New(WithTagName("conf")).Bind(map[string]any{"name": "x"}, &c); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if c.Name != "x" {
		t.Errorf("Got %+v", c)
	}
}

func TestBinder_Containers(t *testing.T) {
	type cfg struct {
		Values []any          `mapstructure:"values"`
		Labels map[string]any `mapstructure:"labels"`
	}

	set := flatwire.NewSet("a", "b")
	labels := flatwire.NewMap()
	labels.Set("env", "prod")

	decoded := map[string]any{
		"values": set,
		"labels": labels,
	}

	var c cfg
	if err := New().Bind(decoded, &c); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if len(c.Values) != 2 || c.Values[0] != "a" {
		t.Errorf("Values: %v", c.Values)
	}
	if c.Labels["env"] != "prod" {
		t.Errorf("Labels: %v", c.Labels)
	}
}

func TestBinder_Validator(t *testing.T) {
	rejectAll := ValidatorFunc(func(any) error {
		return &ValidationError{Reason: "rejected"}
	})

	var cfg serverConfig
	err := New(WithValidator(rejectAll)).Bind(map[string]any{"host": "h"}, &cfg)
	if !IsValidationFailed(err) {
		t.Errorf("Expected validation failure, got: %v", err)
	}
	if cfg.Host != "" {
		t.Error("Target written despite validation failure")
	}
}

func TestBinder_JSONSchema(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {
			"host": {"type": "string"},
			"port": {"type": "integer", "minimum": 1, "maximum": 65535}
		},
		"required": ["host"]
	}`)

	b := New(WithJSONSchema(schema))

	var cfg serverConfig
	if err := b.Bind(map[string]any{"host": "h", "port": float64(80)}, &cfg); err != nil {
		t.Fatalf("Valid graph rejected: %v", err)
	}

	err := b.Bind(map[string]any{"port": float64(80)}, &cfg)
	if !IsValidationFailed(err) {
		t.Errorf("Expected validation failure for missing host, got: %v", err)
	}

	err = b.Bind(map[string]any{"host": "h", "port": float64(99999)}, &cfg)
	if !IsValidationFailed(err) {
		t.Errorf("Expected validation failure for port range, got: %v", err)
	}
}

func TestBinder_InvalidSchema(t *testing.T) {
	b := New(WithJSONSchema([]byte(`{"type": 42}`)))

	var cfg serverConfig
	err := b.Bind(map[string]any{"host": "h"}, &cfg)
	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("Expected ErrInvalidSchema, got: %v", err)
	}
}

func TestCheckCycles(t *testing.T) {
	t.Run("acyclic shared", func(t *testing.T) {
		shared := []any{"x"}
		root := map[string]any{"a": shared, "b": shared}
		if err := checkCycles(root); err != nil {
			t.Errorf("Shared reference misreported as cycle: %v", err)
		}
	})

	t.Run("slice cycle", func(t *testing.T) {
		root := make([]any, 1)
		root[0] = root
		if err := checkCycles(root); !errors.Is(err, ErrCyclicValue) {
			t.Errorf("Expected ErrCyclicValue, got: %v", err)
		}
	})

	t.Run("set cycle", func(t *testing.T) {
		set := flatwire.NewSet()
		set.Add(set)
		if err := checkCycles(set); !errors.Is(err, ErrCyclicValue) {
			t.Errorf("Expected ErrCyclicValue, got: %v", err)
		}
	})

	t.Run("map value cycle", func(t *testing.T) {
		m := flatwire.NewMap()
		m.Set("self", m)
		if err := checkCycles(m); !errors.Is(err, ErrCyclicValue) {
			t.Errorf("Expected ErrCyclicValue, got: %v", err)
		}
	})
}
