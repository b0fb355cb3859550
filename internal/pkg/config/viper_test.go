package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testYAML = `
app:
  name: otpgate
modules:
  auth:
    otp_ttl_seconds: 300
messaging:
  drivers: "memory, nats,,kafka"
feature:
  enabled: true
`

func TestViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(testYAML))
	if err != nil {
		t.Fatalf("NewViperFromBytes() error = %v", err)
	}

	if got := cfg.GetString("app.name"); got != "otpgate" {
		t.Fatalf("GetString() = %q", got)
	}
	if got := cfg.GetSecond("modules.auth.otp_ttl_seconds"); got != 300*time.Second {
		t.Fatalf("GetSecond() = %s", got)
	}
	if !cfg.GetBool("feature.enabled") {
		t.Fatal("GetBool() = false")
	}

	arr := cfg.GetArray("messaging.drivers")
	want := []string{"memory", "nats", "kafka"}
	if len(arr) != len(want) {
		t.Fatalf("GetArray() = %v, want %v", arr, want)
	}
	for i := range want {
		if arr[i] != want[i] {
			t.Fatalf("GetArray()[%d] = %q, want %q", i, arr[i], want[i])
		}
	}
}

func TestViperEnvOverride(t *testing.T) {
	t.Setenv("OTPGATE_APP_NAME", "from-env")

	cfg, err := NewViperFromBytes("yaml", []byte(testYAML))
	if err != nil {
		t.Fatalf("NewViperFromBytes() error = %v", err)
	}

	if got := cfg.GetString("app.name"); got != "from-env" {
		t.Fatalf("GetString() = %q, want env override", got)
	}
}

func TestViperFromBytesRequiresType(t *testing.T) {
	if _, err := NewViperFromBytes(" ", []byte(testYAML)); err == nil {
		t.Fatal("expected error for empty config type")
	}
}

func TestNewViper(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads file", func(t *testing.T) {
		file := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(file, []byte(testYAML), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := NewViper(file)
		if err != nil {
			t.Fatalf("NewViper() error = %v", err)
		}
		if got := cfg.GetString("app.name"); got != "otpgate" {
			t.Fatalf("GetString() = %q", got)
		}
	})

	t.Run("missing file falls back to environment", func(t *testing.T) {
		t.Setenv("OTPGATE_DATABASE_DRIVER", "sqlite")

		cfg, err := NewViper(filepath.Join(dir, "absent.yaml"))
		if err != nil {
			t.Fatalf("NewViper() error = %v", err)
		}
		if got := cfg.GetString("database.driver"); got != "sqlite" {
			t.Fatalf("GetString() = %q, want env value", got)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		file := filepath.Join(dir, "broken.yaml")
		if err := os.WriteFile(file, []byte("app: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := NewViper(file); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
