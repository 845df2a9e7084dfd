package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/depthcore/internal/api"
	"github.com/nerrad567/depthcore/internal/capture"
	"github.com/nerrad567/depthcore/internal/infrastructure/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes a sim-driver config with MQTT and InfluxDB disabled.
func writeConfig(t *testing.T, port int, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
site:
  id: test-site
database:
  path: %q
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
api:
  host: 127.0.0.1
  port: %d
logging:
  level: error
  format: text
  output: stderr
capture:
  driver: sim
  discovery_timeout: 500ms
  tick_interval: 10ms
  sim:
    serials: ["SIM-1", "SIM-2"]
    boot_delay: 10ms
    settle_delay: 10ms
sensors:
  - serial: SIM-1
    name: bench
%s`, filepath.Join(dir, "depthcore.db"), port, extra)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

func TestRun_UnknownDriver(t *testing.T) {
	path := writeConfig(t, freePort(t), "")
	t.Setenv("DEPTHCORE_CAPTURE_DRIVER", "usb")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, path); !errors.Is(err, capture.ErrUnknownDriver) {
		t.Fatalf("run() error = %v, want ErrUnknownDriver", err)
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	path := writeConfig(t, port, "    auto_start: true\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, path) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:noctx // test
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("health endpoint not ready: %v", err)
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() returned early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestOpenLayer(t *testing.T) {
	layer, err := openLayer(config.CaptureConfig{Driver: "sim", Sim: config.SimConfig{Serials: []string{"SIM-1"}}})
	if err != nil {
		t.Fatalf("openLayer(sim) error = %v", err)
	}
	if layer == nil {
		t.Fatal("openLayer(sim) returned nil layer")
	}

	if _, err := openLayer(config.CaptureConfig{Driver: "usb"}); !errors.Is(err, capture.ErrUnknownDriver) {
		t.Errorf("openLayer(usb) error = %v, want ErrUnknownDriver", err)
	}
}

func TestRenderSensorTable(t *testing.T) {
	var buf bytes.Buffer
	renderSensorTable(&buf, "sim", []string{"SIM-1", "SIM-2"})
	out := buf.String()
	for _, want := range []string{"INDEX", "SERIAL", "SIM-1", "SIM-2", "2 sensor(s), driver sim"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	renderSensorTable(&buf, "sim", nil)
	if !strings.Contains(buf.String(), "no sensors detected") {
		t.Errorf("empty table output = %q", buf.String())
	}
}

func TestListCommand(t *testing.T) {
	path := writeConfig(t, freePort(t), "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "list"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("list error = %v", err)
	}
	for _, want := range []string{"SIM-1", "SIM-2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("list output missing %q:\n%s", want, out.String())
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "depthcore "+version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestTokenCommand(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"issues token", testSecret, false},
		{"no secret", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extra := ""
			if tt.secret != "" {
				extra = fmt.Sprintf("security:\n  jwt:\n    secret: %q\n", tt.secret)
			}
			path := writeConfig(t, freePort(t), extra)

			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"-c", path, "token", "--subject", "ci", "--ttl", "1h"})
			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("token error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			claims, err := api.ParseToken(strings.TrimSpace(out.String()), tt.secret)
			if err != nil {
				t.Fatalf("ParseToken() error = %v", err)
			}
			if claims.Subject != "ci" {
				t.Errorf("Subject = %q, want %q", claims.Subject, "ci")
			}
		})
	}
}
