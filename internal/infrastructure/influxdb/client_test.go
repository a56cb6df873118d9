package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sportsbar-av/internal/infrastructure/config"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line-protocol bodies posted to
// /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu       sync.Mutex
	lines    []string
	writeErr bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping", "/health":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			fail := f.writeErr
			if !fail {
				f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
			}
			f.mu.Unlock()
			if fail {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"code":"invalid","message":"bad point"}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) waitForLines(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.lines) >= n {
			lines := append([]string(nil), f.lines...)
			f.mu.Unlock()
			return lines
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines", n)
	return nil
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "sportsbar",
		Bucket:        "av",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false
	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := influxdb.Connect(testConfig(url)); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWrites(t *testing.T) {
	fake := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(fake.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	at := time.Unix(1700000000, 0)
	client.WriteMeter("ZoneMeter_0", -18.5, at)
	client.WriteControlResult(influxdb.ControlPoint{
		DeviceID:     "bar-left",
		Command:      "power_on",
		Method:       "FALLBACK",
		Success:      true,
		FallbackUsed: true,
		Duration:     2500 * time.Millisecond,
		At:           at,
	})
	client.WriteRoute(1, 3, true, at)
	client.WriteBridgeState("audio", "connected", at)
	client.Flush()

	lines := fake.waitForLines(t, 4)
	want := []string{
		"audio_meter,param=ZoneMeter_0 value=-18.5 1700000000000000000",
		"tv_control,command=power_on,device_id=bar-left,method=FALLBACK duration_ms=2500i,fallback_used=true,success=true 1700000000000000000",
		"matrix_route input=1i,output=3i,success=true 1700000000000000000",
		`bridge_state,bridge=audio state="connected" 1700000000000000000`,
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q\n want %q", i, lines[i], w)
		}
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	fake := newFakeInflux(t)
	fake.writeErr = true

	client, err := influxdb.Connect(testConfig(fake.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	errs := make(chan error, 4)
	client.SetOnError(func(err error) { errs <- err })

	client.WriteMeter("ZoneMeter_0", 1, time.Now())
	client.Flush()

	select {
	case err := <-errs:
		if !errors.Is(err, influxdb.ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write error not delivered")
	}
}

func TestClosedClient(t *testing.T) {
	fake := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(fake.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	_ = client.Close()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	client.WriteMeter("ZoneMeter_0", 1, time.Now())
	client.Flush()
}
