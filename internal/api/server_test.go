package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"emberfall.gg/portcullis/internal/banlist"
	"emberfall.gg/portcullis/internal/firewall"
	"emberfall.gg/portcullis/internal/logging"
	"emberfall.gg/portcullis/internal/metrics"
	"emberfall.gg/portcullis/internal/services"
)

type stubPolicy struct {
	info firewall.Info
}

func (p stubPolicy) Info() firewall.Info { return p.info }

type stubBanlist struct {
	info banlist.Info
}

func (b stubBanlist) Info() banlist.Info { return b.info }

func testOptions() Options {
	return Options{
		Addr:    "127.0.0.1:0",
		Version: "1.2.3",
		Policies: []PolicyInfo{
			stubPolicy{info: firewall.Info{
				Name:      "whitelist",
				Chain:     "pc-wl",
				Protocols: []string{"tcp", "udp"},
				Ports:     []int{7777, 7778},
				Members:   []string{"9.9.9.9"},
			}},
			stubPolicy{info: firewall.Info{
				Name:      "blacklist",
				Chain:     "pc-bl",
				Protocols: []string{"tcp"},
				Ports:     []int{9000},
				Members:   []string{},
			}},
		},
		Banlist: stubBanlist{info: banlist.Info{
			Path:    "/var/lib/portcullis/bans.txt",
			Entries: 4,
			Running: true,
		}},
		Statuses: func() []services.ServiceStatus {
			return []services.ServiceStatus{
				{Name: "engine", Running: true},
				{Name: "listener", Running: true},
			}
		},
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := New(testOptions())
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var got StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != "1.2.3" {
		t.Errorf("version = %q", got.Version)
	}
	if len(got.Policies) != 2 {
		t.Fatalf("policies = %d, want 2", len(got.Policies))
	}
	if got.Policies[0].Name != "whitelist" || got.Policies[0].Chain != "pc-wl" {
		t.Errorf("first policy = %+v", got.Policies[0])
	}
	if got.Policies[0].Members[0] != "9.9.9.9" {
		t.Errorf("whitelist members = %v", got.Policies[0].Members)
	}
	if got.Banlist == nil || got.Banlist.Entries != 4 {
		t.Errorf("banlist = %+v", got.Banlist)
	}
	if len(got.Services) != 2 {
		t.Errorf("services = %+v", got.Services)
	}
}

func TestStatusWithoutBanlist(t *testing.T) {
	opts := testOptions()
	opts.Banlist = nil
	s := New(opts)
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()

	var got StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Banlist != nil {
		t.Errorf("banlist = %+v, want omitted", got.Banlist)
	}
}

func TestLogsEndpoint(t *testing.T) {
	// The buffer is process-global, so filter on a component name no
	// other test logs under.
	const component = "api-logs-test"
	for i := 0; i < 3; i++ {
		logging.Recent().Add(logging.Entry{
			Timestamp: time.Now(),
			Level:     "info",
			Component: component,
			Message:   "synthetic entry",
		})
	}

	s := New(testOptions())
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/logs?component=" + component + "&limit=2")
	if err != nil {
		t.Fatalf("GET /api/logs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(got.Entries))
	}
	for _, e := range got.Entries {
		if e.Component != component {
			t.Errorf("entry component = %q", e.Component)
		}
	}
}

func TestLogsEndpointRejectsBadLimit(t *testing.T) {
	s := New(testOptions())
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	for _, limit := range []string{"zero", "-1", "0"} {
		resp, err := http.Get(ts.URL + "/api/logs?limit=" + limit)
		if err != nil {
			t.Fatalf("GET /api/logs: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", limit, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Get()

	s := New(testOptions())
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "portcullis_uptime_seconds") {
		t.Error("exposition is missing the daemon gauges")
	}
}

func TestServerLifecycle(t *testing.T) {
	s := New(testOptions())
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET while running: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if !s.Status().Running {
		t.Error("Status not running after Start")
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.Status().Running {
		t.Error("Status still running after Stop")
	}
	if _, err := http.Get("http://" + s.Addr() + "/api/status"); err == nil {
		t.Error("GET succeeded after Stop")
	}
}
