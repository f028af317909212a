package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelWarn, Output: &buf})

	l.Debug("poll tick")
	l.Info("banned", "ip", "198.51.100.7")
	if buf.Len() > 0 {
		t.Fatalf("records below warn were emitted: %q", buf.String())
	}

	l.Warn("ban file unavailable")
	l.Error("backend call failed")
	out := buf.String()
	for _, want := range []string{"ban file unavailable", "backend call failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q in %q", want, out)
		}
	}
}

func TestZeroOptionsLogsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})

	l.Debug("hidden")
	if buf.Len() > 0 {
		t.Errorf("debug emitted with zero-value options: %q", buf.String())
	}
	l.Info("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("info suppressed with zero-value options: %q", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: LevelDebug, Output: &buf})

	l.WithComponent("engine").Info("whitelisted", "ip", "203.0.113.9")

	line := buf.String()
	for _, want := range []string{"portcullis[", "[info]", "engine: whitelisted", "ip=203.0.113.9"} {
		if !strings.Contains(line, want) {
			t.Errorf("line missing %q in %q", want, line)
		}
	}
}

func TestConsoleFormatInstanceName(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, ProcessName: "portcullis-2"})

	l.Info("up")

	if !strings.Contains(buf.String(), "portcullis-2[") {
		t.Errorf("instance name not used as prefix: %q", buf.String())
	}
}

func TestConsoleQuoting(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})

	l.Info("call failed", "argv", "iptables -C INPUT", "attempt", 3)

	line := buf.String()
	if !strings.Contains(line, `argv="iptables -C INPUT"`) {
		t.Errorf("value with spaces not quoted: %q", line)
	}
	if !strings.Contains(line, "attempt=3") {
		t.Errorf("plain value should stay unquoted: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetDefaultRedirectsPackageFuncs(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}

	var buf bytes.Buffer
	SetDefault(New(Options{Output: &buf}))

	Info("reconcile pass")
	Warn("slow subscriber")
	Error("frame too large")
	WithComponent("listener").Info("accepted")

	out := buf.String()
	for _, want := range []string{"reconcile pass", "slow subscriber", "frame too large", "listener: accepted"} {
		if !strings.Contains(out, want) {
			t.Errorf("package funcs missed %q in %q", want, out)
		}
	}
}

func TestRingBufferEviction(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		rb.Add(Entry{Component: "banlist", Message: "banned " + ip})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count() = %d, want capacity 3", rb.Count())
	}
	all := rb.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll() returned %d entries", len(all))
	}
	if all[0].Message != "banned 10.0.0.2" || all[2].Message != "banned 10.0.0.4" {
		t.Errorf("eviction order wrong: first %q last %q", all[0].Message, all[2].Message)
	}
}

func TestRingBufferGetLast(t *testing.T) {
	rb := NewRingBuffer(8)
	for _, msg := range []string{"reset", "ban a", "ban b"} {
		rb.Add(Entry{Message: msg})
	}

	tests := []struct {
		n     int
		count int
		first string
	}{
		{2, 2, "ban a"},
		{0, 0, ""},
		{10, 3, "reset"},
	}
	for _, tt := range tests {
		got := rb.GetLast(tt.n)
		if len(got) != tt.count {
			t.Errorf("GetLast(%d) returned %d entries, want %d", tt.n, len(got), tt.count)
			continue
		}
		if tt.count > 0 && got[0].Message != tt.first {
			t.Errorf("GetLast(%d)[0] = %q, want %q", tt.n, got[0].Message, tt.first)
		}
	}
}

func TestRingBufferGetByComponent(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Add(Entry{Component: "engine", Message: "m1"})
	rb.Add(Entry{Component: "banlist", Message: "m2"})
	rb.Add(Entry{Component: "engine", Message: "m3"})

	got := rb.GetByComponent("engine", 0)
	if len(got) != 2 || got[0].Message != "m1" || got[1].Message != "m3" {
		t.Errorf("GetByComponent(engine) = %+v", got)
	}
	if len(rb.GetByComponent("engine", 1)) != 1 {
		t.Error("limit was not honored")
	}

	rb.Clear()
	if rb.Count() != 0 {
		t.Errorf("Count() after Clear = %d", rb.Count())
	}
}

func TestRecentBufferSeesConsoleRecords(t *testing.T) {
	Recent().Clear()

	var buf bytes.Buffer
	l := New(Options{Output: &buf})
	l.WithComponent("banlist").Info("ban file changed", "path", "/tmp/banlist.txt")

	entries := Recent().GetByComponent("banlist", 0)
	if len(entries) == 0 {
		t.Fatal("console record did not reach the recent buffer")
	}
	last := entries[len(entries)-1]
	if last.Message != "ban file changed" {
		t.Errorf("buffered message = %q", last.Message)
	}
	if last.Extra["path"] != "/tmp/banlist.txt" {
		t.Errorf("buffered extras = %v", last.Extra)
	}
}

func TestRecentBufferSeesJSONRecords(t *testing.T) {
	Recent().Clear()

	var buf bytes.Buffer
	l := New(Options{Output: &buf, JSON: true})
	l.WithComponent("engine").Info("whitelisted", "ip", "203.0.113.9")

	entries := Recent().GetByComponent("engine", 0)
	if len(entries) != 1 {
		t.Fatalf("JSON record did not reach the recent buffer, got %d entries", len(entries))
	}
	if entries[0].Extra["ip"] != "203.0.113.9" {
		t.Errorf("buffered extras = %v", entries[0].Extra)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, JSON: true})

	l.WithComponent("api").Info("listening", "addr", "127.0.0.1:9810")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not one JSON object: %v", err)
	}
	if rec["msg"] != "listening" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "api" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["addr"] != "127.0.0.1:9810" {
		t.Errorf("addr = %v", rec["addr"])
	}
	if rec["level"] != "INFO" {
		t.Errorf("level = %v", rec["level"])
	}
}
