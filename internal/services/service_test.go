package services

import (
	"context"
	"fmt"
	"testing"
)

type recorded struct {
	name    string
	log     *[]string
	failOn  bool
	running bool
}

func (r *recorded) Name() string { return r.name }

func (r *recorded) Start(ctx context.Context) error {
	if r.failOn {
		return fmt.Errorf("%s refused", r.name)
	}
	*r.log = append(*r.log, "start "+r.name)
	r.running = true
	return nil
}

func (r *recorded) Stop(ctx context.Context) error {
	*r.log = append(*r.log, "stop "+r.name)
	r.running = false
	return nil
}

func (r *recorded) Status() ServiceStatus {
	return ServiceStatus{Name: r.name, Running: r.running}
}

func TestGroupOrdering(t *testing.T) {
	var log []string
	g := NewGroup()
	g.Add(&recorded{name: "a", log: &log}, &recorded{name: "b", log: &log}, &recorded{name: "c", log: &log})

	ctx := context.Background()
	if err := g.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	g.StopAll(ctx)

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestGroupStartFailureUnwinds(t *testing.T) {
	var log []string
	g := NewGroup()
	g.Add(&recorded{name: "a", log: &log})
	g.Add(&recorded{name: "b", log: &log, failOn: true})
	g.Add(&recorded{name: "c", log: &log})

	if err := g.StartAll(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}

	want := []string{"start a", "stop a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestGroupIgnoresNil(t *testing.T) {
	var log []string
	g := NewGroup()
	g.Add(nil, &recorded{name: "a", log: &log}, nil)

	if err := g.StartAll(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := g.Statuses(); len(got) != 1 || got[0].Name != "a" || !got[0].Running {
		t.Errorf("statuses = %v", got)
	}
}
