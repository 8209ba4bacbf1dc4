package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/monitor"
)

type triggerRecorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *triggerRecorder) trigger(_ context.Context, projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, projectID)
}

func (r *triggerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func request(expr, projectID string) monitor.ScheduleRequest {
	return monitor.ScheduleRequest{
		Name:           "health-" + projectID,
		CronExpression: expr,
		Metadata:       map[string]string{monitor.MetaProjectID: projectID},
	}
}

func TestCreateAndDelete(t *testing.T) {
	rec := &triggerRecorder{}
	s := New(rec.trigger)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, request("*/30 * * * *", "p1"))
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	if !s.fire(id) {
		t.Fatal("fire found no entry")
	}
	if rec.count() != 1 || rec.fired[0] != "p1" {
		t.Errorf("fired = %v, want [p1]", rec.fired)
	}

	if err := s.DeleteTask(ctx, id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after delete", s.Len())
	}
	if err := s.DeleteTask(ctx, id); !errors.Is(err, ErrUnknownSchedule) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestCreateTaskRejects(t *testing.T) {
	s := New(func(context.Context, string) {})
	tests := []struct {
		name string
		req  monitor.ScheduleRequest
	}{
		{"bad cron", request("every day", "p1")},
		{"no project", monitor.ScheduleRequest{Name: "x", CronExpression: "@hourly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateTask(context.Background(), tt.req); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("rejected requests were registered: %d", s.Len())
	}
}

func TestTicks(t *testing.T) {
	rec := &triggerRecorder{}
	s := New(rec.trigger)
	if _, err := s.CreateTask(context.Background(), request("@every 1s", "p2")); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for rec.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled job never fired")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestMonitorRegistersWithScheduler(t *testing.T) {
	s := New(func(context.Context, string) {})
	mon := monitor.New(s, nil)
	p := monitorProject("p3")

	mon.StartMonitoring(context.Background(), p)
	if mon.Degraded("p3") || s.Len() != 1 {
		t.Fatalf("degraded=%v len=%d", mon.Degraded("p3"), s.Len())
	}
	mon.StopMonitoring(context.Background(), "p3")
	if s.Len() != 0 {
		t.Errorf("schedule not removed, len=%d", s.Len())
	}
}
