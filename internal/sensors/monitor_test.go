package sensors

import (
	"context"
	"testing"
)

func TestHandleMessageMergesReadings(t *testing.T) {
	m := NewMonitor()

	m.handleMessage([]byte(`{"device_id": "watch_01", "metrics": {"heart_rate": 82, "steps": 1200}}`))
	got := m.Snapshot()
	if got.HeartRate == nil || *got.HeartRate != 82 {
		t.Errorf("heart rate = %v, want 82", got.HeartRate)
	}
	if got.Steps == nil || *got.Steps != 1200 {
		t.Errorf("steps = %v, want 1200", got.Steps)
	}
	if got.Sleep != nil {
		t.Errorf("sleep = %v, want nil before any reading", got.Sleep)
	}

	// A later partial reading updates its fields and keeps the rest.
	m.handleMessage([]byte(`{"device_id": "watch_01", "metrics": {"sleep": 6.5}}`))
	got = m.Snapshot()
	if got.HeartRate == nil || *got.HeartRate != 82 {
		t.Errorf("heart rate after partial update = %v, want 82", got.HeartRate)
	}
	if got.Sleep == nil || *got.Sleep != 6.5 {
		t.Errorf("sleep = %v, want 6.5", got.Sleep)
	}
}

func TestHandleMessageDiscardsMalformed(t *testing.T) {
	m := NewMonitor()
	m.handleMessage([]byte("not json"))
	m.handleMessage([]byte(`{"metrics": {"heart_rate": "fast"}}`))

	got := m.Snapshot()
	if got.HeartRate != nil || got.Steps != nil || got.Sleep != nil {
		t.Errorf("malformed readings applied: %+v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewMonitor()
	m.handleMessage([]byte(`{"metrics": {"heart_rate": 70}}`))

	first := m.Snapshot()
	*first.HeartRate = 999

	second := m.Snapshot()
	if *second.HeartRate != 70 {
		t.Errorf("snapshot shares state with monitor: heart rate = %v", *second.HeartRate)
	}
}

func TestStartWithoutAddrFails(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	m := NewMonitor()
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() with no broker address succeeded, want error")
	}
}
