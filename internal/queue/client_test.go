package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dujiao-next/backoffice/internal/config"
)

func TestDisabledClientRejectsReleaseTask(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueueReservationRelease(ReservationReleasePayload{ReserveLogID: 1}); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("expected ErrQueueDisabled, got %v", err)
	}
	if err := client.EnqueueLowStockScan(LowStockScanPayload{}); err != nil {
		t.Fatalf("low stock scan on disabled client should be noop: %v", err)
	}
}

func TestNewReservationReleaseTask(t *testing.T) {
	task, err := NewReservationReleaseTask(ReservationReleasePayload{ReserveLogID: 42, OrderNo: "BO1"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskInventoryReleaseReserved {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var payload ReservationReleasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.ReserveLogID != 42 || payload.OrderNo != "BO1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected addr: %s", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("unexpected concurrency: %d", cfg.Concurrency)
	}
	if cfg.Queues[CriticalQueue] <= cfg.Queues[DefaultQueue] {
		t.Fatalf("critical queue should have higher priority: %+v", cfg.Queues)
	}
}
