package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.Published("order.created")
	m.Published("order.created")
	m.Failed("stock.restocked")
	m.DeadLettered("return.approved", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "fm_outbox_published_total", "event_type", "order.created"); err != nil || got != 2 {
		t.Fatalf("expected published=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fm_outbox_publish_failures_total", "event_type", "stock.restocked"); err != nil || got != 1 {
		t.Fatalf("expected failures=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "fm_outbox_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("expected dead lettered=1, got %f err=%v", got, err)
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Published("order.created")
	m.Failed("")
	NewOutboxMetrics(nil).DeadLettered("x", "y")
}
