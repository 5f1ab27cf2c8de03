package prometheus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecorder_CountsAndObservesWithBoundedLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewRecorder(registry)
	ctx := context.Background()

	tags := map[string]string{"operation": "create_order", "status": "success", "tenant_id": "G1"}
	recorder.IncCounter(ctx, "reconcile.create_order.total", 1, tags)
	recorder.IncCounter(ctx, "reconcile.create_order.total", 2, tags)
	recorder.ObserveHistogram(ctx, "reconcile.create_order.duration_ms", 12, tags)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}

	counter := byName["reconcile_create_order_total"]
	if counter == nil || len(counter.GetMetric()) != 1 {
		t.Fatalf("expected one counter series, got %+v", counter)
	}
	if got := counter.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected counter 3, got %v", got)
	}
	for _, label := range counter.GetMetric()[0].GetLabel() {
		if label.GetName() == "tenant_id" {
			t.Fatalf("tenant_id must not be a default label")
		}
	}

	histogram := byName["reconcile_create_order_duration_ms"]
	if histogram == nil || histogram.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one histogram sample, got %+v", histogram)
	}
}

func TestRecorder_SharesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewRecorder(registry)
	second := NewRecorder(registry)
	ctx := context.Background()

	first.IncCounter(ctx, "reconcile.deliver.total", 1, nil)
	second.IncCounter(ctx, "reconcile.deliver.total", 1, nil)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 || families[0].GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected a shared counter at 2, got %+v", families)
	}
}

func TestRecorder_ReportsConflictingRegistrations(t *testing.T) {
	registry := prometheus.NewRegistry()
	var failures []string
	recorder := NewRecorder(registry, WithErrorHandler(func(name string, err error) {
		failures = append(failures, name)
	}))

	recorder.IncCounter(context.Background(), "reconcile.clash", 1, nil)
	recorder.ObserveHistogram(context.Background(), "reconcile.clash", 1, nil)
	if len(failures) != 1 || failures[0] != "reconcile.clash" {
		t.Fatalf("expected one registration failure, got %v", failures)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"reconcile.job.duration_ms": "reconcile_job_duration_ms",
		"9lives":                    "_9lives",
		" a-b ":                     "a_b",
	}
	for input, want := range cases {
		if got := sanitize(input); got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}
