package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"outlookmcp/internal/instrumentation"
)

func newTestServerContext(t *testing.T) *ServerContext {
	t.Helper()

	sc, err := NewServerContext(context.Background(), Config{
		TokenPath: filepath.Join(t.TempDir(), "tokens.json"),
		ClientID:  "client-1",
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestNewServerContext_RequiresClientID(t *testing.T) {
	_, err := NewServerContext(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing client id")
	}
}

func TestServerContext_Components(t *testing.T) {
	sc := newTestServerContext(t)

	if sc.Store() == nil || sc.Refresher() == nil || sc.Resolver() == nil {
		t.Error("auth components must be assembled")
	}
	if sc.Flow() == nil {
		t.Error("flow initiator must be assembled")
	}
	if sc.Sessions() == nil {
		t.Error("session registry must be assembled")
	}
}

func TestServerContext_GraphClientCaching(t *testing.T) {
	sc := newTestServerContext(t)

	c1 := sc.GraphClientForUser("jane@contoso.com")
	c2 := sc.GraphClientForUser("jane@contoso.com")
	if c1 != c2 {
		t.Error("expected the same cached client for repeated lookups")
	}

	other := sc.GraphClientForUser("bob@contoso.com")
	if other == c1 {
		t.Error("different users must get different clients")
	}

	sc.DropGraphClient("jane@contoso.com")
	c3 := sc.GraphClientForUser("jane@contoso.com")
	if c3 == c1 {
		t.Error("dropped client must be recreated on next lookup")
	}
}

func TestServerContext_SetMetricsPropagates(t *testing.T) {
	sc := newTestServerContext(t)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), false)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	sc.SetMetrics(metrics)

	// The session registry must have picked up the recorder: creating a
	// session moves the active-sessions gauge.
	if _, err := sc.Sessions().CreateSession(); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var active int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "active_sessions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("active_sessions data type = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				active += dp.Value
			}
		}
	}
	if active != 1 {
		t.Errorf("active_sessions = %d, want 1 after session creation", active)
	}
}

func TestServerContext_Shutdown(t *testing.T) {
	sc := newTestServerContext(t)

	if sc.IsShutdown() {
		t.Error("fresh context should not be shut down")
	}

	if err := sc.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !sc.IsShutdown() {
		t.Error("context should report shut down")
	}

	select {
	case <-sc.Context().Done():
	default:
		t.Error("server context should be cancelled after shutdown")
	}

	// Idempotent.
	if err := sc.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
