package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRegistryRunAllUp(t *testing.T) {
	registry := NewRegistry("1.2.3")
	registry.Register("storage", func(context.Context) error { return nil })
	registry.Register("broker", func(context.Context) error { return nil })

	report := registry.Run(context.Background())
	if report.Status != StatusUp || report.Version != "1.2.3" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Components) != 2 {
		t.Fatalf("components = %+v", report.Components)
	}
	for name, component := range report.Components {
		if component.Status != StatusUp {
			t.Fatalf("component %s: %+v", name, component)
		}
	}
}

func TestRegistryRunReportsFailure(t *testing.T) {
	registry := NewRegistry("dev")
	registry.Register("storage", func(context.Context) error { return nil })
	registry.Register("broker", func(context.Context) error { return errors.New("connection refused") })

	report := registry.Run(context.Background())
	if report.Status != StatusDown {
		t.Fatalf("status = %q", report.Status)
	}
	if report.Components["broker"].Error != "connection refused" {
		t.Fatalf("broker component: %+v", report.Components["broker"])
	}
	if report.Components["storage"].Status != StatusUp {
		t.Fatalf("storage component: %+v", report.Components["storage"])
	}
}

func TestRegistryCheckTimeout(t *testing.T) {
	registry := NewRegistry("dev")
	registry.checkTimeout = 10 * time.Millisecond
	registry.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := registry.Run(context.Background())
	if report.Status != StatusDown {
		t.Fatalf("hanging check must be reported as down: %+v", report)
	}
}

func TestRegistryServeHTTP(t *testing.T) {
	registry := NewRegistry("dev")
	registry.Register("storage", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	registry.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != StatusUp || report.CheckedAt.IsZero() {
		t.Fatalf("unexpected report: %+v", report)
	}

	registry.Register("broker", func(context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	registry.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	registry := NewRegistry("dev")
	registry.Register("storage", func(context.Context) error { return errors.New("pool exhausted") })

	rec := httptest.NewRecorder()
	registry.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != StatusDown {
		t.Fatalf("body = %v", body)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != StatusUp {
		t.Fatalf("body = %v", body)
	}
}

func TestRegistryEmptyIsUp(t *testing.T) {
	report := NewRegistry("dev").Run(context.Background())
	if report.Status != StatusUp || len(report.Components) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
