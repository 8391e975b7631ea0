package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadinessRequiresCriticalComponents(t *testing.T) {
	// Fresh process state: postgres and redis not yet registered.
	healthChecker.mu.Lock()
	healthChecker.components = make(map[string]ComponentHealth)
	healthChecker.mu.Unlock()

	readiness := GetReadiness()
	if readiness.Status != "not_ready" {
		t.Errorf("expected not_ready before registration, got %q", readiness.Status)
	}

	RegisterComponent("postgres", true, "")
	RegisterComponent("redis", true, "")

	readiness = GetReadiness()
	if readiness.Status != "ready" {
		t.Errorf("expected ready after registration, got %q", readiness.Status)
	}
}

func TestReadinessDegradesOnUnhealthyComponent(t *testing.T) {
	RegisterComponent("postgres", true, "")
	RegisterComponent("redis", true, "")
	UpdateComponent("redis", false, "connection refused")

	readiness := GetReadiness()
	if readiness.Status != "not_ready" {
		t.Errorf("expected not_ready with unhealthy redis, got %q", readiness.Status)
	}

	UpdateComponent("redis", true, "")
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	RegisterComponent("postgres", true, "")
	RegisterComponent("redis", true, "")

	rec := httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 when ready, got %d", rec.Code)
	}

	UpdateComponent("postgres", false, "down")
	rec = httptest.NewRecorder()
	ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when postgres down, got %d", rec.Code)
	}

	UpdateComponent("postgres", true, "")
}

func TestHealthHandlerBody(t *testing.T) {
	SetVersion("test")
	RegisterComponent("postgres", true, "")

	rec := httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body.Version != "test" {
		t.Errorf("expected version in body, got %q", body.Version)
	}
	if body.Uptime == "" {
		t.Error("expected uptime in body")
	}
}
