// Package health публикует состояние зависимостей сервиса для Kubernetes-проб.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Статусы компонента и сервиса в целом.
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// defaultCheckTimeout ограничивает каждую проверку по отдельности, чтобы
// зависшая зависимость не блокировала весь ответ пробы.
const defaultCheckTimeout = 2 * time.Second

// CheckFunc проверяет одну зависимость. Nil означает, что зависимость жива.
type CheckFunc func(ctx context.Context) error

// ComponentStatus — результат проверки одной зависимости.
type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	TookMS int64  `json:"took_ms"`
}

// Report — агрегированный ответ /healthz.
type Report struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// Registry хранит именованные проверки зависимостей и строит по ним отчёт.
type Registry struct {
	version      string
	checkTimeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewRegistry создаёт пустой реестр проверок.
func NewRegistry(version string) *Registry {
	return &Registry{
		version:      version,
		checkTimeout: defaultCheckTimeout,
		checks:       make(map[string]CheckFunc),
	}
}

// Register добавляет или заменяет проверку с данным именем.
func (r *Registry) Register(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Run выполняет все проверки и собирает отчёт. Каждая проверка ограничена
// собственным таймаутом поверх переданного контекста.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	checks := make(map[string]CheckFunc, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	report := Report{
		Status:    StatusUp,
		Version:   r.version,
		CheckedAt: time.Now().UTC(),
	}
	if len(checks) == 0 {
		return report
	}

	report.Components = make(map[string]ComponentStatus, len(checks))
	for name, check := range checks {
		report.Components[name] = r.runCheck(ctx, check)
		if report.Components[name].Status == StatusDown {
			report.Status = StatusDown
		}
	}
	return report
}

func (r *Registry) runCheck(ctx context.Context, check CheckFunc) ComponentStatus {
	checkCtx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()

	started := time.Now()
	err := check(checkCtx)
	status := ComponentStatus{
		Status: StatusUp,
		TookMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		status.Status = StatusDown
		status.Error = err.Error()
	}
	return status
}

// ServeHTTP отдаёт полный отчёт: 200, если все зависимости живы, иначе 503.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	report := r.Run(req.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status != StatusUp {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// ReadinessHandler — облегчённый ответ для readiness-пробы.
func (r *Registry) ReadinessHandler(w http.ResponseWriter, req *http.Request) {
	report := r.Run(req.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status != StatusUp {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": report.Status})
}

// LivenessHandler отвечает "жив", пока процесс способен обслуживать запросы.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": StatusUp})
}

var _ http.Handler = (*Registry)(nil)
