package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck 单个依赖的检查，返回 nil 表示健康
type HealthCheck func(ctx context.Context) error

// HealthStatus 健康检查响应
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthHandler /healthz：逐个检查已注册的依赖（数据库、Redis、MQTT）
// 未注册的依赖视为未启用，不影响整体状态
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		checks: map[string]HealthCheck{},
		logger: logger,
	}
}

// Register 注册依赖检查；check 为 nil 时忽略
func (h *HealthHandler) Register(name string, check HealthCheck) {
	if check != nil {
		h.checks[name] = check
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
		return
	}

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			status.Status = "unhealthy"
			status.Services[name] = "unhealthy: " + err.Error()
			h.logger.Warn("Health check failed", zap.String("service", name), zap.Error(err))
			continue
		}
		status.Services[name] = "healthy"
	}

	if status.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, Result[HealthStatus]{
			Code:    ResultError,
			Type:    "error",
			Message: "unhealthy",
			Result:  status,
		})
		return
	}
	writeJSON(w, http.StatusOK, Ok(status))
}
