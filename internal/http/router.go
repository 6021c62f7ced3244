package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 promhttp 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHouseholdRoutes 注册家庭 API
func (r *Router) RegisterHouseholdRoutes(h *HouseholdHandler) {
	r.HandleHandler(householdsPrefix, h)
	r.HandleHandler(householdsPrefix+"/", h)
}

// RegisterOpsRoutes 健康检查与 Prometheus 指标
func (r *Router) RegisterOpsRoutes(health *HealthHandler, metricsHandler http.Handler) {
	if health == nil {
		health = NewHealthHandler(r.logger)
	}
	r.HandleHandler("/healthz", health)
	if metricsHandler != nil {
		r.HandleHandler("/metrics", metricsHandler)
	}
}
