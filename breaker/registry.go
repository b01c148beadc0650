package breaker

import (
	"sort"
	"sync"

	"github.com/ceyewan/lexigate/clog"
)

// CriticalStatus 关键服务聚合状态
type CriticalStatus struct {
	AllHealthy   bool     `json:"all_healthy"`
	DownServices []string `json:"down_services"`
}

// Registry 按 (服务, 操作) 惰性创建并持有熔断器。
// 同一个键在进程生命周期内只会创建一个熔断器，并发首次获取也是如此。
type Registry struct {
	defaults *Config
	opt      options
	logger   clog.Logger

	mu       sync.RWMutex
	breakers map[Key]Breaker
}

// NewRegistry 创建熔断器注册表。
//
// defaults 是未显式传入配置时使用的默认熔断配置；
// WithCriticalServices 声明参与 CriticalStatus 聚合的服务名。
func NewRegistry(defaults *Config, opts ...Option) (*Registry, error) {
	if defaults == nil {
		defaults = &Config{}
	}
	defaults.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	return &Registry{
		defaults: defaults,
		opt:      opt,
		logger:   logger.With(clog.String("component", "breaker-registry")),
		breakers: make(map[Key]Breaker),
	}, nil
}

// Get 获取 (service, operation) 对应的熔断器，首次调用时创建。
// cfg 只在首次创建时生效；为 nil 时使用注册表默认配置。
func (r *Registry) Get(service, operation string, cfg *Config) Breaker {
	key := Key{Service: service, Operation: operation}

	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 双重检查：并发首次获取只创建一个实例
	if b, ok := r.breakers[key]; ok {
		return b
	}

	if cfg == nil {
		c := *r.defaults
		cfg = &c
	} else {
		cfg.setDefaults()
	}

	b = newBreaker(key, cfg, &r.opt)
	r.breakers[key] = b

	r.logger.Debug("breaker created",
		clog.String("key", key.String()),
		clog.Int("failure_threshold", int(cfg.FailureThreshold)),
		clog.Duration("reset_timeout", cfg.ResetTimeout))

	return b
}

// HealthStatus 返回所有熔断器的状态快照，按键排序
func (r *Registry) HealthStatus() []Status {
	r.mu.RLock()
	statuses := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		statuses = append(statuses, b.Status())
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Key.String() < statuses[j].Key.String()
	})
	return statuses
}

// ResetAll 重置所有熔断器
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}

// ResetService 重置指定服务名下的所有熔断器。
// 健康监控观察到服务恢复后通过此入口清除残留的打开状态。
func (r *Registry) ResetService(service string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, b := range r.breakers {
		if key.Service == service {
			b.Reset()
		}
	}
}

// CriticalStatus 聚合关键服务的熔断状态。
// 某服务任一熔断器处于打开状态即视为 down。
func (r *Registry) CriticalStatus() CriticalStatus {
	down := make(map[string]bool)

	r.mu.RLock()
	for key, b := range r.breakers {
		if b.Status().State == StateOpen {
			down[key.Service] = true
		}
	}
	r.mu.RUnlock()

	status := CriticalStatus{AllHealthy: true}
	for _, service := range r.opt.critical {
		if down[service] {
			status.AllHealthy = false
			status.DownServices = append(status.DownServices, service)
		}
	}
	sort.Strings(status.DownServices)
	return status
}
