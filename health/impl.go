package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// 指标常量定义
const (
	MetricTransitionsTotal = "health_transitions_total"
	MetricProbesTotal      = "health_probes_total"

	LabelService = "service"
	LabelResult  = "result"
)

// serviceState 单个服务的内部状态，由 monitor.mu 保护
type serviceState struct {
	healthy             bool
	consecutiveFailures int
	lastError           string
	lastChecked         time.Time
	probe               ProbeFunc
}

// monitor 实现 Monitor 接口（非导出）
type monitor struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter
	hook   RecoveryHook

	transitionsCounter metrics.Counter
	probesCounter      metrics.Counter

	mu          sync.Mutex
	services    map[string]*serviceState
	subscribers map[chan Event]struct{}
	closed      bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func newMonitor(cfg *Config, opt *options) *monitor {
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	m := &monitor{
		cfg:         cfg,
		logger:      logger.With(clog.String("component", "health")),
		meter:       opt.meter,
		hook:        opt.recoveryHook,
		services:    make(map[string]*serviceState),
		subscribers: make(map[chan Event]struct{}),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	if opt.meter != nil {
		m.transitionsCounter, _ = opt.meter.Counter(MetricTransitionsTotal, "Health state transitions")
		m.probesCounter, _ = opt.meter.Counter(MetricProbesTotal, "Background health probes")
	}

	go m.probeLoop()
	return m
}

func (m *monitor) Register(service string, opts ...RegisterOption) {
	ro := registerOptions{}
	for _, o := range opts {
		o(&ro)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.services[service]; ok {
		// 重复注册只更新探测函数
		if ro.probe != nil {
			st.probe = ro.probe
		}
		return
	}

	m.services[service] = &serviceState{healthy: true, probe: ro.probe}
	m.logger.Debug("service registered", clog.String("service", service))
}

// getOrCreate 返回服务状态，未注册时惰性创建（默认健康）。调用方必须持有锁。
func (m *monitor) getOrCreate(service string) *serviceState {
	st, ok := m.services[service]
	if !ok {
		st = &serviceState{healthy: true}
		m.services[service] = st
	}
	return st
}

func (m *monitor) RecordSuccess(service string) {
	m.mu.Lock()
	st := m.getOrCreate(service)
	st.consecutiveFailures = 0
	st.lastError = ""
	st.lastChecked = time.Now()

	recovered := !st.healthy
	if recovered {
		st.healthy = true
	}
	m.mu.Unlock()

	if recovered {
		m.logger.Info("service recovered", clog.String("service", service))
		m.emit(Event{Service: service, Healthy: true, Timestamp: time.Now()})
		if m.transitionsCounter != nil {
			m.transitionsCounter.Inc(context.Background(),
				metrics.L(LabelService, service), metrics.L(LabelResult, "up"))
		}
		if m.hook != nil {
			m.hook(service)
		}
	}
}

func (m *monitor) RecordFailure(service string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}

	m.mu.Lock()
	st := m.getOrCreate(service)
	st.consecutiveFailures++
	st.lastError = reason
	st.lastChecked = time.Now()

	wentDown := st.healthy && st.consecutiveFailures >= m.cfg.FailureThreshold
	if wentDown {
		st.healthy = false
	}
	failures := st.consecutiveFailures
	m.mu.Unlock()

	if wentDown {
		m.logger.Error("service marked unhealthy",
			clog.String("service", service),
			clog.Int("consecutive_failures", failures),
			clog.String("last_error", reason))
		m.emit(Event{Service: service, Healthy: false, Reason: reason, Timestamp: time.Now()})
		if m.transitionsCounter != nil {
			m.transitionsCounter.Inc(context.Background(),
				metrics.L(LabelService, service), metrics.L(LabelResult, "down"))
		}
	}
}

func (m *monitor) IsHealthy(service string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.services[service]
	if !ok {
		// 未注册的服务默认健康：宁可多打一次真实调用，也不凭空降级
		return true
	}
	return st.healthy
}

func (m *monitor) Unhealthy() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name, st := range m.services {
		if !st.healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (m *monitor) StatusAll() []Status {
	m.mu.Lock()
	statuses := make([]Status, 0, len(m.services))
	for name, st := range m.services {
		statuses = append(statuses, Status{
			Service:             name,
			Healthy:             st.healthy,
			ConsecutiveFailures: st.consecutiveFailures,
			LastError:           st.lastError,
			LastChecked:         st.lastChecked,
		})
	}
	m.mu.Unlock()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Service < statuses[j].Service })
	return statuses
}

func (m *monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// emit 将事件推送给所有订阅者
func (m *monitor) emit(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.logger.Warn("health event dropped, slow subscriber",
				clog.String("service", event.Service))
		}
	}
}

// probeLoop 后台探测循环，结果与真实流量共用同一套计数
func (m *monitor) probeLoop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runProbes()
		case <-m.stopCh:
			return
		}
	}
}

// runProbes 对所有带探测函数的服务执行一轮探测
func (m *monitor) runProbes() {
	m.mu.Lock()
	probes := make(map[string]ProbeFunc, len(m.services))
	for name, st := range m.services {
		if st.probe != nil {
			probes[name] = st.probe
		}
	}
	m.mu.Unlock()

	for name, probe := range probes {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
		err := probe(ctx)
		cancel()

		result := "success"
		if err != nil {
			result = "failure"
			m.RecordFailure(name, err)
		} else {
			m.RecordSuccess(name)
		}
		if m.probesCounter != nil {
			m.probesCounter.Inc(context.Background(),
				metrics.L(LabelService, name), metrics.L(LabelResult, result))
		}
	}
}

func (m *monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, ch)
	}
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh
	return nil
}
