package speech

// 指标常量定义
const (
	// MetricCallsTotal 提供方调用次数 (Counter)
	MetricCallsTotal = "speech_calls_total"

	// MetricQueueWaitSeconds 槽位排队等待耗时 (Histogram)
	MetricQueueWaitSeconds = "speech_queue_wait_seconds"

	// MetricCallSeconds 单次提供方调用耗时 (Histogram)
	MetricCallSeconds = "speech_call_seconds"

	// MetricInFlight 当前在途调用数 (Gauge)
	MetricInFlight = "speech_in_flight"

	// LabelProvider 提供方标签
	LabelProvider = "provider"

	// LabelResult 结果标签：success / transient / permanent
	LabelResult = "result"
)
