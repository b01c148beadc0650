package gateway

// 指标常量定义
const (
	// MetricRequestsTotal 产物请求数 (Counter)
	MetricRequestsTotal = "gateway_artifact_requests_total"

	// LabelSource 产物来源标签：cache / generated / fallback
	LabelSource = "source"
)
