package ratelimit

// 指标常量定义
const (
	// MetricChecksTotal 限流判定次数 (Counter)
	MetricChecksTotal = "ratelimit_checks_total"

	// MetricDeniedTotal 被拒绝的尝试数 (Counter)
	MetricDeniedTotal = "ratelimit_denied_total"

	// MetricFallbackChecks 本地退化路径承接的判定数 (Counter)
	MetricFallbackChecks = "ratelimit_fallback_checks_total"

	// LabelAllowed 判定结果标签
	LabelAllowed = "allowed"
)
