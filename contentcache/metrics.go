package contentcache

// 指标常量定义
const (
	// MetricHitsTotal 缓存命中数 (Counter)
	MetricHitsTotal = "contentcache_hits_total"

	// MetricMissesTotal 缓存未命中数 (Counter)
	MetricMissesTotal = "contentcache_misses_total"

	// MetricEvictionsTotal 清理驱逐的条目数 (Counter)
	MetricEvictionsTotal = "contentcache_evictions_total"

	// MetricBytes 缓存总字节数 (Gauge)
	MetricBytes = "contentcache_bytes"

	// LabelType 操作子类型标签
	LabelType = "type"

	// LabelLayer 命中层标签：hot / store
	LabelLayer = "layer"

	// LabelReason 未命中原因标签：absent / inconsistent / unreachable
	LabelReason = "reason"
)
