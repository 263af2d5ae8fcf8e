package astiperf

import "context"

// GPUStats holds one wholesale reading of gpu encoder counters.
type GPUStats struct {
	AverageFPS         uint32 `json:"average_fps"`
	AverageLatency     uint64 `json:"average_latency"`
	EncoderUtilization uint32 `json:"encoder_utilization"`
	GPUUtilization     uint32 `json:"gpu_utilization"`
	MemoryFree         uint32 `json:"memory_free"`
	MemoryUsed         uint32 `json:"memory_used"`
	SessionCount       uint32 `json:"session_count"`
}

// GPUStatsFunc queries gpu counters. It may block on an external process and is
// only invoked from the report path, never with a counter lock held.
type GPUStatsFunc func(ctx context.Context) (GPUStats, error)
