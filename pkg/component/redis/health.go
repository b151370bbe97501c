package redis

import (
	"context"
	"time"
)

// HealthStats contains detailed health information about the Redis connection.
type HealthStats struct {
	Healthy    bool          `json:"healthy"`
	Latency    time.Duration `json:"latency"`
	TotalConns uint32        `json:"total_conns"`
	IdleConns  uint32        `json:"idle_conns"`
	Timeouts   uint32        `json:"timeouts"`
	Error      string        `json:"error,omitempty"`
}

// HealthWithStats pings Redis and reports latency plus pool statistics.
func (c *Client) HealthWithStats(ctx context.Context) *HealthStats {
	start := time.Now()
	err := c.Ping(ctx)

	stats := &HealthStats{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		stats.Error = err.Error()
	}
	if ps := c.client.PoolStats(); ps != nil {
		stats.TotalConns = ps.TotalConns
		stats.IdleConns = ps.IdleConns
		stats.Timeouts = ps.Timeouts
	}
	return stats
}
