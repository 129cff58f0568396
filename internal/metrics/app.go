package metrics

import (
	"time"

	"github.com/agentbridge/agentbridge/internal/observability"
)

// Bridge metric names.
const (
	RateLimitRejectionsTotal = "bridge_ratelimit_rejections_total"
	RateLimitEntries         = "bridge_ratelimit_entries"
	AuthFailuresTotal        = "bridge_auth_failures_total"
	AgentInvocationsTotal    = "bridge_agent_invocations_total"
	AgentDuration            = "bridge_agent_duration_ms"
	ServerStartTime          = "bridge_server_start_time_seconds"
)

// Agent invocation statuses.
const (
	AgentStatusSuccess  = "success"
	AgentStatusFailed   = "failed"
	AgentStatusSpawn    = "spawn_error"
	AgentStatusTimeout  = "timeout"
	AgentStatusCanceled = "canceled"
)

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RateLimitRejectionsTotal, 1, nil)
	}
}

// SetRateLimitEntries reports how many identities the limiter tracks.
func SetRateLimitEntries(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(RateLimitEntries, float64(count), nil)
	}
}

// RecordAuthFailure counts a rejected credential.
func RecordAuthFailure() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(AuthFailuresTotal, 1, nil)
	}
}

// RecordAgentInvocation counts one agent run and its wall time.
func RecordAgentInvocation(agentID, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		AgentInvocationsTotal,
		1,
		map[string]string{
			"agent":  agentID,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		AgentDuration,
		duration,
		map[string]string{
			"agent": agentID,
		},
	)
}

// SetServerStartTime records the server start time (Unix seconds).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
