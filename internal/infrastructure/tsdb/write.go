package tsdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteEventMetric records one bridge event for rate and mix analysis.
// Non-blocking; the point is batched and sent asynchronously.
func (c *Client) WriteEventMetric(entityID, eventType string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"bridge_events",
		map[string]string{
			"entity_id":  entityID,
			"event_type": eventType,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteTriggerLatency records the delay between a trigger firing on the
// native side and the host observing it.
func (c *Client) WriteTriggerLatency(entityID string, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"trigger_latency",
		map[string]string{
			"entity_id": entityID,
		},
		map[string]interface{}{
			"latency_ms": float64(latency.Milliseconds()),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteConnectionMetric records link quality for a connection entity.
// rssi is in dBm; mtu is the negotiated payload size.
func (c *Client) WriteConnectionMetric(entityID string, rssi int, mtu int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"rssi": rssi,
	}
	if mtu > 0 {
		fields["mtu"] = mtu
	}

	point := write.NewPoint(
		"connection_quality",
		map[string]string{
			"entity_id": entityID,
		},
		fields,
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WriteCommandMetric records the outcome of one session command.
func (c *Client) WriteCommandMetric(command string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"commands",
		map[string]string{
			"command": command,
			"success": boolTag(success),
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
