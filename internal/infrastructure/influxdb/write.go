package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAudioMeter    = "audio_meter"
	MeasurementControlResult = "tv_control"
	MeasurementMatrixRoute   = "matrix_route"
	MeasurementBridgeState   = "bridge_state"
)

// WriteMeter records one polled audio processor meter reading.
func (c *Client) WriteMeter(param string, value float64, at time.Time) {
	c.writePoint(MeasurementAudioMeter,
		map[string]string{"param": param},
		map[string]any{"value": value},
		at,
	)
}

// ControlPoint is one TV control outcome.
type ControlPoint struct {
	DeviceID     string
	Command      string
	Method       string
	Success      bool
	FallbackUsed bool
	Duration     time.Duration
	At           time.Time
}

// WriteControlResult records a TV control outcome. Device, command and
// method are tags so dashboards can group failure rates by them.
func (c *Client) WriteControlResult(p ControlPoint) {
	c.writePoint(MeasurementControlResult,
		map[string]string{
			"device_id": p.DeviceID,
			"command":   p.Command,
			"method":    p.Method,
		},
		map[string]any{
			"success":       p.Success,
			"fallback_used": p.FallbackUsed,
			"duration_ms":   p.Duration.Milliseconds(),
		},
		p.At,
	)
}

// WriteRoute records a matrix crosspoint attempt.
func (c *Client) WriteRoute(input, output int, success bool, at time.Time) {
	c.writePoint(MeasurementMatrixRoute,
		nil,
		map[string]any{"input": input, "output": output, "success": success},
		at,
	)
}

// WriteBridgeState records a bridge connection state change, e.g.
// ("audio", "connected") or ("cec", "unavailable").
func (c *Client) WriteBridgeState(bridge, state string, at time.Time) {
	c.writePoint(MeasurementBridgeState,
		map[string]string{"bridge": bridge},
		map[string]any{"state": state},
		at,
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
