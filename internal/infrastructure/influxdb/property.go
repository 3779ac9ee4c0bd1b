package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement properties are recorded under.
const Measurement = "appliance_property"

// Publish records one property value. It satisfies the engine's publisher
// contract so the client can sit beside the MQTT hub in a fan-out.
//
// Numeric values become a "value" float field. Strings and other values
// become a "state" string field. Nil (an unmapped raw value) is skipped.
func (c *Client) Publish(deviceID, property string, v any) error {
	if !c.IsConnected() {
		return nil
	}
	point, ok := c.propertyPoint(deviceID, property, v)
	if !ok {
		return nil
	}
	c.writer.WritePoint(point)
	return nil
}

func (c *Client) propertyPoint(deviceID, property string, v any) (*write.Point, bool) {
	fields := propertyFields(v)
	if fields == nil {
		return nil, false
	}
	tags := map[string]string{
		"device_id": deviceID,
		"property":  property,
	}
	return write.NewPoint(Measurement, tags, fields, c.now()), true
}

func propertyFields(v any) map[string]any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return map[string]any{"value": x}
	case float32:
		return map[string]any{"value": float64(x)}
	case int:
		return map[string]any{"value": float64(x)}
	case int64:
		return map[string]any{"value": float64(x)}
	case bool:
		if x {
			return map[string]any{"value": 1.0}
		}
		return map[string]any{"value": 0.0}
	case string:
		return map[string]any{"state": x}
	default:
		return nil
	}
}
