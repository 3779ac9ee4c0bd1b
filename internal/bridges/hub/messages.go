package hub

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-appliance-bridge/internal/field"
)

// PayloadNone is published for a property whose raw value has no mapping.
const PayloadNone = "None"

// FormatValue renders a semantic value as an MQTT payload.
func FormatValue(v field.Value) []byte {
	switch x := v.(type) {
	case nil:
		return []byte(PayloadNone)
	case string:
		return []byte(x)
	case float64:
		return []byte(strconv.FormatFloat(x, 'f', -1, 64))
	case float32:
		return []byte(strconv.FormatFloat(float64(x), 'f', -1, 32))
	case int:
		return []byte(strconv.Itoa(x))
	case int64:
		return []byte(strconv.FormatInt(x, 10))
	case bool:
		if x {
			return []byte(field.On)
		}
		return []byte(field.Off)
	default:
		return []byte(fmt.Sprint(x))
	}
}

// ParseValue turns a command payload into a semantic value. Integers and
// decimals become int and float64; anything else is passed on as a
// trimmed string for the field's write transform to interpret.
func ParseValue(payload []byte) field.Value {
	s := strings.TrimSpace(string(payload))
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted means the device applied the write.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the write was rejected or failed.
	AckFailed AckStatus = "failed"
)

// AckMessage reports a command's outcome.
// Topic: {base}/{device}/{property}/ack
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Property  string    `json:"property"`
	Value     string    `json:"value"`
	Status    AckStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// HealthStatus is the bridge's operational status.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published periodically.
// Topic: {base}/bridge/{bridge}/health (QoS 1, retained)
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	InstanceID    string       `json:"instance_id"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Reason        string       `json:"reason,omitempty"`
	Statistics    Statistics   `json:"statistics"`
}

// Statistics are the counters carried in a health message.
type Statistics struct {
	Devices           int    `json:"devices"`
	QueueDepth        int    `json:"queue_depth"`
	TransformFailures uint64 `json:"transform_failures"`
	FramesIn          uint64 `json:"frames_in"`
	FramesOut         uint64 `json:"frames_out"`
	DecodeErrors      uint64 `json:"decode_errors"`
	CommandsApplied   uint64 `json:"commands_applied"`
	CommandsFailed    uint64 `json:"commands_failed"`
}
