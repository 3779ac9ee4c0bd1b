package mqtt

import "strings"

// Topic segments.
const (
	segmentSet     = "set"
	segmentAck     = "ack"
	segmentRx      = "rx"
	segmentTx      = "tx"
	segmentBridge  = "bridge"
	segmentStatus  = "status"
	segmentHealth  = "health"
	wildcardSingle = "+"
)

// Topics builds and parses the bridge's topic hierarchy.
//
// Semantic surface (hub side):
//
//	{base}/{device}/{property}          retained state
//	{base}/{device}/{property}/set      commands
//	{base}/{device}/{property}/ack      command results
//	{base}/bridge/{bridge}/status       availability (LWT)
//	{base}/bridge/{bridge}/health       periodic health
//
// Register transport (appliance side):
//
//	{registers}/{device}/rx             frames from the device
//	{registers}/{device}/tx             frames to the device
type Topics struct {
	Base      string
	Registers string
}

// DeviceBase returns the root of a device's property topics.
func (t Topics) DeviceBase(deviceID string) string {
	return t.Base + "/" + deviceID
}

// PropertyState returns the retained state topic of a property.
func (t Topics) PropertyState(deviceID, property string) string {
	return t.DeviceBase(deviceID) + "/" + property
}

// PropertyCommand returns the command topic of a property.
func (t Topics) PropertyCommand(deviceID, property string) string {
	return t.PropertyState(deviceID, property) + "/" + segmentSet
}

// PropertyAck returns the topic command results are published on.
func (t Topics) PropertyAck(deviceID, property string) string {
	return t.PropertyState(deviceID, property) + "/" + segmentAck
}

// DeviceCommands returns the filter matching every command topic of a device.
func (t Topics) DeviceCommands(deviceID string) string {
	return t.DeviceBase(deviceID) + "/" + wildcardSingle + "/" + segmentSet
}

// ParseCommand extracts device and property from a command topic.
func (t Topics) ParseCommand(topic string) (deviceID, property string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Base+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != segmentSet || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// BridgeStatus returns the bridge availability topic.
func (t Topics) BridgeStatus(bridgeID string) string {
	return t.Base + "/" + segmentBridge + "/" + bridgeID + "/" + segmentStatus
}

// BridgeHealth returns the bridge health topic.
func (t Topics) BridgeHealth(bridgeID string) string {
	return t.Base + "/" + segmentBridge + "/" + bridgeID + "/" + segmentHealth
}

// RegisterRx returns the topic a device's inbound frames arrive on.
func (t Topics) RegisterRx(deviceID string) string {
	return t.Registers + "/" + deviceID + "/" + segmentRx
}

// RegisterTx returns the topic raw writes are sent on.
func (t Topics) RegisterTx(deviceID string) string {
	return t.Registers + "/" + deviceID + "/" + segmentTx
}

// AllRegisterRx returns the filter matching every device's inbound frames.
func (t Topics) AllRegisterRx() string {
	return t.Registers + "/" + wildcardSingle + "/" + segmentRx
}

// ParseRegisterRx extracts the device id from an inbound frame topic.
func (t Topics) ParseRegisterRx(topic string) (deviceID string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Registers+"/")
	if !found {
		return "", false
	}
	deviceID, suffix, found := strings.Cut(rest, "/")
	if !found || suffix != segmentRx || deviceID == "" {
		return "", false
	}
	return deviceID, true
}
