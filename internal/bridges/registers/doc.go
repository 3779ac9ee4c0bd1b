// Package registers carries raw register traffic between appliances and
// the bridge over MQTT.
//
// Each message is one CBOR-encoded Frame with integer map keys and
// canonical ordering:
//
//	{registers}/{device}/rx   appliance -> bridge, one or more registers
//	{registers}/{device}/tx   bridge -> appliance, one register per write
//
// Transport implements the engine's RawSender contract for outbound writes
// and feeds inbound frames to a Sink (normally the device Manager) in
// frame order.
package registers
