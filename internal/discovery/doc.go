// Package discovery builds the Home Assistant device discovery document for
// an appliance.
//
// A model declares its hub entities as Components. Each Component binds
// hub option keys to property names; Build turns the bindings into state
// and command topics and pulls units and option lists from the field
// descriptors, so the document always matches what the engine publishes.
//
// Topic templates may use two placeholders:
//
//	$this      the device's base topic (e.g. "graylogic/appliances/ac-1")
//	$deviceid  the device id
//
// The document is built once when a device is constructed and treated as
// opaque configuration by the hub bridge.
package discovery
