// Package hub connects appliance properties to a home-automation hub over
// MQTT.
//
// Outbound, every property value the engine derives is published retained
// to {base}/{device}/{property}, and each device's discovery document is
// published retained to {discovery_prefix}/device/{device}/config.
//
// Inbound, {base}/{device}/+/set commands are parsed and queued to a
// single worker that applies them in arrival order, so a slow device never
// stalls the MQTT client. Each command gets a correlation id and a result
// on {base}/{device}/{property}/ack.
//
// A HealthReporter publishes a retained JSON health message on an interval.
package hub
