// Package influxdb records appliance property history to InfluxDB v2.
//
// Every value the engine publishes can also be written as a point in the
// "appliance_property" measurement, tagged by device and property. The
// package is optional: Connect returns ErrDisabled when the influxdb
// section of config.yaml is off, and the bridge runs without it.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history off
//	}
//	defer client.Close()
//	client.Publish("ac-living", "temperature", 22.5)
package influxdb
