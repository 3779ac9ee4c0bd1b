// Package config loads and validates the appliance bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with APPBRIDGE_* environment variables
//   - Validation of required fields and the device list
//   - Default value handling
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(config.GetConfigPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.ID, d.Model)
//	}
package config
