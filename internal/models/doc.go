// Package models holds the catalogue of supported appliance models.
//
// A Model couples the field declaration of one appliance type with the hub
// entities it exposes. Devices are created from configuration by model id:
//
//	m, err := models.Lookup("RAC_056905_WW")
//	reg, err := m.Registry()
//
// Adding a model means writing a Declare function and registering it in
// the catalogue.
package models
