// Package api provides the HTTP REST API and WebSocket server for the
// appliance bridge.
//
// It exposes device state, property writes and transform failures to local
// tooling, and streams published property values on /ws. Property writes
// and republish need a bearer token with control scope; /ws needs read
// scope (see package auth).
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
