// Package api serves the controller's read-only HTTP status API.
//
// Routes:
//
//	GET /api/v1/health     200 while MQTT is connected, 503 otherwise
//	GET /api/v1/metrics    JSON snapshot: uptime, runtime, MQTT, doors, climate
//	GET /api/v1/doors      door status list
//	GET /api/v1/doors/{id} one door
//	GET /metrics           Prometheus exposition
//
// Doors cannot be commanded over HTTP; MQTT is the only control path.
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
