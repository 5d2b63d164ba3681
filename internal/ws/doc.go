// Package ws lets rempl environments outside the host process connect over
// WebSocket.
//
// Every connection becomes a transport endpoint: text messages carry one JSON
// envelope {channel, payload} each way, inbound envelopes are posted to the
// host window in arrival order, and the host transport's replies are queued
// to a per-connection writer. Inbound traffic is limited per connection with
// a token bucket; excess messages are dropped and counted.
//
// Closing a connection detaches the endpoint and removes its transport
// binding, so pending callbacks for that environment are released.
//
// Example Usage:
//
//	handler := ws.NewHandler(window, tr, ws.DefaultConfig(), metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
