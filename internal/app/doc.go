// Package app wires the dashboard service together and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Initialize telemetry and business metrics
//	2. Build the load pipeline and the session store
//	3. Start the WebSocket hub
//	4. Create the dashboard and health services
//	5. Set up HTTP handlers and middleware
//	6. Configure the HTTP server
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Active requests complete, dashboard
// connections are closed, the session store is released and metrics are
// flushed before Run returns.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
