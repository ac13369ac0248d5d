// Package services implements the business logic layer of the dashboard. It
// sits between the HTTP handlers and the pipeline, session store and
// WebSocket hub, so that handlers only translate requests and responses.
//
// # Available Services
//
//	- DashboardService: sessions, uploads, Google Sheets imports, table and
//	  aggregate views, selector options and exports
//	- HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Services return errors from internal/errors that the HTTP layer renders as
// RFC 7807 problem documents:
//
//	- APIError for unknown kinds, sessions, tables and invalid input
//	- dataprocessing.LoadError for uploads that cannot be parsed
//	- AppError for storage and export failures
//
// # Sessions
//
// A session holds at most one table per kind. An upload is parsed outside
// any lock; only the final read-modify-write of the session is serialized,
// so two uploads for the same session never lose each other's table.
package services
