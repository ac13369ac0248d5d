// Package http implements the HTTP handlers of the dashboard API. Handlers
// only parse requests, call the service layer and render responses; every
// rule about sessions, tables and aggregation lives in internal/services.
//
// # Responses
//
// Successful responses share one envelope:
//
//	{"status": "success", "data": {...}}
//
// Errors are RFC 7807 problem documents produced by internal/errors:
//
//	{
//	    "type": "/problems/table-not-loaded",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "no rumah-tangga table has been uploaded in this session",
//	    "instance": "/api/v1/sessions/4b1e.../tables/rumah-tangga",
//	    "error_code": "TABLE_NOT_LOADED"
//	}
//
// # WebSocket Support
//
// GET /ws?session={id} upgrades to a Gorilla WebSocket connection that
// receives the session summary on connect and after every upload.
package http
