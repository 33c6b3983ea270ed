// Package http implements the HTTP request handlers for the facts API.
// It provides a thin layer between HTTP transport and business logic,
// keeping handlers focused solely on HTTP concerns.
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to RFC 7807
//	   problem documents via the shared ErrorHandler
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Store
//
// Successful responses use the envelope
//
//	{"status": "success", "data": ..., "count": N}
//
// except the CSV export, which streams text/csv directly.
package http
