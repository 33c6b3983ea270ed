// Package app provides application initialization and lifecycle management
// for the facts API server. It wires configuration loading, service
// initialization, routing and graceful shutdown into one composition root.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//	1. Load configuration from defaults, file and environment
//	2. Initialize logging and observability
//	3. Open the SQLite store (creating the schema when absent)
//	4. Initialize services with their dependencies
//	5. Set up HTTP handlers and middleware
//	6. Configure the HTTP server
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains active requests within
// the configured shutdown timeout, closes the database and flushes the
// telemetry providers. Initialization errors are returned to the caller;
// the package never calls os.Exit() itself.
package app
