// Package services implements the business logic layer between the HTTP
// handlers and the fact store.
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//
// The package provides two services:
//
//	- FactsService: filtered queries, CSV export and dimension listings
//	  over the merged fact store
//	- HealthService: health, liveness, readiness and version reporting
//
// Services return wrapped store errors unchanged so handlers can map
// sentinels like store.ErrNotFound onto problem responses. Query
// durations and served-fact counts are recorded on the business metrics
// when a meter is configured.
package services
