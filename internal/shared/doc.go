// Package shared provides common utilities and test helpers used across
// the codebase. It is the home for functionality that doesn't belong to
// any specific domain or architectural layer.
//
// # Structure
//
//   - testutil: testing utilities, currently the buffered slog handler
//     used to assert on structured log output
//
// # Usage Guidelines
//
// This package should only contain:
//
//  1. Test utilities used by multiple packages
//  2. Generic helpers with no domain-specific logic
//
// It should NOT contain business logic, and it must never import other
// internal packages, so that every layer can depend on it freely.
package shared
