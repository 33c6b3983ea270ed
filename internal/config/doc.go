// Package config provides centralized configuration management for the
// P3DH ingestion and facts services. It handles loading configuration from
// multiple sources, validation, and the resolved filesystem paths shared
// by every binary.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file
//	3. Built-in defaults (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern P3DH_* for namespacing:
//
//	P3DH_SERVER_PORT=8080
//	P3DH_LOGGING_LEVEL=debug
//	P3DH_PATHS_DATA_DIR=/var/lib/p3dh/data
//	P3DH_SECURITY_RATE_LIMIT_RPS=200
//
// Duration fields use Go duration syntax when set through the
// environment, e.g. P3DH_SERVER_READ_TIMEOUT=30s. The configuration file
// itself is located through P3DH_CONFIG or found at config.yaml or
// configs/config.yaml relative to the working directory.
//
// # Path Management
//
// Relative path entries resolve against the executable directory, never
// the working directory, so binaries behave the same wherever they are
// started from:
//
//	paths, err := cfg.ResolvedPaths()
//	db := paths.DBFile
//	workbooks := paths.MappingDir
//
// # Validation
//
// The assembled configuration is validated at load time against the
// struct tags (port ranges, log levels, required paths).
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
