package config

// Application constants shared across binaries.
const (
	AppName    = "P3DH"
	AppVersion = "1.0.0"

	// File layout (relative to the executable directory)
	DefaultDataDir      = "data"
	DefaultDownloadsDir = "data/downloads"
	DefaultMappingDir   = "data/mapping"
	DefaultLogsDir      = "logs"
	DefaultDBFile       = "data/p3dh.db"

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "p3dh.log"
)
