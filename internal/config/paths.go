package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the absolute locations every binary works with.
// This is the single source of truth for file paths in the application.
type Paths struct {
	ExecutableDir string
	DataDir       string
	DownloadsDir  string
	MappingDir    string
	LogsDir       string
	DBFile        string
}

// Resolve builds the absolute path set from the configured directories.
// Relative entries resolve against the executable directory, never the
// current working directory, so binaries behave the same whether run from
// a checkout or an installed tree.
//
// Directory layout with the default configuration:
//
//	<executable dir>/
//	  ├── data/
//	  │   ├── downloads/   (provider batch folders, one per module and period)
//	  │   ├── mapping/     (annotated layout workbooks)
//	  │   └── p3dh.db      (SQLite database)
//	  └── logs/
func (pc PathsConfig) Resolve() (*Paths, error) {
	exeDir, err := executableDir()
	if err != nil {
		return nil, err
	}

	abs := func(path string) string {
		if filepath.IsAbs(path) {
			return path
		}
		return filepath.Join(exeDir, path)
	}

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       abs(pc.DataDir),
		DownloadsDir:  abs(pc.DownloadsDir),
		MappingDir:    abs(pc.MappingDir),
		LogsDir:       abs(pc.LogsDir),
		DBFile:        abs(pc.DBFile),
	}, nil
}

// executableDir locates the directory of the running binary with symlinks
// resolved.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DownloadsDir,
		p.MappingDir,
		p.LogsDir,
		filepath.Dir(p.DBFile),
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// GetDownloadPath returns the path of a file below the downloads directory.
func (p *Paths) GetDownloadPath(name string) string {
	return filepath.Join(p.DownloadsDir, name)
}

// GetMappingPath returns the path of a mapping workbook.
func (p *Paths) GetMappingPath(name string) string {
	return filepath.Join(p.MappingDir, name)
}

// GetLogPath returns the path of a log file.
func (p *Paths) GetLogPath(name string) string {
	return filepath.Join(p.LogsDir, name)
}

// GetRelativePath returns a path relative to the executable directory
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved path set for debugging.
func (p *Paths) LogPathResolution() {
	slog.Default().Debug("path resolution summary",
		slog.Group("directories",
			slog.String("executable", p.ExecutableDir),
			slog.String("data", p.DataDir),
			slog.String("downloads", p.DownloadsDir),
			slog.String("mapping", p.MappingDir),
			slog.String("logs", p.LogsDir),
		),
		slog.String("db_file", p.DBFile))
}
