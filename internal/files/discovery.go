// Package files locates P3DH download folders on disk. A download folder
// is any directory the data provider dropped that holds batch metadata
// and at least one fact file; nothing else qualifies.
package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const (
	metadataFile    = "parameters.csv"
	factFilePattern = "k_*.csv"
)

// DiscoverBatchDirs walks root recursively and returns every directory
// containing parameters.csv and at least one fact file, sorted by path.
// Unreadable subtrees are skipped; the scan is best effort.
func DiscoverBatchDirs(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s: not a directory", root)
	}

	var dirs []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if isBatchDir(path) {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(dirs)
	return dirs, nil
}

func isBatchDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return false
	}
	matches, _ := filepath.Glob(filepath.Join(dir, factFilePattern))
	return len(matches) > 0
}
