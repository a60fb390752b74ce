package verify

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileQuarantine moves files failing fingerprint verification into a
// directory sibling to wherever they were downloaded, per spec §4.8 /
// §4.10 ("move to a sibling directory").
type FileQuarantine struct {
	// DirName is the quarantine directory's name, created as a sibling of
	// each file's parent directory. Defaults to "quarantine".
	DirName string
}

func (q *FileQuarantine) dirName() string {
	if q.DirName != "" {
		return q.DirName
	}
	return "quarantine"
}

// Move relocates filePath into <parent-of-parent>/<DirName>/<basename>,
// creating the quarantine directory if needed, and returns the new path.
func (q *FileQuarantine) Move(filePath string) (string, error) {
	parent := filepath.Dir(filePath)
	quarantineDir := filepath.Join(filepath.Dir(parent), q.dirName())

	if err := os.MkdirAll(quarantineDir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	dest := filepath.Join(quarantineDir, filepath.Base(filePath))
	if err := os.Rename(filePath, dest); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return dest, nil
}
