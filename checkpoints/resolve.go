package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Resolve looks for a checkpoint to resume from in dir. A missing or
// empty directory means a fresh start and is not an error. When several
// .ckpt files exist the most recently modified one wins.
func Resolve(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checkpoints: read %s: %w", dir, err)
	}

	var newest string
	var newestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ckpt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", false, fmt.Errorf("checkpoints: stat %s: %w", e.Name(), err)
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, e.Name())
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", false, nil
	}
	return newest, true, nil
}
