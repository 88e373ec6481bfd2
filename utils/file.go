package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// StripArchiveExts removes archive and container extensions from a scene
// filename, e.g. S1A_...SAFE.zip -> S1A_...
func StripArchiveExts(path string) (name string) {
	name = filepath.Base(path)
	for _, ext := range []string{".zip", ".SAFE", ".E1", ".E2", ".N1"} {
		name = strings.TrimSuffix(name, ext)
	}
	return
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
