package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golfvision/golfball-detection-service/config"
)

// resolveRuntimeLib turns the configured library location into a path for
// the dynamic loader. A directory is searched for the platform library;
// a bare file name is left to the loader's search path.
func resolveRuntimeLib(path string) (string, error) {
	st, err := os.Stat(path)
	switch {
	case err == nil && st.IsDir():
		lib := filepath.Join(path, config.DefaultRuntimeLib())
		if _, err := os.Stat(lib); err != nil {
			return "", fmt.Errorf("onnxruntime library not found in %s: %w", path, err)
		}
		return filepath.Abs(lib)
	case err == nil:
		return filepath.Abs(path)
	case !strings.ContainsRune(path, os.PathSeparator) && !strings.ContainsRune(path, '/'):
		return path, nil
	default:
		return "", fmt.Errorf("onnxruntime library not found: %w", err)
	}
}
