package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ResolvePlugin finds the executable for path. A bare name is looked up
// in PATH; anything containing a separator must exist and be executable.
func ResolvePlugin(path string) (string, error) {
	if !strings.ContainsRune(path, os.PathSeparator) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("plugin not found in PATH: %s", path)
		}
		return resolved, nil
	}
	if err := ValidatePlugin(path); err != nil {
		return "", err
	}
	return path, nil
}

// ValidatePlugin validates that a plugin executable exists and is valid
func ValidatePlugin(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("plugin not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat plugin: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("plugin is a directory: %s", path)
	}

	// Don't run the plugin here, it reads from stdin and would hang
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("plugin is not executable: %s", path)
	}
	return nil
}
