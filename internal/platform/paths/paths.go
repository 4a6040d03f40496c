// Package paths resolves the daemon's on-disk layout: config, rules,
// memory and log locations under a single data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const dataDirEnv = "PHYSICAL_MCP_DATA_DIR"

// DefaultDataDirName is the directory created under the user's home
// directory when PHYSICAL_MCP_DATA_DIR is not set.
const DefaultDataDirName = ".physical-mcp"

// ResolveDataRoot returns the absolute path to the daemon's data
// directory, honoring PHYSICAL_MCP_DATA_DIR.
func ResolveDataRoot() string {
	if root := os.Getenv(dataDirEnv); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), DefaultDataDirName)
	}
	return filepath.Join(home, DefaultDataDirName)
}

// ResolveConfigPath returns the absolute path to config.yaml, honoring
// an explicit override (e.g. --config on the CLI).
func ResolveConfigPath(customPath string) string {
	if customPath != "" {
		return customPath
	}
	return filepath.Join(ResolveDataRoot(), "config.yaml")
}

// ResolveRulesPath returns the absolute path to rules.yaml.
func ResolveRulesPath(customPath string) string {
	if customPath != "" {
		return customPath
	}
	return filepath.Join(ResolveDataRoot(), "rules.yaml")
}

// ResolveMemoryPath returns the absolute path to memory.md.
func ResolveMemoryPath(customPath string) string {
	if customPath != "" {
		return customPath
	}
	return filepath.Join(ResolveDataRoot(), "memory.md")
}

// ResolveLogDir returns the absolute path to the logs subdirectory.
func ResolveLogDir() string {
	return filepath.Join(ResolveDataRoot(), "logs")
}

// SnapshotFramePath is the well-known temp path external notifiers
// read the latest frame from.
func SnapshotFramePath() string {
	return filepath.Join(os.TempDir(), "physical-mcp-frame.jpg")
}

// EnsureDirs creates the standard data subdirectories if missing.
func EnsureDirs() error {
	root := ResolveDataRoot()
	for _, sub := range []string{"", "logs", "cache"} {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SafeJoin joins path elements under base, rejecting traversal outside it.
func SafeJoin(base string, elements ...string) (string, error) {
	for _, el := range elements {
		if filepath.IsAbs(el) {
			return "", fmt.Errorf("path traversal attempt detected: absolute element %q not allowed", el)
		}
	}
	joined := filepath.Join(append([]string{base}, elements...)...)

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != absBase && !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s is outside %s", absJoined, absBase)
	}
	return absJoined, nil
}
