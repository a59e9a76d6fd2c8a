package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// readSecret returns a secret using the following priority:
// 1. the content of file, if set (surrounding whitespace trimmed)
// 2. the environment variable env
// 3. the inline value
func readSecret(name, file, env, inline string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(filepath.Clean(file))
		if err != nil {
			return "", fmt.Errorf("failed to read %s from file %s: %w", name, file, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if v := os.Getenv(env); v != "" {
		return v, nil
	}

	if inline != "" {
		return inline, nil
	}

	return "", fmt.Errorf("no %s configured: set a file, the %s environment variable or an inline value", name, env)
}
