// Package config loads the bot's immutable runtime configuration

package config

import (
	"bufio"
	"os"
	"strings"
)

// ReadEnvConfig reads env.config (KEY=VALUE). A missing file yields an empty map.
func ReadEnvConfig(path string) map[string]string {
	values := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		return values
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		values[key] = value
	}
	return values
}

// envLookup resolves a key from the process environment first, then env.config.
type envLookup struct {
	file map[string]string
}

func (e envLookup) get(keys ...string) (string, bool) {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v, true
		}
	}
	for _, k := range keys {
		if v := strings.TrimSpace(e.file[k]); v != "" {
			return v, true
		}
	}
	return "", false
}
