package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the repository-level configuration this tool reads from
// .git/config. Everything has a default; only explicitly invalid values
// are errors.
type Config struct {
	// MainBranch is the configured main branch. May name a local branch
	// ("master") or a remote-tracking branch ("origin/main").
	MainBranch string

	// Horizon bounds how many commits a single ancestry walk will visit.
	Horizon int
}

// Default configuration values.
const (
	DefaultMainBranch = "master"
	DefaultHorizon    = 1000
)

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Key   string
	Value string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s=%q: %s", e.Key, e.Value, e.Msg)
}

// LoadConfig reads the [sprig] section of .git/config. A missing file or
// missing section yields the defaults.
func (g *GitDir) LoadConfig() (*Config, error) {
	cfg := &Config{MainBranch: DefaultMainBranch, Horizon: DefaultHorizon}

	raw, err := os.ReadFile(filepath.Join(g.dir, "config"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	section := ""
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.Fields(strings.Trim(line, "[]"))[0])
			continue
		}
		if section != "sprig" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "mainbranch":
			if value == "" {
				return nil, &ConfigError{Key: "sprig.mainbranch", Value: value, Msg: "empty branch name"}
			}
			cfg.MainBranch = value
		case "horizon":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, &ConfigError{Key: "sprig.horizon", Value: value, Msg: "must be a positive integer"}
			}
			cfg.Horizon = n
		}
	}

	return cfg, nil
}
