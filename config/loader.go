package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/agentd/errors"
	"github.com/grovetools/agentd/pkg/paths"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses an explicit agentd configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	return LoadFromBytes(data)
}

// LoadDefault loads the configuration with hierarchical merging:
// 1. Built-in defaults - base layer
// 2. Global config (~/.config/agentd/agentd.yml) - overrides defaults
// 3. Project config (agentd.yml, searched upward from cwd) - overrides global
// 4. Local override (agentd.override.yml) - overrides all
//
// All layers are optional; with no files present the defaults are returned.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the
// given directory.
func LoadFrom(startDir string) (*Config, error) {
	finalConfig := &Config{}

	// 1. Global config, if present
	globalPath := globalConfigPath()
	if globalPath != "" {
		if cfg, err := loadRaw(globalPath); err == nil && cfg != nil {
			finalConfig = cfg
		}
	}

	// 2. Project config, searched upward from startDir
	projectPath := findConfigFile(startDir)
	if projectPath != "" {
		data, err := os.ReadFile(projectPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read project config").
				WithDetail("path", projectPath)
		}
		expanded := expandEnvVars(string(data))
		var projectConfig Config
		if err := yaml.Unmarshal([]byte(expanded), &projectConfig); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse project config").
				WithDetail("path", projectPath)
		}
		finalConfig = mergeConfigs(finalConfig, &projectConfig)

		// 3. Local overrides next to the project config
		projectDir := filepath.Dir(projectPath)
		overrideFiles := []string{
			filepath.Join(projectDir, "agentd.override.yml"),
			filepath.Join(projectDir, "agentd.override.yaml"),
			filepath.Join(projectDir, ".agentd.override.yml"),
			filepath.Join(projectDir, ".agentd.override.yaml"),
		}
		for _, overridePath := range overrideFiles {
			if cfg, err := loadRaw(overridePath); err == nil && cfg != nil {
				finalConfig = mergeConfigs(finalConfig, cfg)
			}
		}
	}

	finalConfig.SetDefaults()
	if err := finalConfig.Validate(); err != nil {
		return nil, err
	}

	return finalConfig, nil
}

// LoadFromBytes parses configuration from a byte array.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadRaw reads and parses a config layer without defaults or validation.
// Missing or unreadable files return (nil, err).
func loadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := expandEnvVars(string(data))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile searches from startDir up to the filesystem root for an
// agentd config file. Returns "" when none exists.
func findConfigFile(startDir string) string {
	configNames := []string{
		"agentd.yml",
		"agentd.yaml",
		".agentd.yml",
		".agentd.yaml",
	}

	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// globalConfigPath returns the XDG config path for agentd.
func globalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "agentd.yml")
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
