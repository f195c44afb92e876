package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Sandbox struct {
	// Runtime is the container runtime class, runsc for gVisor isolation.
	Runtime        string  `yaml:"runtime"`
	WorkspacePath  string  `yaml:"workspace_path"`
	CPULimit       float64 `yaml:"cpu_limit"`
	MemLimitMB     int     `yaml:"mem_limit_mb"`
	PidsLimit      int     `yaml:"pids_limit"`
	NetworkMode    string  `yaml:"network_mode"`
	ExecTimeoutSec int     `yaml:"exec_timeout_sec"`
}

type Config struct {
	Listen           string            `yaml:"listen"`
	DefaultImage     string            `yaml:"default_image"`
	Images           map[string]string `yaml:"images"` // language code -> image
	PrepullImages    bool              `yaml:"prepull_images"`
	IdleDelaySeconds int               `yaml:"idle_delay_seconds"`
	SettingsDBPath   string            `yaml:"settings_db_path"`
	SourceBaseURL    string            `yaml:"source_base_url"`
	JanitorInterval  int               `yaml:"janitor_interval_seconds"`
	Sandbox          Sandbox           `yaml:"sandbox"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Listen:       "127.0.0.1:8080",
		DefaultImage: "python:3",
		Images: map[string]string{
			"py": "python:3",
		},
		IdleDelaySeconds: 300,
		SettingsDBPath:   "./werkbank.db",
		SourceBaseURL:    "https://codeload.github.com",
		JanitorInterval:  60,
		Sandbox: Sandbox{
			Runtime:        "runsc",
			WorkspacePath:  "/home/workspace",
			CPULimit:       1.0,
			MemLimitMB:     512,
			PidsLimit:      256,
			NetworkMode:    "none",
			ExecTimeoutSec: 120,
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// ImageFor returns the container image for a language code, falling back to
// the default image when no mapping is configured.
func (c *Config) ImageFor(langCode string) string {
	if img, ok := c.Images[langCode]; ok {
		return img
	}
	return c.DefaultImage
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WERKBANK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("WERKBANK_DEFAULT_IMAGE"); v != "" {
		cfg.DefaultImage = v
	}
	if v := os.Getenv("WERKBANK_IMAGES"); v != "" {
		// comma-separated lang=image pairs
		for _, pair := range strings.Split(v, ",") {
			code, img, ok := strings.Cut(pair, "=")
			if ok && code != "" && img != "" {
				cfg.Images[code] = img
			}
		}
	}
	if v := os.Getenv("WERKBANK_PREPULL_IMAGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PrepullImages = b
		}
	}
	if v := os.Getenv("WERKBANK_IDLE_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IdleDelaySeconds = n
		}
	}
	if v := os.Getenv("WERKBANK_SETTINGS_DB_PATH"); v != "" {
		cfg.SettingsDBPath = v
	}
	if v := os.Getenv("WERKBANK_SOURCE_BASE_URL"); v != "" {
		cfg.SourceBaseURL = v
	}
	if v := os.Getenv("WERKBANK_JANITOR_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.JanitorInterval = n
		}
	}
	if v := os.Getenv("WERKBANK_SANDBOX_RUNTIME"); v != "" {
		cfg.Sandbox.Runtime = v
	}
	if v := os.Getenv("WERKBANK_WORKSPACE_PATH"); v != "" {
		cfg.Sandbox.WorkspacePath = v
	}
	if v := os.Getenv("WERKBANK_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sandbox.CPULimit = f
		}
	}
	if v := os.Getenv("WERKBANK_MEM_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.MemLimitMB = n
		}
	}
	if v := os.Getenv("WERKBANK_PIDS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.PidsLimit = n
		}
	}
	if v := os.Getenv("WERKBANK_NETWORK_MODE"); v != "" {
		cfg.Sandbox.NetworkMode = v
	}
	if v := os.Getenv("WERKBANK_EXEC_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.ExecTimeoutSec = n
		}
	}
}
