// Package config loads runtime settings from an optional YAML file and the
// environment.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"

	"safefs/internal/logging"
)

// Config holds every runtime setting. Environment variables override values
// read from a file.
type Config struct {
	// LogLevel - error, warn, info, debug or trace
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// LogLongFile - include the full source path in log lines
	LogLongFile bool `yaml:"log_long_file" env:"LOG_LONGFILE"`

	// LogFile - write logs to this file, rotated, instead of stderr
	LogFile string `yaml:"log_file" env:"SAFEFS_LOG_FILE"`

	// LogMaxSizeMB - size at which the log file is rotated
	LogMaxSizeMB int `yaml:"log_max_size_mb" env:"SAFEFS_LOG_MAX_SIZE" env-default:"50"`

	// LogMaxBackups - rotated log files kept
	LogMaxBackups int `yaml:"log_max_backups" env:"SAFEFS_LOG_MAX_BACKUPS" env-default:"3"`

	// UID/GID - owner reported for every node; -1 reports the source owner.
	// A zero in a file counts as unset and takes the default, so root
	// ownership has to come from PUID=0 / PGID=0.
	UID int `yaml:"uid" env:"PUID" env-default:"-1"`
	GID int `yaml:"gid" env:"PGID" env-default:"-1"`

	// BackupCount - state backups kept next to the state file
	BackupCount int `yaml:"backup_count" env:"SAFEFS_BACKUP_COUNT" env-default:"5"`

	// AllowOther - let other users access the mount
	AllowOther bool `yaml:"allow_other" env:"SAFEFS_ALLOW_OTHER"`
}

// Load reads path when it is non-empty, otherwise the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogMaxSizeMB < 0 || c.LogMaxBackups < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	if c.BackupCount < 0 {
		return fmt.Errorf("backup_count must not be negative, got %d", c.BackupCount)
	}
	if c.UID < -1 || c.GID < -1 {
		return fmt.Errorf("uid and gid must be -1 or a valid id, got %d:%d", c.UID, c.GID)
	}
	return nil
}

// Usage returns a description of the supported environment variables.
func Usage() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return text
}
