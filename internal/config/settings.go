package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const VERSION = "0.3.0"

// SettingsFilename is the name of the tool settings file
const SettingsFilename = "settings"

// SettingsType is the type of settings file (yaml, json, toml)
const SettingsType = "yaml"

// Tool-level settings keys. These control how submissions run, as opposed
// to the per-job submission config file.
const (
	KeySubmitJob       = "submit_job"
	KeySafeJobTime     = "safe_job_time"
	KeyBackup          = "backup"
	KeyRestartCopyMode = "restart_copy_mode"
)

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (AUTOSPICE_*)
// 3. User settings file (~/.config/autospice/settings.yaml)
// 4. System settings file (/etc/autospice/settings.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(SettingsFilename)
	viper.SetConfigType(SettingsType)

	// User settings (highest priority)
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "autospice"))
	}

	// Home directory fallback
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".autospice"))
	}

	// System-wide settings (lower priority)
	viper.AddConfigPath("/etc/autospice")

	// Current directory (for development)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("AUTOSPICE")
	viper.AutomaticEnv()

	setDefaults()

	// Read settings file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading settings file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault(KeySubmitJob, true)
	viper.SetDefault(KeySafeJobTime, true)
	viper.SetDefault(KeyBackup, true)
	viper.SetDefault(KeyRestartCopyMode, "new")
}

// GetUserSettingsPath returns the path to the user settings file
func GetUserSettingsPath() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".autospice", SettingsFilename+"."+SettingsType), nil
	}
	return filepath.Join(userConfigDir, "autospice", SettingsFilename+"."+SettingsType), nil
}

// SaveSettings saves current Viper settings to the user settings file
func SaveSettings() error {
	settingsPath, err := GetUserSettingsPath()
	if err != nil {
		return fmt.Errorf("failed to get settings path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(settingsPath), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := viper.WriteConfigAs(settingsPath); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
