package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	envOrganizationID = "LEARNINGS_ORG_ID"
	envSpaceID        = "LEARNINGS_SPACE_ID"
)

// GlobalConfig is the per-user configuration stored in config.json.
type GlobalConfig struct {
	APIURL         string `json:"api_url"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	SpaceID        string `json:"space_id"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "learnings"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config.json file.
// Returns nil config (not error) if file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Scope identifies the space every learnings command works on.
type Scope struct {
	OrganizationID string
	SpaceID        string
}

// ResolveScope applies the cascade flag → env → global config.
func ResolveScope(cmd *cobra.Command) (Scope, error) {
	var s Scope
	if cmd != nil {
		s.OrganizationID = flagString(cmd, "org")
		s.SpaceID = flagString(cmd, "space")
	}
	if s.OrganizationID == "" {
		s.OrganizationID = os.Getenv(envOrganizationID)
	}
	if s.SpaceID == "" {
		s.SpaceID = os.Getenv(envSpaceID)
	}

	if s.OrganizationID == "" || s.SpaceID == "" {
		globalConfig, err := LoadGlobalConfig()
		if err != nil {
			return Scope{}, err
		}
		if globalConfig != nil {
			if s.OrganizationID == "" {
				s.OrganizationID = globalConfig.OrganizationID
			}
			if s.SpaceID == "" {
				s.SpaceID = globalConfig.SpaceID
			}
		}
	}

	if s.OrganizationID == "" || s.SpaceID == "" {
		return Scope{}, fmt.Errorf("organization and space not set (run 'learnings init' or set %s and %s)", envOrganizationID, envSpaceID)
	}
	return s, nil
}

// Path returns the learnings API path of the scope with suffix appended.
func (s Scope) Path(suffix string) string {
	return "/organizations/" + url.PathEscape(s.OrganizationID) +
		"/spaces/" + url.PathEscape(s.SpaceID) + "/learnings" + suffix
}
