// Package settings provides configuration loading for git-rescribe.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/paths"
)

// DefaultFetchConcurrency bounds concurrent commit reads during extraction.
const DefaultFetchConcurrency = 8

var (
	// SettingsFile is the path to the settings file, relative to the repository root
	SettingsFile = filepath.Join(paths.SettingsDir, "settings.json")
	// SettingsLocalFile overrides SettingsFile and is meant to stay uncommitted
	SettingsLocalFile = filepath.Join(paths.SettingsDir, "settings.local.json")
)

// Settings represents the .rescribe/settings.json configuration
type Settings struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// Can be overridden by RESCRIBE_LOG_LEVEL environment variable.
	LogLevel string `json:"log_level,omitempty"`

	// Editor is the command used to edit the plan file. GIT_EDITOR still
	// takes precedence; when empty, git's own editor choice is used.
	Editor string `json:"editor,omitempty"`

	// AssumeYes skips the confirmation prompt, as if --yes were passed.
	AssumeYes bool `json:"assume_yes,omitempty"`

	// FetchConcurrency bounds concurrent commit reads during extraction.
	FetchConcurrency int `json:"fetch_concurrency,omitempty"`
}

// Load loads settings from .rescribe/settings.json, then applies any
// overrides from .rescribe/settings.local.json if it exists.
// Returns default settings if neither file exists.
func Load() (*Settings, error) {
	settingsFileAbs, err := paths.AbsPath(SettingsFile)
	if err != nil {
		settingsFileAbs = SettingsFile
	}
	localSettingsFileAbs, err := paths.AbsPath(SettingsLocalFile)
	if err != nil {
		localSettingsFileAbs = SettingsLocalFile
	}
	return LoadFrom(settingsFileAbs, localSettingsFileAbs)
}

// LoadFrom loads settings from explicit base and local override paths.
func LoadFrom(basePath, localPath string) (*Settings, error) {
	settings, err := loadFromFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(localPath) //nolint:gosec // path is from AbsPath or constant
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
	} else if err := mergeJSON(settings, localData); err != nil {
		return nil, fmt.Errorf("merging local settings: %w", err)
	}

	applyDefaults(settings)
	return settings, nil
}

func loadFromFile(filePath string) (*Settings, error) {
	settings := &Settings{}

	data, err := os.ReadFile(filePath) //nolint:gosec // path is from caller
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(settings)
			return settings, nil
		}
		return nil, fmt.Errorf("%w", err)
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	applyDefaults(settings)

	return settings, nil
}

// mergeJSON merges JSON data into existing settings.
// Only fields present in the JSON override existing settings.
func mergeJSON(settings *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	if v, ok := raw["log_level"]; ok {
		var ll string
		if err := json.Unmarshal(v, &ll); err != nil {
			return fmt.Errorf("parsing log_level field: %w", err)
		}
		if ll != "" {
			settings.LogLevel = ll
		}
	}

	if v, ok := raw["editor"]; ok {
		var e string
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("parsing editor field: %w", err)
		}
		if e != "" {
			settings.Editor = e
		}
	}

	if v, ok := raw["assume_yes"]; ok {
		var y bool
		if err := json.Unmarshal(v, &y); err != nil {
			return fmt.Errorf("parsing assume_yes field: %w", err)
		}
		settings.AssumeYes = y
	}

	if v, ok := raw["fetch_concurrency"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("parsing fetch_concurrency field: %w", err)
		}
		settings.FetchConcurrency = n
	}

	return nil
}

func applyDefaults(settings *Settings) {
	if settings.FetchConcurrency <= 0 {
		settings.FetchConcurrency = DefaultFetchConcurrency
	}
}
