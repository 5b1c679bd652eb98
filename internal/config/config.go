package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Cellranger contains settings for the external cellranger binary.
type Cellranger struct {
	// Binary is the cellranger executable; a bare name is resolved via PATH.
	Binary string `toml:"binary"`
	// UIPort is forwarded to cellranger invocations that expose a UI.
	UIPort int `toml:"uiport"`
	// FastqSubdir is the path under {demux_dir}/{run} where mkfastq places
	// demultiplexed reads. Kept configurable because cellranger releases
	// have moved it.
	FastqSubdir string `toml:"fastq_subdir"`
	// Normalization is the default normalization strategy for aggr.
	Normalization string `toml:"normalization"`
	// UIMarkerDelaySeconds is how long to wait after launch before the first
	// probe of the _uiport marker file.
	UIMarkerDelaySeconds int `toml:"ui_marker_delay_seconds"`
	// UIMarkerTimeoutSeconds bounds the marker poll.
	UIMarkerTimeoutSeconds int `toml:"ui_marker_timeout_seconds"`
}

// Pipeline contains orchestration policy settings.
type Pipeline struct {
	// ContinueOnError makes run/sample failures skip-and-continue instead of
	// aborting the whole batch.
	ContinueOnError bool `toml:"continue_on_error"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all tool-level settings for strand.
type Config struct {
	Cellranger Cellranger `toml:"cellranger"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default settings file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/strand/config.toml")
}

// Load locates, parses, and validates a settings file. A missing file yields
// defaults. The returned bool reports whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample settings file to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}
