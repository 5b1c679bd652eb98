package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if env := strings.TrimSpace(os.Getenv("STRAND_CELLRANGER")); env != "" {
		c.Cellranger.Binary = env
	}
	c.Cellranger.Binary = strings.TrimSpace(c.Cellranger.Binary)
	if c.Cellranger.Binary == "" {
		c.Cellranger.Binary = defaultCellrangerBinary
	}

	// The fastq subdir is run-relative; strip separators so joins stay clean.
	c.Cellranger.FastqSubdir = strings.Trim(strings.TrimSpace(c.Cellranger.FastqSubdir), "/")
	if c.Cellranger.FastqSubdir == "" {
		c.Cellranger.FastqSubdir = defaultFastqSubdir
	}

	c.Cellranger.Normalization = strings.TrimSpace(c.Cellranger.Normalization)
	if c.Cellranger.Normalization == "" {
		c.Cellranger.Normalization = defaultNormalization
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	if strings.ContainsAny(c.Cellranger.Binary, "/~") {
		expanded, err := expandPath(c.Cellranger.Binary)
		if err != nil {
			return err
		}
		c.Cellranger.Binary = expanded
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			usr, usrErr := user.Current()
			if usrErr != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			home = usr.HomeDir
		}
		if trimmed == "~" {
			trimmed = home
		} else if strings.HasPrefix(trimmed, "~/") {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("absolutize %q: %w", trimmed, err)
	}
	return abs, nil
}
