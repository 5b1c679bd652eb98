package config

import (
	"errors"
	"fmt"
)

// Validate ensures the settings are usable.
func (c *Config) Validate() error {
	if c.Cellranger.Binary == "" {
		return errors.New("cellranger.binary must be set")
	}
	if c.Cellranger.UIPort <= 0 || c.Cellranger.UIPort > 99999 {
		return fmt.Errorf("cellranger.uiport must be a positive port number, got %d", c.Cellranger.UIPort)
	}
	if c.Cellranger.UIMarkerDelaySeconds < 0 {
		return errors.New("cellranger.ui_marker_delay_seconds must not be negative")
	}
	if c.Cellranger.UIMarkerTimeoutSeconds <= 0 {
		return errors.New("cellranger.ui_marker_timeout_seconds must be positive")
	}
	if c.Cellranger.UIMarkerTimeoutSeconds < c.Cellranger.UIMarkerDelaySeconds {
		return errors.New("cellranger.ui_marker_timeout_seconds must be at least the marker delay")
	}
	switch c.Cellranger.Normalization {
	case "mapped", "none":
	default:
		return fmt.Errorf("cellranger.normalization must be %q or %q, got %q", "mapped", "none", c.Cellranger.Normalization)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q, got %q", "console", "json", c.Logging.Format)
	}
	return nil
}
