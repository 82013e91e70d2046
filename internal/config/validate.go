package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values that would break the render or slice timers are
// clamped to safe defaults. Other validation errors are logged as warnings
// but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("server_url %q is not a valid URL: %w", c.ServerURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("server_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.AuthToken != "" {
		for _, r := range c.AuthToken {
			if unicode.IsControl(r) {
				errs = append(errs, fmt.Errorf("auth_token contains control characters"))
				break
			}
		}
	}

	if c.CanvasWidth < 16 || c.CanvasHeight < 16 {
		errs = append(errs, fmt.Errorf("canvas %dx%d is below minimum 16x16, resetting to 1920x1080", c.CanvasWidth, c.CanvasHeight))
		c.CanvasWidth = 1920
		c.CanvasHeight = 1080
	}

	if c.FrameRate < 1 {
		errs = append(errs, fmt.Errorf("frame_rate %d is below minimum 1, clamping", c.FrameRate))
		c.FrameRate = 1
	} else if c.FrameRate > 120 {
		errs = append(errs, fmt.Errorf("frame_rate %d exceeds maximum 120, clamping", c.FrameRate))
		c.FrameRate = 120
	}

	if c.SliceIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("slice_interval_seconds %d is below minimum 1, clamping", c.SliceIntervalSeconds))
		c.SliceIntervalSeconds = 1
	} else if c.SliceIntervalSeconds > 60 {
		errs = append(errs, fmt.Errorf("slice_interval_seconds %d exceeds maximum 60, clamping", c.SliceIntervalSeconds))
		c.SliceIntervalSeconds = 60
	}

	if c.SuggestionIntervalSeconds < 5 {
		errs = append(errs, fmt.Errorf("suggestion_interval_seconds %d is below minimum 5, clamping", c.SuggestionIntervalSeconds))
		c.SuggestionIntervalSeconds = 5
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
