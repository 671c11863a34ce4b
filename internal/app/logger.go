package app

import (
	"strings"

	"github.com/charlesng35/internai/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
// Development environments get the console encoder.
func ConfigureLogging(level string, development bool) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	if development {
		return logger.Init(level, logger.WithDevelopment())
	}
	return logger.Init(level)
}
