package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internai/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	restore := logger.Replace(nil)
	t.Cleanup(func() { restore() })

	require.NoError(t, ConfigureLogging("debug", true))
	require.True(t, logger.Logger().Core().Enabled(-1))

	require.NoError(t, ConfigureLogging("", false))
	require.False(t, logger.Logger().Core().Enabled(-1))
}
