package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	setupLogger("debug")
	require.Equal(t, log.DebugLevel, log.GetLevel())

	setupLogger("not-a-level")
	require.Equal(t, log.InfoLevel, log.GetLevel())

	formatter, ok := log.StandardLogger().Formatter.(*log.TextFormatter)
	require.True(t, ok)
	require.True(t, formatter.FullTimestamp)
}
