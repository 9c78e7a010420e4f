package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "prefect-snowflake", root.Use)

	for _, name := range []string{"version", "query", "transfer", "blocks"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := newQueryCmd(&rootFlags{})
	assert.NotNil(t, cmd.Flags().Lookup("sync"))
}

func TestTransferCommandFlags(t *testing.T) {
	cmd := newTransferCmd(&rootFlags{})
	for _, name := range []string{"table", "target-table", "stage", "job-id"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
