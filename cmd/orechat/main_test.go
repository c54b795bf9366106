package main

import (
	"testing"

	"OreChat/internal/completion"
	"OreChat/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompletionClient(t *testing.T) {
	c := config.Default().Client

	c.Mode = config.ModeStream
	client, err := newCompletionClient(c)
	require.NoError(t, err)
	assert.IsType(t, &completion.Relay{}, client)

	c.Mode = config.ModeBatch
	client, err = newCompletionClient(c)
	require.NoError(t, err)
	assert.IsType(t, &completion.Direct{}, client)

	c.Mode = "carrier-pigeon"
	_, err = newCompletionClient(c)
	assert.Error(t, err)
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["chat"])
	assert.True(t, names["journal"])
}

func TestJoinPersonas(t *testing.T) {
	assert.Equal(t, "concise|strict|warm", joinPersonas())
}
