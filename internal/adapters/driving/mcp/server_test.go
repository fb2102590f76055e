package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid ports", func(t *testing.T) {
		ports := &Ports{Knowledge: &mockKnowledgeService{}}

		server, err := NewServer(ports)

		require.NoError(t, err)
		require.NotNil(t, server)
	})

	t.Run("rejects missing knowledge service", func(t *testing.T) {
		ports := &Ports{}

		server, err := NewServer(ports)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingKnowledgeService)
		assert.Nil(t, server)
	})
}
