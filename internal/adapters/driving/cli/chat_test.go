package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCmd_SendsMessage(t *testing.T) {
	completion := setupTestServices(t)
	completion.reply = "bonjour"

	out, err := executeCommand(t, "chat", "hello there")

	require.NoError(t, err)
	assert.Contains(t, out, "bonjour")
}

func TestChatCmd_ListEmpty(t *testing.T) {
	setupTestServices(t)

	out, err := executeCommand(t, "chat", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No chats yet.")
}

func TestChatCmd_ListAfterMessage(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "chat", "hello")
	require.NoError(t, err)

	out, err := executeCommand(t, "chat", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "messages)")
}

func TestChatCmd_DeleteUnknown(t *testing.T) {
	setupTestServices(t)

	_, err := executeCommand(t, "chat", "delete", "no-such-chat")

	assert.Error(t, err)
}
