package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

var chatID string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant",
	Long: `Send a message to the assistant and stream the reply.

With a message argument, sends it and exits. Without arguments, starts an
interactive session; type 'exit' or press Ctrl-D to leave.

The selected knowledge repository contributes context automatically: small
corpora are inlined, large ones are searched through a retrieval tool.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	RunE:  runChatList,
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete [chat-id]",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatDelete,
}

func init() {
	chatCmd.Flags().StringVar(&chatID, "chat", "", "chat ID to continue (default: new chat)")
	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatDeleteCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		_, err := sendMessage(cmd, chatID, args[0])
		return err
	}

	// Interactive session.
	current := chatID
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			fmt.Fprintln(cmd.OutOrStdout())
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		id, err := sendMessage(cmd, current, line)
		if err != nil {
			return err
		}
		current = id
	}
}

// sendMessage runs one turn and returns the chat ID for follow-ups.
func sendMessage(cmd *cobra.Command, id, content string) (string, error) {
	printer := &streamPrinter{out: cmd.OutOrStdout()}

	chat, err := orchestrator.SendMessage(cmd.Context(), id, content, printer.sink)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	printer.finish()

	// Surface a recorded turn failure without aborting the session.
	if last := lastAssistantError(chat); last != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "error (%s): %s\n", last.Code, last.Message)
	}

	return chat.ID, nil
}

// lastAssistantError returns the error on the final assistant message, if any.
func lastAssistantError(chat *domain.Chat) *domain.MessageError {
	for i := len(chat.Messages) - 1; i >= 0; i-- {
		if chat.Messages[i].Role == domain.RoleAssistant {
			return chat.Messages[i].Error
		}
	}
	return nil
}

func runChatList(cmd *cobra.Command, _ []string) error {
	chats, err := orchestrator.ListChats(cmd.Context())
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}

	if len(chats) == 0 {
		cmd.Println("No chats yet.")
		return nil
	}

	for i := range chats {
		title := chats[i].Title
		if title == "" {
			title = "(untitled)"
		}
		cmd.Printf("  %s  %s (%d messages)\n", chats[i].ID, title, len(chats[i].Messages))
	}
	return nil
}

func runChatDelete(cmd *cobra.Command, args []string) error {
	if err := orchestrator.DeleteChat(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	cmd.Println("Chat deleted.")
	return nil
}

// streamPrinter renders streamed message snapshots as incremental console
// output. Assistant snapshots replace each other, so only the unseen suffix
// is printed; tool messages appear as one-line markers between rounds.
type streamPrinter struct {
	out     io.Writer
	lastID  string
	printed int
}

func (p *streamPrinter) sink(msg domain.Message) {
	switch msg.Role {
	case domain.RoleAssistant:
		if msg.ID != p.lastID {
			if p.printed > 0 {
				fmt.Fprintln(p.out)
			}
			p.lastID = msg.ID
			p.printed = 0
		}
		if len(msg.Content) > p.printed {
			fmt.Fprint(p.out, msg.Content[p.printed:])
			p.printed = len(msg.Content)
		}
	case domain.RoleTool:
		if p.printed > 0 {
			fmt.Fprintln(p.out)
			p.printed = 0
		}
		if msg.ToolResult != nil {
			status := "ok"
			if msg.ToolResult.Error != nil {
				status = string(msg.ToolResult.Error.Code)
			}
			fmt.Fprintf(p.out, "  [tool %s: %s]\n", msg.ToolResult.Name, status)
		}
	}
}

// finish terminates the last streamed line.
func (p *streamPrinter) finish() {
	if p.printed > 0 {
		fmt.Fprintln(p.out)
	}
}
