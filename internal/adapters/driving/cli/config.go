package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change configuration values, stored as dot-notation keys in
the TOML config file.

Common keys:
  completion.provider           ollama or openai
  completion.model              completion model identifier
  completion.api_key            API key for the openai provider
  embedding.model               default embedding model for new repositories
  knowledge.rag_threshold_pages auto-mode page threshold
  chat.instructions             base system prompt
  chat.max_tool_rounds          tool round cap per turn (0 = unbounded)
  bridges.local_ports           local companion ports to poll
  bridges.remote_urls           remote MCP endpoint URLs`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	RunE:  runConfigList,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	val, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Printf("%v\n", val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := configStore.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("set %s: %w", args[0], err)
	}
	cmd.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	all := configStore.All()
	if len(all) == 0 {
		cmd.Printf("No configuration set. Config file: %s\n", configStore.Path())
		return nil
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := all[k]
		if strings.HasSuffix(k, ".api_key") {
			val = "********"
		}
		cmd.Printf("%s = %v\n", k, val)
	}
	return nil
}
