package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	ollamaembed "github.com/custodia-labs/parley-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/parley-cli/internal/adapters/driven/watcher"
	"github.com/custodia-labs/parley-cli/internal/core/domain"
)

var (
	knowledgeRepo         string
	knowledgeInstructions string
	knowledgeEmbedder     string
	knowledgeQueryLimit   int
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage knowledge repositories",
	Long: `Create knowledge repositories, upload documents into them and control
how their content reaches the model during chat.`,
}

var knowledgeCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a repository and select it",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeCreate,
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repositories and their files",
	RunE:  runKnowledgeList,
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Upload a file into a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeAdd,
}

var knowledgeRemoveCmd = &cobra.Command{
	Use:   "remove [file-id]",
	Short: "Remove a file and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeRemove,
}

var knowledgeSelectCmd = &cobra.Command{
	Use:   "select [repo-id]",
	Short: "Make a repository current",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeSelect,
}

var knowledgeDeleteCmd = &cobra.Command{
	Use:   "delete [repo-id]",
	Short: "Delete a repository and its index",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeDelete,
}

var knowledgeModeCmd = &cobra.Command{
	Use:   "mode [auto|rag|context]",
	Short: "Set or show the retrieval mode",
	Long: `Set the retrieval mode for a repository, or show the effective mode when
called without arguments.

Modes:
  auto     - pick rag or context based on corpus size (default)
  rag      - always expose the retrieval tool
  context  - always inline all files into the prompt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKnowledgeMode,
}

var knowledgeQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search a repository's index",
	Args:  cobra.ExactArgs(1),
	RunE:  runKnowledgeQuery,
}

var knowledgeWatchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Mirror a directory into a repository",
	Long: `Ingest every file in the directory, then keep watching: new and changed
files are re-ingested, removed files are dropped from the repository.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runKnowledgeWatch,
}

func init() {
	knowledgeCmd.PersistentFlags().StringVar(&knowledgeRepo, "repo", "", "repository ID (default: selected repository)")
	knowledgeCreateCmd.Flags().StringVar(&knowledgeInstructions, "instructions", "", "extra system-prompt text for this repository")
	knowledgeCreateCmd.Flags().StringVar(&knowledgeEmbedder, "embedder", ollamaembed.DefaultModel, "embedding model for this repository")
	knowledgeQueryCmd.Flags().IntVarP(&knowledgeQueryLimit, "limit", "n", 5, "maximum number of results")

	knowledgeCmd.AddCommand(knowledgeCreateCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeRemoveCmd)
	knowledgeCmd.AddCommand(knowledgeSelectCmd)
	knowledgeCmd.AddCommand(knowledgeDeleteCmd)
	knowledgeCmd.AddCommand(knowledgeModeCmd)
	knowledgeCmd.AddCommand(knowledgeQueryCmd)
	knowledgeCmd.AddCommand(knowledgeWatchCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

// resolveRepo returns the --repo flag or falls back to the selected
// repository.
func resolveRepo(cmd *cobra.Command) (string, error) {
	if knowledgeRepo != "" {
		return knowledgeRepo, nil
	}
	repo, err := knowledgeService.CurrentRepository(cmd.Context())
	if err != nil {
		return "", err
	}
	if repo == nil {
		return "", fmt.Errorf("no repository selected; create one or pass --repo")
	}
	return repo.ID, nil
}

func runKnowledgeCreate(cmd *cobra.Command, args []string) error {
	if factory != nil {
		if err := factory.ValidateEmbedder(knowledgeEmbedder); err != nil {
			return fmt.Errorf("validate embedder: %w", err)
		}
	}

	repo, err := knowledgeService.CreateRepository(cmd.Context(), args[0], knowledgeInstructions, knowledgeEmbedder)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	cmd.Printf("Created repository %s (%s), now selected.\n", repo.Name, repo.ID)
	return nil
}

func runKnowledgeList(cmd *cobra.Command, _ []string) error {
	repos, err := knowledgeService.ListRepositories(cmd.Context())
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	if len(repos) == 0 {
		cmd.Println("No repositories yet. Create one with 'parley knowledge create'.")
		return nil
	}

	current, err := knowledgeService.CurrentRepository(cmd.Context())
	if err != nil {
		return err
	}

	for i := range repos {
		marker := " "
		if current != nil && current.ID == repos[i].ID {
			marker = "*"
		}
		cmd.Printf("%s %s  %s (%s, %.1f pages)\n",
			marker, repos[i].ID, repos[i].Name, repos[i].Mode, repos[i].TotalPages())
		for j := range repos[i].Files {
			f := &repos[i].Files[j]
			switch f.Status {
			case domain.FileStatusError:
				cmd.Printf("    %s  %s: %s\n", f.ID, f.Name, f.Error)
			case domain.FileStatusCompleted:
				cmd.Printf("    %s  %s (%d segments)\n", f.ID, f.Name, len(f.Segments))
			default:
				cmd.Printf("    %s  %s (%s %d%%)\n", f.ID, f.Name, f.Status, f.Progress)
			}
		}
	}
	return nil
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	repoID, err := resolveRepo(cmd)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	file, err := knowledgeService.AddFile(cmd.Context(), repoID, filepath.Base(args[0]), content)
	if err != nil {
		return fmt.Errorf("add file: %w", err)
	}
	cmd.Printf("Ingested %s (%s).\n", file.Name, file.ID)
	return nil
}

func runKnowledgeRemove(cmd *cobra.Command, args []string) error {
	repoID, err := resolveRepo(cmd)
	if err != nil {
		return err
	}
	if err := knowledgeService.RemoveFile(cmd.Context(), repoID, args[0]); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	cmd.Println("File removed.")
	return nil
}

func runKnowledgeSelect(cmd *cobra.Command, args []string) error {
	if err := knowledgeService.SelectRepository(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("select repository: %w", err)
	}
	cmd.Println("Repository selected.")
	return nil
}

func runKnowledgeDelete(cmd *cobra.Command, args []string) error {
	if err := knowledgeService.DeleteRepository(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	cmd.Println("Repository deleted.")
	return nil
}

func runKnowledgeMode(cmd *cobra.Command, args []string) error {
	repoID, err := resolveRepo(cmd)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if err := knowledgeService.SetMode(cmd.Context(), repoID, domain.RetrievalMode(args[0])); err != nil {
			return fmt.Errorf("set mode: %w", err)
		}
	}

	mode, err := knowledgeService.EffectiveMode(cmd.Context(), repoID)
	if err != nil {
		return fmt.Errorf("effective mode: %w", err)
	}
	cmd.Printf("Effective mode: %s\n", mode)
	return nil
}

func runKnowledgeQuery(cmd *cobra.Command, args []string) error {
	repoID, err := resolveRepo(cmd)
	if err != nil {
		return err
	}

	hits, err := knowledgeService.Query(cmd.Context(), repoID, args[0], knowledgeQueryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	for i, hit := range hits {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, hit.FileName, hit.Similarity)
		cmd.Printf("      %s\n", hit.FileChunk)
		cmd.Println()
	}
	return nil
}

func runKnowledgeWatch(cmd *cobra.Command, args []string) error {
	repoID, err := resolveRepo(cmd)
	if err != nil {
		return err
	}

	w := watcher.New(knowledgeService, repoID, args[0])
	cmd.Printf("Watching %s, press Ctrl-C to stop.\n", args[0])
	return w.Run(cmd.Context())
}
