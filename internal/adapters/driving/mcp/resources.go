package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for Parley resources.
const uriScheme = "parley://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing repositories.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "repositories",
		Name:        "repositories",
		Description: "List of all knowledge repositories",
		MIMEType:    "application/json",
	}, s.handleRepositoriesResource)

	// Template for repository files.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "repositories/{repositoryId}/files",
		Name:        "repository-files",
		Description: "Files uploaded into a specific repository, with ingestion status",
		MIMEType:    "application/json",
	}, s.handleFilesResource)

	// Template for extracted file text.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "files/{repositoryId}/{fileId}",
		Name:        "file-text",
		Description: "Extracted plain text of a specific file",
		MIMEType:    "text/plain",
	}, s.handleFileTextResource)
}

// handleRepositoriesResource returns a list of all repositories.
func (s *Server) handleRepositoriesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	repos, err := s.ports.Knowledge.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	// Build simplified repository list.
	type repoInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Embedder string `json:"embedder"`
		Mode     string `json:"mode"`
		Files    int    `json:"files"`
	}

	infos := make([]repoInfo, len(repos))
	for i := range repos {
		infos[i] = repoInfo{
			ID:       repos[i].ID,
			Name:     repos[i].Name,
			Embedder: repos[i].Embedder,
			Mode:     repos[i].Mode.String(),
			Files:    len(repos[i].Files),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling repositories: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleFilesResource returns files for a specific repository.
func (s *Server) handleFilesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract repositoryId from URI: parley://repositories/{repositoryId}/files
	repoID := extractRepositoryID(req.Params.URI)
	if repoID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	repo, err := s.ports.Knowledge.GetRepository(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("getting repository: %w", err)
	}

	// Build simplified file list.
	type fileInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Error    string `json:"error,omitempty"`
	}

	infos := make([]fileInfo, len(repo.Files))
	for i := range repo.Files {
		infos[i] = fileInfo{
			ID:       repo.Files[i].ID,
			Name:     repo.Files[i].Name,
			Status:   repo.Files[i].Status.String(),
			Progress: repo.Files[i].Progress,
			Error:    repo.Files[i].Error,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling files: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleFileTextResource returns the extracted text of a specific file.
func (s *Server) handleFileTextResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract IDs from URI: parley://files/{repositoryId}/{fileId}
	repoID, fileID := extractFileIDs(req.Params.URI)
	if repoID == "" || fileID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	repo, err := s.ports.Knowledge.GetRepository(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("getting repository: %w", err)
	}

	file := repo.File(fileID)
	if file == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     file.Text,
		}},
	}, nil
}

// extractRepositoryID extracts the repository ID from a URI like
// parley://repositories/{repositoryId}/files.
func extractRepositoryID(uri string) string {
	const prefix = uriScheme + "repositories/"
	const suffix = "/files"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractFileIDs extracts the repository and file IDs from a URI like
// parley://files/{repositoryId}/{fileId}.
func extractFileIDs(uri string) (repoID, fileID string) {
	const prefix = uriScheme + "files/"

	if !strings.HasPrefix(uri, prefix) {
		return "", ""
	}

	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
