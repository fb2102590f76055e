package bridge

import (
	"context"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure RemoteBridge implements the interface.
var _ driven.ToolSource = (*RemoteBridge)(nil)

// RemoteBridge exposes the tools of an MCP server addressed by URL. The
// connection is established lazily and re-established per turn when it
// drops; an unreachable server contributes no tools.
type RemoteBridge struct {
	endpoint string

	mu      sync.Mutex
	session *mcp.ClientSession
}

// NewRemoteBridge creates a bridge for the given MCP endpoint URL.
func NewRemoteBridge(endpoint string) *RemoteBridge {
	return &RemoteBridge{endpoint: endpoint}
}

// Name identifies the source in logs.
func (b *RemoteBridge) Name() string {
	return "remote-bridge:" + b.endpoint
}

// Tools lists the server's current tools, connecting on demand.
func (b *RemoteBridge) Tools(ctx context.Context) []domain.Tool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		session, err := newClient().Connect(ctx, &mcp.StreamableClientTransport{
			Endpoint: b.endpoint,
		}, nil)
		if err != nil {
			logger.Debug("%s: connect: %v", b.Name(), err)
			return nil
		}
		b.session = session
		logger.Info("%s: connected", b.Name())
	}

	res, err := b.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		logger.Warn("%s: list tools: %v", b.Name(), err)
		_ = b.session.Close()
		b.session = nil
		return nil
	}

	return convertTools(b.session, res.Tools)
}

// Instructions returns empty; remote servers contribute no prompt text.
func (b *RemoteBridge) Instructions() string {
	return ""
}

// Close drops the session.
func (b *RemoteBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		err := b.session.Close()
		b.session = nil
		return err
	}
	return nil
}
