package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/parley-cli/internal/core/domain"
	"github.com/custodia-labs/parley-cli/internal/core/ports/driven"
	"github.com/custodia-labs/parley-cli/internal/logger"
)

// Ensure LocalBridge implements the interface.
var _ driven.ToolSource = (*LocalBridge)(nil)

// Discovery constants for local companion processes.
const (
	// WellKnownPath is probed on the companion's port to discover its MCP
	// endpoint.
	WellKnownPath = "/.well-known/parley-bridge"

	// pollInterval is how often the companion is re-probed, picking up
	// restarts and tool changes.
	pollInterval = 5 * time.Second

	// probeTimeout bounds one discovery probe.
	probeTimeout = 2 * time.Second
)

// wellKnownPayload is the discovery document a companion serves.
type wellKnownPayload struct {
	// Endpoint is the MCP endpoint URL (required).
	Endpoint string `json:"endpoint"`

	// Instructions is optional system-prompt text the companion
	// contributes.
	Instructions string `json:"instructions,omitempty"`
}

// LocalBridge discovers a companion process on a local port and exposes its
// MCP tools. The companion may come and go; the bridge re-probes on an
// interval and degrades to an empty tool list while it is away.
type LocalBridge struct {
	port       int
	httpClient *http.Client

	mu           sync.RWMutex
	session      *mcp.ClientSession
	endpoint     string
	tools        []domain.Tool
	instructions string

	stopOnce sync.Once
	stop     chan struct{}
}

// NewLocalBridge creates a bridge polling the given local port.
func NewLocalBridge(port int) *LocalBridge {
	return &LocalBridge{
		port:       port,
		httpClient: &http.Client{Timeout: probeTimeout},
		stop:       make(chan struct{}),
	}
}

// Start begins background polling. It probes once immediately so tools are
// available as soon as possible.
func (b *LocalBridge) Start(ctx context.Context) {
	b.refresh(ctx)
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.refresh(ctx)
			case <-b.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops polling and closes any open session.
func (b *LocalBridge) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnectLocked()
	return nil
}

// Name identifies the source in logs.
func (b *LocalBridge) Name() string {
	return fmt.Sprintf("local-bridge:%d", b.port)
}

// Tools returns the companion's current tools, or empty when it is away.
func (b *LocalBridge) Tools(_ context.Context) []domain.Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tools
}

// Instructions returns the companion's contributed system-prompt text.
func (b *LocalBridge) Instructions() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instructions
}

// refresh probes the well-known endpoint and reconciles the session.
func (b *LocalBridge) refresh(ctx context.Context) {
	payload, err := b.probe(ctx)
	if err != nil {
		b.mu.Lock()
		if b.session != nil {
			logger.Debug("%s: companion away: %v", b.Name(), err)
		}
		b.disconnectLocked()
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Reconnect when the endpoint moved or the session dropped.
	if b.session == nil || b.endpoint != payload.Endpoint {
		b.disconnectLocked()

		session, err := newClient().Connect(ctx, &mcp.StreamableClientTransport{
			Endpoint: payload.Endpoint,
		}, nil)
		if err != nil {
			logger.Warn("%s: connect %s: %v", b.Name(), payload.Endpoint, err)
			return
		}
		b.session = session
		b.endpoint = payload.Endpoint
		logger.Info("%s: connected to %s", b.Name(), payload.Endpoint)
	}

	res, err := b.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		logger.Warn("%s: list tools: %v", b.Name(), err)
		b.disconnectLocked()
		return
	}

	b.tools = convertTools(b.session, res.Tools)
	b.instructions = payload.Instructions
}

// probe fetches and decodes the discovery document.
func (b *LocalBridge) probe(ctx context.Context) (*wellKnownPayload, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", b.port, WellKnownPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create probe request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe: status %d", resp.StatusCode)
	}

	var payload wellKnownPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}
	if payload.Endpoint == "" {
		return nil, fmt.Errorf("discovery document missing endpoint")
	}
	return &payload, nil
}

// disconnectLocked drops the session and cached state (caller must hold lock).
func (b *LocalBridge) disconnectLocked() {
	if b.session != nil {
		_ = b.session.Close()
		b.session = nil
	}
	b.endpoint = ""
	b.tools = nil
	b.instructions = ""
}
