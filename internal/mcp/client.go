// Package mcp connects to external Model Context Protocol servers and
// exposes their tools through the tool registry. External tools carry no
// visibility class, so the registry keeps them out of restrictive modes.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gatecode-ai/gatecode/internal/config"
	"github.com/gatecode-ai/gatecode/internal/logging"
)

// connectTimeout bounds the initialize plus tool-listing handshake per server.
const connectTimeout = 10 * time.Second

// State describes a configured server's connection state.
type State string

const (
	StateConnected State = "connected"
	StateFailed    State = "failed"
	StateDisabled  State = "disabled"
)

// ServerStatus is the externally visible status of one configured server.
type ServerStatus struct {
	Name      string `json:"name"`
	State     State  `json:"state"`
	ToolCount int    `json:"toolCount"`
	Error     string `json:"error,omitempty"`
}

// ServerTool is one tool discovered on a connected server. Name is already
// prefixed with the sanitized server name so tools from different servers
// cannot collide.
type ServerTool struct {
	Server      string
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Client manages connections to the configured MCP servers.
type Client struct {
	mu      sync.RWMutex
	client  *sdkmcp.Client
	servers map[string]*serverConn
}

type serverConn struct {
	name    string
	cfg     config.MCPServer
	session *sdkmcp.ClientSession
	tools   []ServerTool
	// originals maps a prefixed tool name back to the server-side name,
	// which sanitization may have altered.
	originals map[string]string
	state     State
	err       string
}

// NewClient creates a client with no connections.
func NewClient() *Client {
	return &Client{
		client: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "gatecode",
			Version: "1.0.0",
		}, nil),
		servers: make(map[string]*serverConn),
	}
}

// ConnectAll connects every enabled server from the config. Individual
// failures are recorded in the server status and logged, not returned: one
// broken server must not take down the rest.
func (c *Client) ConnectAll(ctx context.Context, servers map[string]config.MCPServer) {
	for name, cfg := range servers {
		if err := c.Connect(ctx, name, cfg); err != nil {
			logging.Warn().Str("server", name).Err(err).Msg("mcp server connection failed")
		}
	}
}

// Connect adds one server and, if enabled, connects it and lists its tools.
func (c *Client) Connect(ctx context.Context, name string, cfg config.MCPServer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.servers[name]; ok {
		return fmt.Errorf("mcp server already configured: %s", name)
	}

	if !cfg.IsEnabled() {
		c.servers[name] = &serverConn{name: name, cfg: cfg, state: StateDisabled}
		return nil
	}

	conn, err := c.dial(ctx, name, cfg)
	if err != nil {
		c.servers[name] = &serverConn{name: name, cfg: cfg, state: StateFailed, err: err.Error()}
		return err
	}

	c.servers[name] = conn
	logging.Info().Str("server", name).Int("tools", len(conn.tools)).Msg("mcp server connected")
	return nil
}

func (c *Client) dial(ctx context.Context, name string, cfg config.MCPServer) (*serverConn, error) {
	conn := &serverConn{name: name, cfg: cfg}

	switch {
	case cfg.URL != "":
		httpClient := httpClientWithHeaders(nil, cfg.Headers)

		// Streamable HTTP is the current MCP remote transport; fall back to
		// SSE for servers that predate it.
		transports := []struct {
			label     string
			transport sdkmcp.Transport
		}{
			{label: "streamable", transport: &sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}},
			{label: "sse", transport: &sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}},
		}

		var lastErr error
		for _, candidate := range transports {
			session, tools, err := c.handshake(ctx, candidate.transport)
			if err != nil {
				lastErr = fmt.Errorf("%s transport: %w", candidate.label, err)
				continue
			}
			conn.connected(name, session, tools)
			return conn, nil
		}
		return nil, lastErr

	case cfg.Command != "":
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()

		session, tools, err := c.handshake(ctx, &sdkmcp.CommandTransport{Command: cmd})
		if err != nil {
			return nil, err
		}
		conn.connected(name, session, tools)
		return conn, nil

	default:
		return nil, fmt.Errorf("mcp server %s: neither command nor url configured", name)
	}
}

// handshake connects over the given transport and lists the server's tools.
func (c *Client) handshake(ctx context.Context, transport sdkmcp.Transport) (*sdkmcp.ClientSession, []ServerTool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	session, err := c.client.Connect(connectCtx, transport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	listCtx, listCancel := context.WithTimeout(ctx, connectTimeout)
	defer listCancel()

	result, err := session.ListTools(listCtx, nil)
	if err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("list tools: %w", err)
	}

	tools := make([]ServerTool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = nil
		}
		tools = append(tools, ServerTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	return session, tools, nil
}

// connected records a successful handshake, prefixing the discovered tool
// names with the server name.
func (s *serverConn) connected(server string, session *sdkmcp.ClientSession, tools []ServerTool) {
	s.session = session
	s.state = StateConnected
	s.tools = make([]ServerTool, len(tools))
	s.originals = make(map[string]string, len(tools))
	for i, t := range tools {
		prefixed := sanitizeToolName(server) + "_" + sanitizeToolName(t.Name)
		s.tools[i] = ServerTool{
			Server:      server,
			Name:        prefixed,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
		s.originals[prefixed] = t.Name
	}
}

// Tools returns the discovered tools of every connected server.
func (c *Client) Tools() []ServerTool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []ServerTool
	for _, conn := range c.servers {
		if conn.state != StateConnected {
			continue
		}
		all = append(all, conn.tools...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Call invokes a prefixed tool on the server that owns it and returns the
// concatenated text content.
func (c *Client) Call(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	c.mu.RLock()
	var target *serverConn
	var original string
	for _, conn := range c.servers {
		if conn.state != StateConnected {
			continue
		}
		if name, ok := conn.originals[toolName]; ok {
			target = conn
			original = name
			break
		}
	}
	c.mu.RUnlock()

	if target == nil {
		return "", fmt.Errorf("no mcp server owns tool: %s", toolName)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
	}

	result, err := target.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      original,
		Arguments: argsMap,
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			out.WriteString(text.Text)
		}
	}

	if result.IsError {
		if out.Len() > 0 {
			return "", fmt.Errorf("tool error: %s", out.String())
		}
		return "", fmt.Errorf("tool %s failed", toolName)
	}

	return out.String(), nil
}

// Status reports every configured server, sorted by name.
func (c *Client) Status() []ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(c.servers))
	for name, conn := range c.servers {
		statuses = append(statuses, ServerStatus{
			Name:      name,
			State:     conn.state,
			ToolCount: len(conn.tools),
			Error:     conn.err,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Close disconnects every server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, conn := range c.servers {
		if conn.session != nil {
			conn.session.Close()
		}
	}
	c.servers = make(map[string]*serverConn)
	return nil
}

func httpClientWithHeaders(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	client := *base
	client.Timeout = 0 // per-request contexts bound each call

	if len(headers) == 0 {
		return &client
	}

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	client.Transport = &headerRoundTripper{headers: headers, next: next}
	return &client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}

// sanitizeToolName replaces every non-alphanumeric rune with an underscore so
// prefixed names stay valid tool identifiers.
func sanitizeToolName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
