// Package server routes MCP requests to the editor bridge: it ensures a live
// connection precedes every action, executes reads through the state reader
// and writes through single timed RPC calls, and converts every failure into
// a structured tool error. Nothing here may fault past a handler.
package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/nvtools/nvim-mcp/internal/config"
	"github.com/nvtools/nvim-mcp/internal/conn"
	"github.com/nvtools/nvim-mcp/internal/editor"
	"github.com/nvtools/nvim-mcp/internal/report"
	"github.com/nvtools/nvim-mcp/internal/state"
	"github.com/nvtools/nvim-mcp/internal/timeout"
	"pkt.systems/pslog"
)

const (
	serverName       = "nvim-mcp"
	stateResourceURI = "nvim://state"

	// changeEventMethod is the RPC notification the editor-side autocmd
	// sends back on buffer/cursor changes.
	changeEventMethod = "nvim-mcp-state-changed"
	// changedNotification is forwarded to MCP clients when the editor
	// reports a change.
	changedNotification = "notifications/state_changed"
)

// Options configure a Server.
type Options struct {
	Settings config.Settings
	Version  string
	Log      pslog.Logger
	// Dial overrides the editor attach function; tests inject fakes here.
	Dial func(addr string) (editor.API, error)
}

// Server is the MCP-facing dispatcher.
type Server struct {
	mcp    *mcpserver.MCPServer
	mgr    *conn.Manager
	call   time.Duration
	radius int
	log    pslog.Logger
	ka     *keepalive

	mu      sync.Mutex
	watched editor.API
}

// New builds a Server for the given settings. The socket path in Settings
// must already be normalized.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = pslog.Ctx(context.Background())
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		call:   opts.Settings.CallTimeout,
		radius: opts.Settings.ContextRadius,
		log:    opts.Log,
	}
	if s.call <= 0 {
		s.call = config.DefaultCallTimeout
	}

	s.mgr = conn.New(opts.Settings.Socket, conn.Options{
		AttachTimeout: opts.Settings.AttachTimeout,
		ProbeTimeout:  opts.Settings.ProbeTimeout,
		Dial:          opts.Dial,
		Log:           opts.Log,
	})

	idle := opts.Settings.IdleTimeout
	if idle <= 0 {
		idle = config.DefaultIdleTimeout
	}
	s.ka = newKeepalive(idle, s.mgr.Reset)

	s.mcp = mcpserver.NewMCPServer(serverName, opts.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithRecovery(),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("read_state",
		mcp.WithDescription("Read the editor's windows, tabs, buffers, cursor position and visible content as one report."),
		mcp.WithString("format",
			mcp.Description(`Output format: "text" (default) or "json".`)),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleReadState)

	s.mcp.AddTool(mcp.NewTool("send_keys",
		mcp.WithDescription("Send a normal-mode keystroke sequence to the editor. Keys are passed through byte-for-byte."),
		mcp.WithString("keys", mcp.Required(),
			mcp.Description("Keystrokes exactly as they would be typed in normal mode.")),
	), s.handleSendKeys)

	s.mcp.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Execute a command-mode (ex) command in the editor and capture its textual output."),
		mcp.WithString("command", mcp.Required(),
			mcp.Description("The ex command to run, without the leading colon.")),
	), s.handleSendCommand)

	s.mcp.AddResource(mcp.NewResource(stateResourceURI, "Editor state",
		mcp.WithResourceDescription("The current editor state report, identical to the read_state tool output."),
		mcp.WithMIMEType("text/plain"),
	), s.handleStateResource)
}

// Serve runs the MCP stdio transport until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	defer s.ka.Stop()
	defer s.mgr.Reset()

	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(pslog.LogLogger(s.log))
	s.log.Info("serving MCP over stdio", "socket", s.mgr.Socket())
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ensure returns a live editor client and hooks up change forwarding for a
// fresh connection.
func (s *Server) ensure() (editor.API, error) {
	api, err := s.mgr.Ensure()
	if err != nil {
		return nil, err
	}
	s.watchChanges(api)
	return api, nil
}

func (s *Server) readReport() (*report.Report, error) {
	api, err := s.ensure()
	if err != nil {
		return nil, err
	}

	reader := state.NewReader(api, state.Options{
		CallTimeout: s.call,
		Radius:      s.radius,
		Log:         s.log,
	})
	st, err := reader.Read()
	if err != nil {
		// The enumeration itself failed; assume the connection is bad so
		// the next request reattaches.
		s.mgr.Reset()
		return nil, fmt.Errorf("reading editor state: %w", err)
	}
	return report.Assemble(st), nil
}

func (s *Server) handleReadState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ka.Begin()
	defer s.ka.End()

	rep, err := s.readReport()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetString("format", "text") == "json" {
		data, err := rep.JSON()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
	return mcp.NewToolResultText(rep.Text()), nil
}

func (s *Server) handleSendKeys(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ka.Begin()
	defer s.ka.End()

	keys, err := req.RequireString("keys")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	api, err := s.ensure()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := timeout.Run(s.call, "sending keys", func() error {
		return api.FeedKeys(keys, "n", true)
	}); err != nil {
		if timeout.Is(err) {
			s.mgr.Reset()
		}
		return mcp.NewToolResultError(fmt.Sprintf("sending keys: %v", err)), nil
	}

	s.notifyStateChanged()
	return mcp.NewToolResultText(fmt.Sprintf("sent %d bytes of keystrokes", len(keys))), nil
}

func (s *Server) handleSendCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ka.Begin()
	defer s.ka.End()

	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	api, err := s.ensure()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := timeout.Do(s.call, "executing command", func() (string, error) {
		return api.Exec(command, true)
	})
	if err != nil {
		if timeout.Is(err) {
			s.mgr.Reset()
		}
		return mcp.NewToolResultError(fmt.Sprintf("executing %q: %v", command, err)), nil
	}

	s.notifyStateChanged()
	if out == "" {
		out = "(no output)"
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleStateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.ka.Begin()
	defer s.ka.End()

	rep, err := s.readReport()
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      stateResourceURI,
			MIMEType: "text/plain",
			Text:     rep.Text(),
		},
	}, nil
}

func (s *Server) notifyStateChanged() {
	s.mcp.SendNotificationToAllClients(changedNotification, map[string]any{
		"uri": stateResourceURI,
	})
}
