package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/internal/logging"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// GraphURI is the resource exposing the phase graph definition.
const GraphURI = "phasewise://graph"

// Server wraps the session engine and exposes it as an MCP Server.
type Server struct {
	engine    ports.SessionEngine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.SessionEngine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("phasewise-mcp", phasewise.Version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CollectArgs are the arguments of collect_structured_data.
type CollectArgs struct {
	SessionID string         `mapstructure:"session_id"`
	PhaseID   string         `mapstructure:"phase_id"`
	Fields    map[string]any `mapstructure:"fields"`
}

// TransitionArgs are the arguments of therapy_session_transition.
type TransitionArgs struct {
	SessionID string `mapstructure:"session_id"`
	Target    string `mapstructure:"target"`
}

// SessionArgs identify a session.
type SessionArgs struct {
	SessionID string `mapstructure:"session_id"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Create a session at the entry phase, or return the existing one."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("collect_structured_data",
		mcp.WithDescription("Store field values for the current phase and count a conversational turn. Never changes the phase; the result tells whether a transition is ready."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("phase_id", mcp.Description("Phase the values belong to (optional, must be the current phase)")),
		mcp.WithObject("fields", mcp.Description("Field name to value map. A JSON encoded object string is accepted too.")),
		mcp.WithOutputSchema[domain.Result](),
	), mcp.NewStructuredToolHandler(s.handleCollect))

	s.mcpServer.AddTool(mcp.NewTool("therapy_session_transition",
		mcp.WithDescription("Move the session along the edge evaluation selects. target is \"next\" or the expected destination phase."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("target", mcp.Description("\"next\" (default) or a phase id")),
		mcp.WithOutputSchema[domain.Result](),
	), mcp.NewStructuredToolHandler(s.handleTransition))

	s.mcpServer.AddTool(mcp.NewTool("get_session_status",
		mcp.WithDescription("Read the current phase, collected fields, requirement status and timers without counting a turn."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("get_phase_graph",
		mcp.WithDescription("Get the full phase graph definition for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.graphJSON()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph encoding failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Snapshot, error) {
	var in SessionArgs
	if err := decodeArgs(args, &in); err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := s.engine.Start(ctx, in.SessionID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("start failed: %w", err)
	}
	return *snap, nil
}

// ensureSession starts the session on first use. Start loads an existing one.
func (s *Server) ensureSession(ctx context.Context, sessionID string) error {
	if _, err := s.engine.Start(ctx, sessionID); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	return nil
}

func (s *Server) handleCollect(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Result, error) {
	if raw, ok := args["fields"].(string); ok {
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return domain.Result{}, fmt.Errorf("fields must be a JSON object: %w", err)
		}
		args["fields"] = fields
	}

	var in CollectArgs
	if err := decodeArgs(args, &in); err != nil {
		return domain.Result{}, err
	}
	if err := s.ensureSession(ctx, in.SessionID); err != nil {
		return domain.Result{}, err
	}
	res, err := s.engine.Collect(ctx, in.SessionID, in.PhaseID, in.Fields)
	if err != nil {
		s.logger.Warn("MCP collect failed", "session_id", in.SessionID, "err", err)
		return domain.Result{}, fmt.Errorf("collect failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleTransition(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Result, error) {
	var in TransitionArgs
	if err := decodeArgs(args, &in); err != nil {
		return domain.Result{}, err
	}
	if err := s.ensureSession(ctx, in.SessionID); err != nil {
		return domain.Result{}, err
	}
	res, err := s.engine.Transition(ctx, in.SessionID, in.Target)
	if err != nil {
		return domain.Result{}, fmt.Errorf("transition failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Snapshot, error) {
	var in SessionArgs
	if err := decodeArgs(args, &in); err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := s.engine.Status(ctx, in.SessionID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("status failed: %w", err)
	}
	return *snap, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Current Phase Graph Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.graphJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) graphJSON() ([]byte, error) {
	return json.Marshal(s.engine.Graph().Definition())
}

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
