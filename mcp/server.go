package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/courier"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with Courier tools.
type Server struct {
	client    *courier.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with Courier tools registered.
func NewServer(client *courier.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"courier",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "courier_preferences", Description: "Show the current value of every preference"},
		{Name: "courier_set_preference", Description: "Change one preference; the change is queued for sync"},
		{Name: "courier_sync", Description: "Push pending preference changes and unsynced call/SMS logs to the backend"},
		{Name: "courier_force_sync", Description: "Replace local preferences with the backend's copy"},
		{Name: "courier_status", Description: "Show sync status and local store statistics"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "courier_preferences":
		return s.handlePreferences(ctx, args)
	case "courier_set_preference":
		return s.handleSetPreference(ctx, args)
	case "courier_sync":
		return s.handleSync(ctx, args)
	case "courier_force_sync":
		return s.handleForceSync(ctx, args)
	case "courier_status":
		return s.handleStatus(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("courier_preferences",
		mcp.WithDescription("Show the current value of every preference. Missing preferences read as their defaults."),
	), s.wrap(s.handlePreferences))

	s.mcpServer.AddTool(mcp.NewTool("courier_set_preference",
		mcp.WithDescription("Change one preference. The value is validated, stored locally, and queued for the next sync."),
		mcp.WithString("key",
			mcp.Description("Preference key: "+keyList()),
			mcp.Required(),
		),
		mcp.WithString("value",
			mcp.Description("New value as text, e.g. true, 0.7, 120, en"),
			mcp.Required(),
		),
	), s.wrap(s.handleSetPreference))

	s.mcpServer.AddTool(mcp.NewTool("courier_sync",
		mcp.WithDescription("Push pending preference changes and unsynced call/SMS logs to the backend. Requires a backend URL and user ID."),
		mcp.WithString("scope",
			mcp.Description("What to sync: preferences, logs, or all (default: all)"),
			mcp.Enum("preferences", "logs", "all"),
		),
	), s.wrap(s.handleSync))

	s.mcpServer.AddTool(mcp.NewTool("courier_force_sync",
		mcp.WithDescription("Replace local preferences with the backend's copy. Local edits made while the pull is in flight are kept."),
	), s.wrap(s.handleForceSync))

	s.mcpServer.AddTool(mcp.NewTool("courier_status",
		mcp.WithDescription("Show sync status and local store statistics. This is a read-only operation."),
	), s.wrap(s.handleStatus))
}

type toolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// wrap adapts an internal handler to the mcp-go handler signature.
func (s *Server) wrap(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

// Internal handlers

func (s *Server) handlePreferences(_ context.Context, _ map[string]any) (*ToolResult, error) {
	prefs, err := s.client.Preferences().GetAllPreferences()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("read preferences failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatPreferences(prefs)}, nil
}

func (s *Server) handleSetPreference(_ context.Context, args map[string]any) (*ToolResult, error) {
	name, ok := args["key"].(string)
	if !ok || name == "" {
		return &ToolResult{Content: "key is required", IsError: true}, nil
	}
	key, err := courier.ParsePreferenceKey(name)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("%v (valid keys: %s)", err, keyList()), IsError: true}, nil
	}

	raw, ok := args["value"]
	if !ok || raw == nil {
		return &ToolResult{Content: "value is required", IsError: true}, nil
	}
	value, err := parseArgValue(key, raw)
	if err != nil {
		return &ToolResult{Content: err.Error(), IsError: true}, nil
	}

	if err := s.client.Preferences().UpdatePreference(key, value); err != nil {
		return &ToolResult{Content: fmt.Sprintf("update failed: %v", err), IsError: true}, nil
	}

	stored, err := s.client.Preferences().Get(key)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("read back failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: fmt.Sprintf("Set %s = %s (%d change(s) pending sync)",
		key, stored, s.client.Preferences().GetPendingChangesCount())}, nil
}

// parseArgValue accepts either text, parsed for the key's kind, or a JSON
// scalar as decoded from the tool arguments.
func parseArgValue(key courier.PreferenceKey, raw any) (courier.Value, error) {
	if text, ok := raw.(string); ok {
		return key.Parse(text)
	}
	v, err := courier.ValueOf(raw)
	if err != nil {
		return courier.Value{}, err
	}
	return key.Normalize(v)
}

func (s *Server) handleSync(ctx context.Context, args map[string]any) (*ToolResult, error) {
	scope, _ := args["scope"].(string)
	if scope == "" {
		scope = "all"
	}

	var sb strings.Builder
	var failed bool

	if scope == "preferences" || scope == "all" {
		if err := s.client.SyncPreferences(ctx); err != nil {
			failed = true
			fmt.Fprintf(&sb, "Preference sync failed: %v\n", err)
		} else {
			sb.WriteString("Preferences synced\n")
		}
	}

	if scope == "logs" || scope == "all" {
		result, err := s.client.SyncLogs(ctx)
		if err != nil {
			failed = true
			fmt.Fprintf(&sb, "Log sync failed: %v\n", err)
		} else {
			fmt.Fprintf(&sb, "Logs synced: %d call(s), %d SMS pushed", result.Calls.Pushed, result.SMS.Pushed)
			if n := result.Failed(); n > 0 {
				fmt.Fprintf(&sb, ", %d left for retry", n)
			}
			sb.WriteString("\n")
		}
	}

	if sb.Len() == 0 {
		return &ToolResult{Content: fmt.Sprintf("invalid scope %q: use preferences, logs, or all", scope), IsError: true}, nil
	}

	st := s.client.Status()
	fmt.Fprintf(&sb, "Status: %s", st.Message())
	return &ToolResult{Content: sb.String(), IsError: failed}, nil
}

func (s *Server) handleForceSync(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	if err := s.client.ForceSync(ctx); err != nil {
		return &ToolResult{Content: fmt.Sprintf("force sync failed: %v", err), IsError: true}, nil
	}

	prefs, err := s.client.Preferences().GetAllPreferences()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("read preferences failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: "Preferences replaced from backend.\n\n" + formatPreferences(prefs)}, nil
}

func (s *Server) handleStatus(_ context.Context, _ map[string]any) (*ToolResult, error) {
	stats, err := s.client.Stats()
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("read stats failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatStatus(s.client.Status(), stats)}, nil
}

// Formatting functions

func formatPreferences(prefs courier.Preferences) string {
	var sb strings.Builder
	sb.WriteString("Preferences:\n")
	for _, key := range courier.PreferenceKeys() {
		fmt.Fprintf(&sb, "  %s: %s\n", key, prefs.Get(key))
	}
	return sb.String()
}

func formatStatus(st courier.SyncStatus, stats *courier.StoreStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sync: %s\n", st.Message())
	if st.Offline {
		sb.WriteString("  Mode: offline\n")
	}
	fmt.Fprintf(&sb, "  Pending changes: %d\n", st.PendingChanges)
	fmt.Fprintf(&sb, "  Last sync: %s\n", formatTime(st.LastSync))
	if st.LastError != "" {
		fmt.Fprintf(&sb, "  Last error: %s\n", st.LastError)
	}
	sb.WriteString("Logs:\n")
	fmt.Fprintf(&sb, "  Calls: %d (%d unsynced)\n", stats.CallLogs, stats.UnsyncedCalls)
	fmt.Fprintf(&sb, "  SMS: %d (%d unsynced)\n", stats.SMSLogs, stats.UnsyncedSMS)
	fmt.Fprintf(&sb, "  Last log sync: %s\n", formatTime(stats.LastLogSync))
	return sb.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

func keyList() string {
	return strings.Join(keyNames(), ", ")
}
