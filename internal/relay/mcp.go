package relay

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/deepassist-go/internal/history"
	"github.com/comigor/deepassist-go/internal/logger"
)

var chatTool = mcp.NewTool("chat",
	mcp.WithDescription("Send one message to the coding assistant and get its full reply. The conversation so far is kept for the lifetime of this server."),
	mcp.WithString("message",
		mcp.Required(),
		mcp.Description("The user's message"),
	),
)

// NewMCPServer exposes the relay as a single "chat" tool. All calls share
// one conversation in store.
func NewMCPServer(r *Relay, store *history.Store, version string) *server.MCPServer {
	s := server.NewMCPServer("deepassist", version, server.WithToolCapabilities(false))
	s.AddTool(chatTool, r.chatToolHandler(store))
	return s
}

func (r *Relay) chatToolHandler(store *history.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var message *string
		if v, ok := req.GetArguments()["message"].(string); ok {
			message = &v
		}

		reply, err := r.Handle(ctx, store, history.DefaultSession, message)
		if err != nil {
			logger.L.Warn("MCP chat tool failed", "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(reply), nil
	}
}
