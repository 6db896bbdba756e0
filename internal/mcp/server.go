// Package mcp exposes the conversation history to other local agents as
// read-only MCP tools over streamable HTTP. Disabled unless configured.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/glimpsehq/glimpse/internal/store"
)

// HistoryServer serves list_conversations and get_conversation tools.
type HistoryServer struct {
	store  *store.Store
	logger *slog.Logger
	http   *server.StreamableHTTPServer
}

func NewHistoryServer(st *store.Store, version string, logger *slog.Logger) *HistoryServer {
	h := &HistoryServer{store: st, logger: logger}

	mcpServer := server.NewMCPServer("glimpse-history", version, server.WithToolCapabilities(false))

	mcpServer.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List saved screenshot conversations, most recently active first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of conversations to return (default 20).")),
		mcp.WithNumber("offset", mcp.Description("Number of conversations to skip.")),
		mcp.WithBoolean("starred", mcp.Description("Only starred conversations.")),
		mcp.WithBoolean("archived", mcp.Description("Show archived conversations instead of active ones.")),
	), h.handleListConversations)

	mcpServer.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Load one conversation with all of its messages."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Conversation id.")),
	), h.handleGetConversation)

	h.http = server.NewStreamableHTTPServer(mcpServer)
	return h
}

// Start blocks serving MCP over HTTP on the given address.
func (h *HistoryServer) Start(listen string) error {
	h.logger.Info("starting MCP history server", "address", listen)
	return h.http.Start(listen)
}

// Shutdown stops the HTTP listener.
func (h *HistoryServer) Shutdown(ctx context.Context) error {
	return h.http.Shutdown(ctx)
}

func (h *HistoryServer) handleListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(request.GetFloat("limit", 20))
	offset := int(request.GetFloat("offset", 0))
	filters := store.ListFilters{
		Starred:  request.GetBool("starred", false),
		Archived: request.GetBool("archived", false),
	}
	conversations, err := h.store.ListConversations(ctx, limit, offset, filters)
	if err != nil {
		h.logger.Error("mcp list_conversations failed", "error", err)
		return mcp.NewToolResultError("failed to list conversations"), nil
	}
	return toolResultJSON(conversations)
}

func (h *HistoryServer) handleGetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conv, err := h.store.GetConversationWithMessages(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError("conversation not found"), nil
	}
	if err != nil {
		h.logger.Error("mcp get_conversation failed", "error", err)
		return mcp.NewToolResultError("failed to load conversation"), nil
	}
	// The screenshot payload can be megabytes of base64; agents get the
	// hash and the text, not the image.
	conv.Screenshot = ""
	return toolResultJSON(conv)
}

func toolResultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to encode result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
