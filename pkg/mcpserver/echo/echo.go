// Package echo provides a small MCP server used to exercise the MCP client
// in tests and demos.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with an echo tool and a tool that always
// fails, covering both result paths of a tool call.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"echo",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	echoTool := mcp.NewTool("echo",
		mcp.WithDescription("Echoes the message back to the caller"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message to echo"),
		),
		mcp.WithBoolean("upper",
			mcp.Description("Uppercase the message before echoing"),
		),
	)
	s.AddTool(echoTool, echoHandler)

	failTool := mcp.NewTool("fail",
		mcp.WithDescription("Always returns a tool error"),
		mcp.WithString("message",
			mcp.Description("Error message to return"),
		),
	)
	s.AddTool(failTool, failHandler)

	return s
}

func echoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message, ok := args["message"].(string)
	if !ok {
		return mcp.NewToolResultError("message argument is required"), nil
	}

	if upper, _ := args["upper"].(bool); upper {
		message = strings.ToUpper(message)
	}

	return mcp.NewToolResultText(message), nil
}

func failHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message, _ := args["message"].(string)
	if message == "" {
		message = "requested failure"
	}

	return mcp.NewToolResultError(fmt.Sprintf("echo server: %s", message)), nil
}
