// Command echo-mcp runs the echo MCP server over stdio. It is used for
// testing the MCP client integration and as a stdio-server config example.
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gatecode-ai/gatecode/pkg/mcpserver/echo"
)

func main() {
	s := echo.NewServer()
	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}
