package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/soundbluemusic/dictgen/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"dict_lookup": {
		def:     lookupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLookup },
	},
	"dict_route_chunk": {
		def:     routeChunkToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRouteChunk },
	},
	"dict_meta": {
		def:     metaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMeta },
	},
	"dict_verify": {
		def:     verifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVerify },
	},
	"dict_verify_local": {
		def:     verifyLocalToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVerifyLocal },
	},
	"dict_reload": {
		def:     reloadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReload },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the dictionary tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(rt *ops.Runtime, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"dictgen",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(rt)

	disabled := make(map[string]bool, len(rt.Config.DisabledTools))
	for _, name := range rt.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(rt *ops.Runtime, version string) error {
	s := NewServer(rt, version)
	return server.ServeStdio(s)
}
