package api

import (
	"strings"

	"github.com/hazyhaar/galaxy-registry/pkg/galaxy"
	"github.com/hazyhaar/galaxy-registry/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the resolver MCP tools on the server.
func RegisterMCPTools(srv *server.MCPServer, r *galaxy.Resolver) {
	registerResolveName(srv, r)
	registerResolveCompound(srv, r)
	registerListGalaxies(srv, r)
}

func registerResolveName(srv *server.MCPServer, r *galaxy.Resolver) {
	tool := mcp.NewTool("resolve_name",
		mcp.WithDescription("Resolve a threat actor, malware or tool name to its canonical misp-galaxy cluster tags, matching synonyms case/punctuation-insensitively."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The name to resolve (e.g. 'Sednit', 'APT 28')")),
		mcp.WithString("galaxies", mcp.Description("Comma-separated galaxy filter (e.g. mitre-intrusion-set,malpedia)")),
		mcp.WithString("partial", mcp.Description("Set to '1' to fall back to substring matching")),
	)

	kit.RegisterMCPTool(srv, tool, instrument("resolve_name", resolveEndpoint(r)), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		query, _ := args["query"].(string)
		return &kit.MCPDecodeResult{Request: &resolveReq{Query: query, Opts: mcpOpts(args)}}, nil
	})
}

func registerResolveCompound(srv *server.MCPServer, r *galaxy.Resolver) {
	tool := mcp.NewTool("resolve_compound",
		mcp.WithDescription("Decompose a compound label (e.g. a sandbox verdict like 'sednit dropper') and resolve each fragment against the galaxy catalogs."),
		mcp.WithString("label", mcp.Required(), mcp.Description("The compound label to decompose and resolve")),
		mcp.WithString("galaxies", mcp.Description("Comma-separated galaxy filter")),
		mcp.WithString("separators", mcp.Description("Separator characters (default: space and comma)")),
	)

	kit.RegisterMCPTool(srv, tool, instrument("resolve_compound", resolveCompoundEndpoint(r)), func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		label, _ := args["label"].(string)
		opts := mcpOpts(args)
		if v, _ := args["separators"].(string); v != "" {
			opts.Separators = v
		}
		return &kit.MCPDecodeResult{Request: &compoundReq{Label: label, Opts: opts}}, nil
	})
}

func registerListGalaxies(srv *server.MCPServer, r *galaxy.Resolver) {
	tool := mcp.NewTool("list_galaxies",
		mcp.WithDescription("List all indexed galaxy catalogs with metadata (name, version, entry count, source)."),
	)

	kit.RegisterMCPTool(srv, tool, instrument("list_galaxies", listGalaxiesEndpoint(r)), func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}

func mcpOpts(args map[string]any) *galaxy.ResolveOptions {
	opts := &galaxy.ResolveOptions{}
	if v, _ := args["galaxies"].(string); v != "" {
		opts.Galaxies = strings.Split(v, ",")
	}
	if v, _ := args["partial"].(string); v == "1" {
		opts.IncludePartial = true
	}
	return opts
}
