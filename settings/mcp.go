package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/turdm/turc/kit"
)

// RegisterMCP registers the settings tools on an MCP server.
func (s *Store) RegisterMCP(srv *mcp.Server) {
	s.registerGetTool(srv)
	s.registerSetTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// --- settings_get ---

type getSettingRequest struct {
	Path string `json:"path,omitempty"`
}

func (s *Store) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "settings_get",
		Description: "Read a setting by dotted path (e.g. network.proxy.host), or the whole document when no path is given.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Dotted setting path; omit for the full document"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*getSettingRequest)
		if rr.Path == "" {
			return s.Document(), nil
		}
		value, ok := s.Get(rr.Path)
		if !ok {
			return nil, fmt.Errorf("unknown setting: %s", rr.Path)
		}
		return Update{Path: rr.Path, Value: value}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr getSettingRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- settings_set ---

type setSettingRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (s *Store) registerSetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "settings_set",
		Description: "Write a setting by dotted path. The value is persisted before the change becomes visible.",
		InputSchema: inputSchema(map[string]any{
			"path":  map[string]any{"type": "string", "description": "Dotted setting path (e.g. app.theme)"},
			"value": map[string]any{"description": "New value; must fit the field's type"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*setSettingRequest)
		if rr.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		if err := s.Set(ctx, rr.Path, rr.Value); err != nil {
			return nil, err
		}
		value, _ := s.Get(rr.Path)
		return Update{Path: rr.Path, Value: value}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr setSettingRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
