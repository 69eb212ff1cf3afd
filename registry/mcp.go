package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/turdm/turc/kit"
	"github.com/turdm/turc/safe"
)

// RegisterMCP registers the download tools on an MCP server.
func (r *Registry) RegisterMCP(srv *mcp.Server) {
	r.registerListTool(srv)
	r.registerStartTool(srv)
	r.registerPauseTool(srv)
	r.registerResumeTool(srv)
	r.registerCancelTool(srv)
	r.registerHistoryTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- downloads_list ---

type listDownloadsRequest struct {
	Filter string `json:"filter,omitempty"`
}

func (r *Registry) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "downloads_list",
		Description: "List downloads in presentation order: active rows first, higher progress first within each class.",
		InputSchema: inputSchema(map[string]any{
			"filter": map[string]any{"type": "string", "enum": []any{"all", "completed", "in_progress"}, "description": "Restrict to completed or in-progress rows (default: all)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*listDownloadsRequest)
		switch Filter(rr.Filter) {
		case "", FilterAll, FilterCompleted, FilterInProgress:
		default:
			return nil, fmt.Errorf("unknown filter %q", rr.Filter)
		}
		return r.Filtered(Filter(rr.Filter)), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr listDownloadsRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- downloads_start ---

type startDownloadsRequest struct {
	URLs []string `json:"urls"`
}

func (r *Registry) registerStartTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "downloads_start",
		Description: "Queue new downloads by URL. Rows appear once the engine confirms the queueing.",
		InputSchema: inputSchema(map[string]any{
			"urls": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "HTTP or HTTPS URLs to download"},
		}, []string{"urls"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*startDownloadsRequest)
		if len(rr.URLs) == 0 {
			return nil, fmt.Errorf("urls must not be empty")
		}
		for _, u := range rr.URLs {
			if err := safe.ValidateDownloadURL(u); err != nil {
				return nil, fmt.Errorf("%s: %w", u, err)
			}
		}
		if err := r.Start(ctx, rr.URLs); err != nil {
			return nil, err
		}
		return map[string]any{"status": "queued", "count": len(rr.URLs)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr startDownloadsRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- downloads_pause ---

type pauseDownloadRequest struct {
	ID string `json:"id"`
}

func (r *Registry) registerPauseTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "downloads_pause",
		Description: "Pause one download. The row flips to paused immediately; a failed engine call reverts it.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Download ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*pauseDownloadRequest)
		if err := r.Pause(ctx, rr.ID); err != nil {
			return nil, err
		}
		if d, ok := r.Get(rr.ID); ok {
			return d, nil
		}
		return map[string]string{"status": "paused", "id": rr.ID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr pauseDownloadRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- downloads_resume ---

type resumeDownloadsRequest struct {
	IDs []string `json:"ids"`
}

func (r *Registry) registerResumeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "downloads_resume",
		Description: "Resume paused downloads with one batched engine call. Unknown and finished ids are skipped.",
		InputSchema: inputSchema(map[string]any{
			"ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Download IDs to resume"},
		}, []string{"ids"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*resumeDownloadsRequest)
		if len(rr.IDs) == 0 {
			return nil, fmt.Errorf("ids must not be empty")
		}
		if err := r.Resume(ctx, rr.IDs...); err != nil {
			return nil, err
		}
		return map[string]any{"status": "resuming", "count": len(rr.IDs)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr resumeDownloadsRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- downloads_cancel ---

type cancelDownloadRequest struct {
	ID string `json:"id"`
}

func (r *Registry) registerCancelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "downloads_cancel",
		Description: "Cancel one download and remove its row. The removal stands even when the engine call fails.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Download ID"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*cancelDownloadRequest)
		if err := r.Cancel(ctx, rr.ID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cancelled", "id": rr.ID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr cancelDownloadRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- history_list ---

type listHistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

func (r *Registry) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "history_list",
		Description: "List download history records, most recently updated first.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max records (default 100)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*listHistoryRequest)
		if rr.Limit <= 0 {
			rr.Limit = 100
		}
		recs, err := r.History(ctx, rr.Limit)
		if err != nil {
			return nil, err
		}
		if recs == nil {
			recs = []*HistoryRecord{}
		}
		return recs, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr listHistoryRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
