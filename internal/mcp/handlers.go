package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	rt *ops.Runtime
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rt *ops.Runtime) *Handlers {
	return &Handlers{rt: rt}
}

// Request types for each tool

// LookupRequest represents the arguments for dict_lookup.
type LookupRequest struct {
	ID     string `json:"id"`
	Locale string `json:"locale,omitempty"`
	Source string `json:"source,omitempty"`
}

// RouteChunkRequest represents the arguments for dict_route_chunk.
type RouteChunkRequest struct {
	Target        string `json:"target,omitempty"`
	ChunkIndex    *int   `json:"chunk_index,omitempty"`
	ChunkSize     int    `json:"chunk_size,omitempty"`
	IncludeRoutes *bool  `json:"include_routes,omitempty"`
}

// VerifyRequest represents the arguments for dict_verify.
type VerifyRequest struct {
	RemoteBaseURL string `json:"remote_base_url,omitempty"`
}

// VerifyResponse wraps a verification report with a drift flag so agents do
// not have to recompute it from the totals.
type VerifyResponse struct {
	*ops.VerifyOutput
	Drift bool `json:"drift"`
}

// VerifyLocalResponse wraps a local verification report with its verdict.
type VerifyLocalResponse struct {
	*ops.VerifyLocalOutput
	OK bool `json:"ok"`
}

// HandleLookup handles the dict_lookup tool call.
func (h *Handlers) HandleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LookupRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Lookup(ctx, h.rt, ops.LookupInput{
		ID:     input.ID,
		Locale: input.Locale,
		Source: input.Source,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRouteChunk handles the dict_route_chunk tool call.
func (h *Handlers) HandleRouteChunk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RouteChunkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	in := ops.RoutesInput{
		Target:    config.BuildTarget(input.Target),
		ChunkSize: input.ChunkSize,
	}
	if input.ChunkIndex != nil {
		in.ChunkIndex, in.HasChunkIndex = *input.ChunkIndex, true
	}
	if input.ChunkSize < 0 {
		return errorResult(errors.NewInvalidConfig("chunk_size", "must be a positive integer")), nil
	}

	result, err := ops.Routes(ctx, h.rt, in)
	if err != nil {
		return errorResult(err), nil
	}
	if input.IncludeRoutes != nil && !*input.IncludeRoutes {
		result.Routes = []string{}
	}

	return successResult(result)
}

// HandleMeta handles the dict_meta tool call.
func (h *Handlers) HandleMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Meta(ctx, h.rt)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleVerify handles the dict_verify tool call. Drift is part of the
// result; fail_on_drift only affects the CLI exit code.
func (h *Handlers) HandleVerify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[VerifyRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Verify(ctx, h.rt, ops.VerifyInput{RemoteBaseURL: input.RemoteBaseURL})
	if err != nil && !(result != nil && errors.Is(err, errors.ErrDriftDetected)) {
		return errorResult(err), nil
	}

	return successResult(VerifyResponse{VerifyOutput: result, Drift: result.Report.HasDrift()})
}

// HandleVerifyLocal handles the dict_verify_local tool call.
func (h *Handlers) HandleVerifyLocal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.VerifyLocal(ctx, h.rt)
	if err != nil && !(result != nil && errors.Is(err, errors.ErrDataIntegrity)) {
		return errorResult(err), nil
	}

	return successResult(VerifyLocalResponse{VerifyLocalOutput: result, OK: result.Report.OK()})
}

// HandleReload handles the dict_reload tool call.
func (h *Handlers) HandleReload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Reload(ctx, h.rt)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var dErr *errors.DictError
	if stderrors.As(err, &dErr) {
		message := dErr.Message
		// Keep wrapper context such as "items[2]: ..." in the message.
		if err != error(dErr) {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":      dErr.Code,
			"message":   message,
			"exit_code": dErr.ExitCode,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if dErr.Code != errors.ErrInternal && len(dErr.Details) > 0 {
			errorObj["details"] = dErr.Details
		}
		if dErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":      "INTERNAL",
				"message":   "an internal error occurred",
				"exit_code": errors.ExitFailure,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
