package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/shopper/pkg/core"
)

// ToolSpec describes a registry tool as an MCP tool with one property per parameter.
func ToolSpec(t core.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description())}
	for _, p := range t.Parameters() {
		var popts []mcp.PropertyOption
		if p.Description != "" {
			popts = append(popts, mcp.Description(p.Description))
		}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		switch p.Type {
		case core.ParamNumber:
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case core.ParamBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		case core.ParamArray:
			popts = append(popts, mcp.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithArray(p.Name, popts...))
		case core.ParamObject:
			opts = append(opts, mcp.WithObject(p.Name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		}
	}
	return mcp.NewTool(t.Name(), opts...)
}

// ToolHandler invokes t with the call arguments. Tools taking a single
// free-text "input" parameter receive that value; others receive the whole
// argument object. Failures are returned as MCP tool errors, not protocol
// errors, so clients see the same observation the agent loop would.
func ToolHandler(t core.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		res := t.Invoke(ctx, toolInput(t, args))
		if res.Failed() {
			return mcp.NewToolResultError(res.Observation()), nil
		}
		return mcp.NewToolResultText(res.Observation()), nil
	}
}

func toolInput(t core.Tool, args map[string]any) any {
	params := t.Parameters()
	if len(params) == 1 && params[0].Name == "input" {
		return args["input"]
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}
