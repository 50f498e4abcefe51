package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

// requireString extracts a required, non-empty string argument.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil || val == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// requireID extracts a required positive integer id.
func requireID(request mcp.CallToolRequest, key string) (int64, error) {
	val, err := request.RequireInt(key)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("parameter %q must be a positive integer", key)
	}
	return int64(val), nil
}

// pageArgs reads limit and offset, clamped to the allowed window.
func pageArgs(request mcp.CallToolRequest) model.Page {
	return model.Page{
		Limit:  clamp(request.GetInt("limit", defaultToolLimit), 1, model.MaxPageLimit),
		Offset: max(request.GetInt("offset", 0), 0),
	}
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the model so it can correct itself; they do not end the
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// licenseError reports a license failure using its client-facing message.
func licenseError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(license.Message(err)), nil
}

// clamp constrains val to [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
