package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	statsURI            = "licensed://stats"
	hardwareURIPrefix   = "licensed://hardware/"
	hardwareURITemplate = hardwareURIPrefix + "{hardware_id}"
)

// registerResources adds read-only data clients can load into context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			statsURI,
			"License Statistics",
			mcp.WithResourceDescription(
				"Current code and binding counts for the license server.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleStatsResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			hardwareURITemplate,
			"Hardware License Status",
			mcp.WithTemplateDescription(
				"Activation status, expiry and license type for one hardware id.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleHardwareResource,
	)
}

func (s *MCPServer) handleStatsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	st, err := s.gateway.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return jsonContents(statsURI, st)
}

// handleHardwareResource answers licensed://hardware/{hardware_id}.
func (s *MCPServer) handleHardwareResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	hw := strings.TrimPrefix(uri, hardwareURIPrefix)
	if hw == "" || hw == uri {
		return nil, fmt.Errorf("invalid hardware URI %q: expected %s", uri, hardwareURITemplate)
	}

	st, err := s.engine.CheckHardware(ctx, hw)
	if err != nil {
		return nil, fmt.Errorf("failed to check hardware %q: %w", hw, err)
	}
	return jsonContents(uri, st)
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
