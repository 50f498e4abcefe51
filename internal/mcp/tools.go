package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

// defaultToolLimit keeps list results small enough for a model's context.
const defaultToolLimit = 25

// registerTools registers all license tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Codes -----

	srv.AddTool(
		mcp.NewTool("license_generate_codes",
			mcp.WithDescription(
				"Generate a batch of new activation codes. Every code in the batch shares "+
					"the same license type and duration. The batch is stored atomically: "+
					"either all codes are created or none is. Returns the new codes.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("license_type",
				mcp.Description("License tier granted by the codes (default \"standard\")"),
				mcp.DefaultString(license.DefaultLicenseType),
			),
			mcp.WithNumber("duration",
				mcp.Description("License length in days counted from activation (1-3650, default 365)"),
				mcp.Min(1),
				mcp.Max(3650),
			),
			mcp.WithNumber("count",
				mcp.Description("Number of codes to generate (1-100, default 1)"),
				mcp.Min(1),
				mcp.Max(100),
			),
		),
		s.handleGenerateCodes,
	)

	srv.AddTool(
		mcp.NewTool("license_list_codes",
			mcp.WithDescription(
				"List activation codes, newest first, with the total count matching the "+
					"filter. Use filter \"unused\" to find codes that can still be handed out.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("filter",
				mcp.Description("Which codes to include"),
				mcp.Enum("all", "used", "unused"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of codes to return (default 25, max 1000)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of codes to skip for pagination"),
			),
		),
		s.handleListCodes,
	)

	srv.AddTool(
		mcp.NewTool("license_delete_code",
			mcp.WithDescription(
				"Delete an activation code by id. Only codes that were never used and are "+
					"not bound to hardware can be deleted.",
			),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Numeric id of the code (see license_list_codes)"),
			),
		),
		s.handleDeleteCode,
	)

	// ----- Bindings -----

	srv.AddTool(
		mcp.NewTool("license_list_bindings",
			mcp.WithDescription(
				"List hardware bindings, most recently activated first. Each binding "+
					"shows the hardware id, the code it holds, the license type and the "+
					"expiry date.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of bindings to return (default 25, max 1000)"),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of bindings to skip for pagination"),
			),
		),
		s.handleListBindings,
	)

	srv.AddTool(
		mcp.NewTool("license_delete_binding",
			mcp.WithDescription(
				"Release a hardware binding so its activation code can be used again. "+
					"Identify the binding by id or by hardware_id.",
			),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			mcp.WithNumber("id",
				mcp.Description("Numeric id of the binding (see license_list_bindings)"),
			),
			mcp.WithString("hardware_id",
				mcp.Description("Hardware identifier whose binding should be released"),
			),
		),
		s.handleDeleteBinding,
	)

	srv.AddTool(
		mcp.NewTool("license_check_hardware",
			mcp.WithDescription(
				"Report whether a hardware id holds an active license, with its expiry "+
					"date and license type. This is the same answer client software gets "+
					"from the check_hardware action.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("hardware_id",
				mcp.Required(),
				mcp.Description("Hardware identifier reported by the client"),
			),
		),
		s.handleCheckHardware,
	)

	srv.AddTool(
		mcp.NewTool("license_stats",
			mcp.WithDescription(
				"Aggregate counts: total, used and unused codes, plus total and "+
					"currently active bindings.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleStats,
	)
}

// handleGenerateCodes mints a batch of codes.
func (s *MCPServer) handleGenerateCodes(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	req := license.GenerateRequest{
		LicenseType:  request.GetString("license_type", license.DefaultLicenseType),
		DurationDays: request.GetInt("duration", license.DefaultDurationDays),
		Count:        request.GetInt("count", license.DefaultCount),
	}
	codes, err := s.generator.Generate(ctx, req)
	if err != nil {
		return licenseError(err)
	}

	out := make([]string, len(codes))
	for i := range codes {
		out[i] = codes[i].Code
	}
	return successJSON(model.GenerateResponse{
		Status:      model.StatusSuccess,
		Codes:       out,
		Count:       len(out),
		LicenseType: strings.TrimSpace(req.LicenseType),
		Duration:    req.DurationDays,
	})
}

// handleListCodes returns a page of codes with the filtered total.
func (s *MCPServer) handleListCodes(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	filter, err := model.ParseCodeFilter(request.GetString("filter", ""))
	if err != nil {
		return toolError("%v", err)
	}

	list, err := s.gateway.ListCodes(ctx, filter, pageArgs(request))
	if err != nil {
		return licenseError(err)
	}
	if list.Codes == nil {
		list.Codes = []model.ActivationCode{}
	}
	return successJSON(map[string]interface{}{
		"codes":  list.Codes,
		"total":  list.Total,
		"limit":  list.Page.Limit,
		"offset": list.Page.Offset,
		"filter": filter.String(),
	})
}

// handleDeleteCode removes an unused code.
func (s *MCPServer) handleDeleteCode(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireID(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	deleted, err := s.gateway.DeleteCode(ctx, id)
	if err != nil {
		return licenseError(err)
	}
	if !deleted {
		return toolError("Code %d not found, already used, or still bound", id)
	}
	return successJSON(map[string]interface{}{"deleted": true, "id": id})
}

// handleListBindings returns a page of bindings.
func (s *MCPServer) handleListBindings(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	list, err := s.gateway.ListBindings(ctx, pageArgs(request))
	if err != nil {
		return licenseError(err)
	}
	if list.Bindings == nil {
		list.Bindings = []model.BindingView{}
	}
	return successJSON(map[string]interface{}{
		"bindings": list.Bindings,
		"total":    list.Total,
		"limit":    list.Page.Limit,
		"offset":   list.Page.Offset,
	})
}

// handleDeleteBinding releases a binding by id or hardware id.
func (s *MCPServer) handleDeleteBinding(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id := request.GetInt("id", 0)
	hw := strings.TrimSpace(request.GetString("hardware_id", ""))

	var (
		deleted bool
		err     error
	)
	switch {
	case id > 0 && hw != "":
		return toolError("pass either id or hardware_id, not both")
	case id > 0:
		deleted, err = s.gateway.DeleteBinding(ctx, int64(id))
	case hw != "":
		deleted, err = s.gateway.DeleteHardware(ctx, hw)
	default:
		return toolError("one of id or hardware_id is required")
	}
	if err != nil {
		return licenseError(err)
	}
	if !deleted {
		return toolError("Binding not found")
	}
	return successJSON(map[string]interface{}{"deleted": true, "message": "Binding deleted, code released"})
}

// handleCheckHardware reports the license status of a hardware id.
func (s *MCPServer) handleCheckHardware(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	hw, err := requireString(request, "hardware_id")
	if err != nil {
		return toolError("%v", err)
	}

	st, err := s.engine.CheckHardware(ctx, hw)
	if err != nil {
		return licenseError(err)
	}
	return successJSON(st)
}

// handleStats returns aggregate counts.
func (s *MCPServer) handleStats(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	st, err := s.gateway.Stats(ctx)
	if err != nil {
		return licenseError(err)
	}
	return successJSON(st)
}
