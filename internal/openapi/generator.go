// Package openapi builds the OpenAPI 3 description of the license server's
// HTTP surface.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/licensed/internal/license"
	"github.com/faucetdb/licensed/internal/model"
)

const (
	tagValidate = "validate"
	tagLicense  = "license"
	tagSystem   = "system"
)

// Generate returns the document for the validation endpoint and the admin
// API, served from baseURL.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "licensed API",
			Description: "Activation code licensing: client validation endpoint and administration API.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
		Tags: openapi3.Tags{
			{Name: tagValidate, Description: "Client activation and hardware checks"},
			{Name: tagLicense, Description: "Activation code and binding administration"},
			{Name: tagSystem, Description: "Admin accounts, sessions and API keys"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"apiKey": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{Type: "apiKey", In: "header", Name: "X-API-Key"},
		},
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	addValidatePaths(doc)
	addLicensePaths(doc)
	addSystemPaths(doc)
	return doc
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addValidatePaths(doc *openapi3.T) {
	op := &openapi3.Operation{
		Tags:        []string{tagValidate},
		Summary:     "Activate a code or check a hardware id",
		Description: "Always answers 200 with a status field; 400 only for an unreadable body. Rate limited per client IP.",
		OperationID: "validate",
		Security:    &openapi3.SecurityRequirements{},
		RequestBody: jsonBody("Validation request", ref("ValidateRequest")),
		Responses:   newResponses("200", "Validation outcome", ref("ValidateResponse"), "400", "429"),
	}
	doc.Paths.Set("/validate", &openapi3.PathItem{Post: op})

	legacy := *op
	legacy.OperationID = "validateLegacy"
	legacy.Summary = "Alias of /validate for deployed clients"
	doc.Paths.Set("/validate.php", &openapi3.PathItem{Post: &legacy})
}

func addLicensePaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/license/codes", &openapi3.PathItem{
		Get: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "List activation codes, newest first",
			OperationID: "listCodes",
			Parameters: append(pageParameters(), &openapi3.ParameterRef{
				Value: openapi3.NewQueryParameter("filter").
					WithDescription("Which codes to return.").
					WithSchema(openapi3.NewStringSchema().WithEnum("all", "used", "unused")),
			}),
			Responses: newResponses("200", "A page of codes", listOf("ActivationCode"), "400", "401", "500"),
		}),
		Post: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "Generate a batch of activation codes",
			OperationID: "generateCodes",
			RequestBody: jsonBody("Batch parameters; omitted fields take their defaults", ref("GenerateRequest")),
			Responses:   newResponses("201", "Generated codes", ref("GenerateResponse"), "400", "401", "403", "500"),
		}),
	})
	doc.Paths.Set("/api/v1/license/codes/{codeId}", &openapi3.PathItem{
		Delete: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "Delete an unused, unbound code",
			OperationID: "deleteCode",
			Parameters:  openapi3.Parameters{idParameter("codeId")},
			Responses:   newResponses("200", "Code deleted", ref("SuccessResponse"), "400", "401", "403", "409"),
		}),
	})
	doc.Paths.Set("/api/v1/license/bindings", &openapi3.PathItem{
		Get: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "List hardware bindings, most recently activated first",
			OperationID: "listBindings",
			Parameters:  pageParameters(),
			Responses:   newResponses("200", "A page of bindings", listOf("BindingView"), "401", "500"),
		}),
	})
	doc.Paths.Set("/api/v1/license/bindings/{bindingId}", &openapi3.PathItem{
		Delete: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "Delete a binding and release its code",
			OperationID: "deleteBinding",
			Parameters:  openapi3.Parameters{idParameter("bindingId")},
			Responses:   newResponses("200", "Binding deleted", ref("SuccessResponse"), "400", "401", "403", "404"),
		}),
	})

	hw := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("hardwareId").WithSchema(openapi3.NewStringSchema().WithMaxLength(license.MaxFieldLength)),
	}
	doc.Paths.Set("/api/v1/license/hardware/{hardwareId}", &openapi3.PathItem{
		Get: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "Binding and license status of a hardware id",
			OperationID: "getHardware",
			Parameters:  openapi3.Parameters{hw},
			Responses:   newResponses("200", "Binding and status", ref("HardwareResponse"), "401", "404"),
		}),
		Delete: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "Release the binding held by a hardware id",
			OperationID: "deleteHardware",
			Parameters:  openapi3.Parameters{hw},
			Responses:   newResponses("200", "Binding deleted", ref("SuccessResponse"), "401", "403", "404"),
		}),
	})
	doc.Paths.Set("/api/v1/license/stats", &openapi3.PathItem{
		Get: authed(&openapi3.Operation{
			Tags:        []string{tagLicense},
			Summary:     "Code and binding counts",
			OperationID: "licenseStats",
			Responses:   newResponses("200", "Counts", ref("CodeStats"), "401", "500"),
		}),
	})
}

func addSystemPaths(doc *openapi3.T) {
	loginBody := openapi3.NewObjectSchema().
		WithProperty("email", openapi3.NewStringSchema()).
		WithProperty("password", openapi3.NewStringSchema().WithFormat("password"))
	loginBody.Required = []string{"email", "password"}

	session := openapi3.NewObjectSchema().
		WithProperty("session_token", openapi3.NewStringSchema()).
		WithProperty("token_type", openapi3.NewStringSchema()).
		WithProperty("expires_in", openapi3.NewIntegerSchema()).
		WithProperty("admin_id", openapi3.NewInt64Schema()).
		WithProperty("email", openapi3.NewStringSchema()).
		WithProperty("name", openapi3.NewStringSchema())

	doc.Paths.Set("/api/v1/system/admin/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "Log in and obtain a session token",
			OperationID: "login",
			Security:    &openapi3.SecurityRequirements{},
			RequestBody: jsonBody("Credentials", &openapi3.SchemaRef{Value: loginBody}),
			Responses:   newResponses("200", "Session token", &openapi3.SchemaRef{Value: session}, "400", "401"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "Log out",
			OperationID: "logout",
			Responses:   newResponses("200", "Session discarded", ref("SuccessResponse")),
		},
	})

	adminBody := openapi3.NewObjectSchema().
		WithProperty("email", openapi3.NewStringSchema()).
		WithProperty("password", openapi3.NewStringSchema().WithFormat("password").WithMinLength(8)).
		WithProperty("name", openapi3.NewStringSchema())
	adminBody.Required = []string{"email", "password"}

	doc.Paths.Set("/api/v1/system/admin", &openapi3.PathItem{
		Get: authed(&openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "List admins",
			OperationID: "listAdmins",
			Responses:   newResponses("200", "Admins", listOf("Admin"), "401", "403"),
		}),
		Post: authed(&openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "Create an admin",
			OperationID: "createAdmin",
			RequestBody: jsonBody("New admin", &openapi3.SchemaRef{Value: adminBody}),
			Responses:   newResponses("201", "Created admin", ref("Admin"), "400", "401", "403", "409"),
		}),
	})

	keyBody := openapi3.NewObjectSchema().
		WithProperty("label", openapi3.NewStringSchema()).
		WithProperty("scope", openapi3.NewStringSchema().WithEnum(model.ScopeRead, model.ScopeAdmin)).
		WithProperty("expires_at", openapi3.NewDateTimeSchema())

	doc.Paths.Set("/api/v1/system/api-key", &openapi3.PathItem{
		Get: authed(&openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "List API keys",
			OperationID: "listAPIKeys",
			Responses:   newResponses("200", "API keys", listOf("APIKey"), "401", "403"),
		}),
		Post: authed(&openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "Create an API key; the plaintext key is returned once",
			OperationID: "createAPIKey",
			RequestBody: jsonBody("Key parameters", &openapi3.SchemaRef{Value: keyBody}),
			Responses:   newResponses("201", "Created key", ref("CreatedAPIKey"), "400", "401", "403"),
		}),
	})
	doc.Paths.Set("/api/v1/system/api-key/{keyId}", &openapi3.PathItem{
		Delete: authed(&openapi3.Operation{
			Tags:        []string{tagSystem},
			Summary:     "Revoke an API key",
			OperationID: "revokeAPIKey",
			Parameters:  openapi3.Parameters{idParameter("keyId")},
			Responses:   newResponses("200", "Key revoked", ref("SuccessResponse"), "400", "401", "403", "404"),
		}),
	})
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func componentSchemas() openapi3.Schemas {
	str := openapi3.NewStringSchema
	expiry := func() *openapi3.Schema {
		return str().WithPattern(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	}

	errorDetail := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewInt32Schema()).
		WithProperty("message", str()).
		WithProperty("context", openapi3.NewObjectSchema())

	validateReq := openapi3.NewObjectSchema().
		WithProperty("action", str().WithEnum("activate", "check_hardware", "check")).
		WithProperty("activation_code", str().WithMaxLength(license.MaxFieldLength)).
		WithProperty("hardware_id", str().WithMaxLength(license.MaxFieldLength))
	validateReq.Required = []string{"action"}

	validateResp := openapi3.NewObjectSchema().
		WithProperty("status", str().WithEnum(model.StatusSuccess, model.StatusError)).
		WithProperty("message", str()).
		WithProperty("activated", openapi3.NewBoolSchema()).
		WithProperty("update_available", openapi3.NewBoolSchema()).
		WithProperty("expiry_date", expiry()).
		WithProperty("license_type", str())
	validateResp.Required = []string{"status", "message"}

	generateReq := openapi3.NewObjectSchema().
		WithProperty("license_type", str().WithMinLength(1).WithMaxLength(50).WithDefault(license.DefaultLicenseType)).
		WithProperty("duration", openapi3.NewIntegerSchema().WithMin(1).WithMax(3650).WithDefault(license.DefaultDurationDays)).
		WithProperty("count", openapi3.NewIntegerSchema().WithMin(1).WithMax(100).WithDefault(license.DefaultCount))

	generateResp := openapi3.NewObjectSchema().
		WithProperty("status", str()).
		WithProperty("codes", openapi3.NewArraySchema().WithItems(str())).
		WithProperty("count", openapi3.NewIntegerSchema()).
		WithProperty("license_type", str()).
		WithProperty("duration", openapi3.NewIntegerSchema())

	code := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("code", str()).
		WithProperty("license_type", str()).
		WithProperty("duration", openapi3.NewIntegerSchema()).
		WithProperty("is_used", openapi3.NewBoolSchema()).
		WithProperty("created_at", openapi3.NewDateTimeSchema())

	binding := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("hardware_id", str()).
		WithProperty("activation_code", str()).
		WithProperty("license_type", str()).
		WithProperty("expiry_date", openapi3.NewDateTimeSchema()).
		WithProperty("activated_at", openapi3.NewDateTimeSchema())

	view := openapi3.NewObjectSchema().
		WithProperty("code_license_type", str()).
		WithProperty("duration", openapi3.NewIntegerSchema())
	for name, p := range binding.Properties {
		view.Properties[name] = p
	}

	status := openapi3.NewObjectSchema().
		WithProperty("activated", openapi3.NewBoolSchema()).
		WithProperty("expired", openapi3.NewBoolSchema()).
		WithProperty("found", openapi3.NewBoolSchema()).
		WithProperty("expiry_date", openapi3.NewDateTimeSchema()).
		WithProperty("license_type", str())

	stats := openapi3.NewObjectSchema().
		WithProperty("total_codes", openapi3.NewInt64Schema()).
		WithProperty("used_codes", openapi3.NewInt64Schema()).
		WithProperty("unused_codes", openapi3.NewInt64Schema()).
		WithProperty("bindings", openapi3.NewInt64Schema()).
		WithProperty("active_bindings", openapi3.NewInt64Schema())

	admin := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("email", str()).
		WithProperty("name", str()).
		WithProperty("is_active", openapi3.NewBoolSchema()).
		WithProperty("last_login_at", openapi3.NewDateTimeSchema()).
		WithProperty("created_at", openapi3.NewDateTimeSchema()).
		WithProperty("updated_at", openapi3.NewDateTimeSchema())

	apiKey := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("key_prefix", str()).
		WithProperty("label", str()).
		WithProperty("scope", str().WithEnum(model.ScopeRead, model.ScopeAdmin)).
		WithProperty("is_active", openapi3.NewBoolSchema()).
		WithProperty("expires_at", openapi3.NewDateTimeSchema()).
		WithProperty("created_at", openapi3.NewDateTimeSchema()).
		WithProperty("last_used", openapi3.NewDateTimeSchema())

	created := openapi3.NewObjectSchema().WithProperty("api_key", str())
	for name, p := range apiKey.Properties {
		created.Properties[name] = p
	}

	return openapi3.Schemas{
		"ErrorResponse":    openapi3.NewSchemaRef("", openapi3.NewObjectSchema().WithProperty("error", errorDetail)),
		"SuccessResponse":  openapi3.NewSchemaRef("", openapi3.NewObjectSchema().WithProperty("success", openapi3.NewBoolSchema()).WithProperty("message", str())),
		"ValidateRequest":  openapi3.NewSchemaRef("", validateReq),
		"ValidateResponse": openapi3.NewSchemaRef("", validateResp),
		"GenerateRequest":  openapi3.NewSchemaRef("", generateReq),
		"GenerateResponse": openapi3.NewSchemaRef("", generateResp),
		"ActivationCode":   openapi3.NewSchemaRef("", code),
		"Binding":          openapi3.NewSchemaRef("", binding),
		"BindingView":      openapi3.NewSchemaRef("", view),
		"HardwareStatus":   openapi3.NewSchemaRef("", status),
		"HardwareResponse": openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
			WithPropertyRef("binding", ref("Binding")).
			WithPropertyRef("status", ref("HardwareStatus"))),
		"CodeStats":     openapi3.NewSchemaRef("", stats),
		"Admin":         openapi3.NewSchemaRef("", admin),
		"APIKey":        openapi3.NewSchemaRef("", apiKey),
		"CreatedAPIKey": openapi3.NewSchemaRef("", created),
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// listOf wraps a component in the resource/meta list envelope.
func listOf(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: openapi3.NewObjectSchema().
			WithPropertyRef("resource", &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref(name)},
			}).
			WithPropertyRef("meta", metaSchema()),
	}
}

func jsonBody(desc string, schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: desc,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

// authed marks op as requiring an API key or an admin session token.
func authed(op *openapi3.Operation) *openapi3.Operation {
	op.Security = &openapi3.SecurityRequirements{
		{"apiKey": {}},
		{"bearerAuth": {}},
	}
	return op
}

func idParameter(name string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter(name).WithSchema(openapi3.NewInt64Schema().WithMin(1)),
	}
}

func pageParameters() openapi3.Parameters {
	return openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of records to return.").
				WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithMax(model.MaxPageLimit).WithDefault(model.DefaultPageLimit)),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of records to skip before returning results.").
				WithSchema(openapi3.NewIntegerSchema().WithMin(0)),
		},
	}
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Forbidden",
	"404": "Not found",
	"409": "Conflict",
	"429": "Too many requests",
	"500": "Internal server error",
}

// newResponses builds a Responses map with a success response and the listed
// error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := ref("ErrorResponse")
	for _, code := range errorCodes {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

// metaSchema returns the schema for the "meta" field in list responses.
func metaSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: openapi3.NewObjectSchema().
			WithProperty("count", described(openapi3.NewIntegerSchema(), "Records in this page.")).
			WithProperty("total", described(openapi3.NewInt64Schema(), "Records matching the query.")).
			WithProperty("limit", described(openapi3.NewIntegerSchema(), "Maximum records returned per page.")).
			WithProperty("offset", described(openapi3.NewIntegerSchema(), "Number of records skipped.")),
	}
}

func described(s *openapi3.Schema, desc string) *openapi3.Schema {
	s.Description = desc
	return s
}
