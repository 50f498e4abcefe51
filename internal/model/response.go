package model

// ListResponse is the standard envelope for admin list endpoints.
type ListResponse struct {
	Resource interface{}   `json:"resource"`
	Meta     *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta contains pagination information for list responses.
type ResponseMeta struct {
	Count  int    `json:"count"`
	Total  *int64 `json:"total,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ErrorResponse is the standard envelope for admin API error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// ValidateRequest is the body accepted by the public validation endpoint.
type ValidateRequest struct {
	Action         string `json:"action"`
	ActivationCode string `json:"activation_code"`
	HardwareID     string `json:"hardware_id"`
}

// ValidateResponse is the single result object returned by the validation
// endpoint. Fields not relevant to the action are omitted.
type ValidateResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Activated   *bool  `json:"activated,omitempty"`
	// UpdateAvailable answers the legacy "check" action.
	UpdateAvailable *bool `json:"update_available,omitempty"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
	LicenseType string `json:"license_type,omitempty"`
}

// GenerateResponse is returned after a successful code batch.
type GenerateResponse struct {
	Status      string   `json:"status"`
	Codes       []string `json:"codes"`
	Count       int      `json:"count"`
	LicenseType string   `json:"license_type"`
	Duration    int      `json:"duration"`
}

// Status values used by the license endpoints.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StatusResponse is the bare status/message object used by the license
// endpoints when there is nothing else to return.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
