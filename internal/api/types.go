package api

// TextRequest is the body of POST /process_text
type TextRequest struct {
	Text *string `json:"text"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
