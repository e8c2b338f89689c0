package api

// Endpoint: POST /file/upload
type UploadResponse struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

// Endpoint: DELETE /file/{key}
type DeleteResponse struct {
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

// Every non-2xx JSON body.
type ErrorResponse struct {
	Error string `json:"error"`
}
