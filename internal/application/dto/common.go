package dto

// ErrorResponse cuerpo de error HTTP. Retryable solo es true cuando se sabe que no se aplicó nada.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
