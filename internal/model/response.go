package model

// BasicResponse is the JSON envelope for every API response.
type BasicResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Msg     string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

const (
	SuccessCode      = "OK"
	ErrorCode        = "INTERNAL"
	ValidationCode   = "VALIDATION_ERROR"
	UnauthorizedCode = "UNAUTHORIZED"
	ForbiddenCode    = "FORBIDDEN"
	NotFoundCode     = "NOT_FOUND"
)

// Success wraps data with a success code.
func Success(msg string, data any) BasicResponse {
	return BasicResponse{
		Success: true,
		Code:    SuccessCode,
		Msg:     msg,
		Data:    data,
	}
}

// Error returns a BasicResponse with the default error code.
func Error(msg string) BasicResponse {
	return ErrorWithCode(ErrorCode, msg)
}

// ErrorWithCode allows specifying a custom error code.
func ErrorWithCode(code, msg string) BasicResponse {
	return BasicResponse{
		Code: code,
		Msg:  msg,
	}
}

// HealthStatus is returned by the health endpoint.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Push     string `json:"push"`
	Error    string `json:"error,omitempty"`
}
