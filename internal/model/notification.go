package model

// Payload is the content of a push message. Data values are strings because
// FCM only carries string maps.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Recipient addresses one principal.
type Recipient struct {
	UserID   uint     `json:"userId"`
	UserType UserType `json:"userType"`
}

// DispatchResult summarises delivery to every active token of one recipient.
type DispatchResult struct {
	UserID       uint     `json:"userId"`
	UserType     UserType `json:"userType"`
	Success      bool     `json:"success"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	RemovedCount int      `json:"removedCount"`
	Message      string   `json:"message,omitempty"`
	Error        string   `json:"error,omitempty"`
}
