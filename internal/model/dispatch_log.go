package model

import "time"

const (
	DispatchStatusSuccess = "SUCCESS"
	DispatchStatusFailed  = "FAILED"
)

// DispatchLog tracks each delivery attempt to a single token.
type DispatchLog struct {
	ID           uint64    `json:"id"`
	UserID       uint      `json:"userId"`
	UserType     UserType  `json:"userType"`
	TokenPreview string    `json:"tokenPreview"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	Message      string    `json:"message,omitempty"`
	Removed      bool      `json:"removed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DispatchLogFilter describes query parameters for log searching.
type DispatchLogFilter struct {
	UserType  string
	Status    string
	Type      string
	BeginTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// DispatchLogPage is one page of dispatch log entries, newest first.
type DispatchLogPage struct {
	Data     []*DispatchLog `json:"data"`
	Total    int            `json:"total"`
	Pages    int            `json:"pages"`
	PageNum  int            `json:"pageNum"`
	PageSize int            `json:"pageSize"`
}
