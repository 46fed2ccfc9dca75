package models

const (
	CtxSessionIDKey = "sessionID"
	CtxSessionKey   = "session"

	LoginRoute = "/auth/v1/login"

	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageQuery is the pagination/search triple every dashboard list view sends.
type PageQuery struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Search   string `json:"search,omitempty"`
}
