package middleware

const (
	RequestIDKey = "request_id"
	// UserIDKey holds the uuid.UUID parsed from the identity header.
	UserIDKey = "user_id"

	RequestIDHeader = "X-Request-ID"
	UserIDHeader    = "X-User-ID"
)

// error codes shared with handlers
const (
	CodeUnauthorized = 40101
	CodeValidation   = 42201
	CodeRateLimited  = 42901
	CodeInternal     = 50001
)
