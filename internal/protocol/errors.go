package protocol

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Application error codes, reserved range -32000 to -32099.
const (
	CodeAuthenticationRequired = -32001
	CodePermissionDenied       = -32002
	CodeResourceNotFound       = -32003
	CodeToolExecutionFailed    = -32004
	CodeRateLimitExceeded      = -32005
	CodeSubscriptionFailed     = -32006
	CodeInvalidFinancialData   = -32007
	CodeEncryptionRequired     = -32008
	CodeSessionExpired         = -32009
	CodeFraudDetected          = -32010
)

var codeText = map[int]string{
	CodeParseError:     "Parse error",
	CodeInvalidRequest: "Invalid Request",
	CodeMethodNotFound: "Method not found",
	CodeInvalidParams:  "Invalid params",
	CodeInternal:       "Internal error",

	CodeAuthenticationRequired: "Authentication required",
	CodePermissionDenied:       "Permission denied",
	CodeResourceNotFound:       "Resource not found",
	CodeToolExecutionFailed:    "Tool execution failed",
	CodeRateLimitExceeded:      "Rate limit exceeded",
	CodeSubscriptionFailed:     "Subscription failed",
	CodeInvalidFinancialData:   "Invalid financial data",
	CodeEncryptionRequired:     "Encryption required",
	CodeSessionExpired:         "Session expired",
	CodeFraudDetected:          "Fraud detected",
}

// CodeText returns the canonical message for a reserved error code,
// or "Unknown error" for codes outside the table.
func CodeText(code int) string {
	if s, ok := codeText[code]; ok {
		return s
	}
	return "Unknown error"
}

// Error is a wire-level error. It implements the error interface so
// providers can return it directly and have the dispatcher pass the
// code through unchanged.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// NewError creates an Error with the canonical message for code.
func NewError(code int) *Error {
	return &Error{Code: code, Message: CodeText(code)}
}

// Errorf creates an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithData returns a copy of the error carrying diagnostic data.
func (e *Error) WithData(data any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Data: data}
}
