package telegram

import "fmt"

// APIError is an unsuccessful Bot API response. Callers can use errors.As
// to inspect the code, for instance to tell a blocked user (403) apart from
// a malformed request (400).
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Forbidden reports whether the bot was blocked or lacks rights in the chat.
func (e *APIError) Forbidden() bool {
	return e.Code == 403
}
