package extract

import "fmt"

// Error represents a failure parsing a listing fragment. Like fetch errors,
// the harvest loop treats it as a soft per-source failure.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extract error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
