package chat

import "errors"

// Failure taxonomy shared by the membership service and the message pipeline.
// Infra layers map these to transport codes; they never invent their own.
var (
	ErrNotFound          = errors.New("chat: not found")
	ErrForbidden         = errors.New("chat: forbidden")
	ErrInvalidMembership = errors.New("chat: invalid membership")
	ErrInvalidPayload    = errors.New("chat: invalid payload")
	ErrInvalidTransition = errors.New("chat: invalid status transition")
)

// PayloadError names the field that failed kind-specific validation so the
// caller can correct the request. It matches ErrInvalidPayload under errors.Is.
type PayloadError struct {
	Field string
}

func (e *PayloadError) Error() string {
	return "chat: invalid payload: " + e.Field
}

func (e *PayloadError) Is(target error) bool {
	return target == ErrInvalidPayload
}

func fieldError(field string) error {
	return &PayloadError{Field: field}
}
