package service

import "errors"

// Error kinds reported to callers. Operations wrap these with context via
// fmt.Errorf("...: %w", ...), so callers match with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidState         = errors.New("invalid state")
	ErrChatDisabled         = errors.New("chat disabled")
	ErrMonetizationDisabled = errors.New("monetization disabled")
	ErrValidation           = errors.New("validation failed")
)
