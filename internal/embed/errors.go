package embed

import "errors"

var (
	// ErrNotFound means no embed exists under the given code.
	ErrNotFound = errors.New("embed not found")
	// ErrUnauthorized means the code exists but the presented owner
	// secret does not match.
	ErrUnauthorized = errors.New("owner secret mismatch")
	// ErrCodeSpaceExhausted means code generation kept colliding; the
	// configured code space is too small for the stored volume.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique embed code")
)

// ValidationError reports a user-correctable problem with a single
// submitted field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
