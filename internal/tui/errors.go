package tui

import (
	"context"
	"errors"

	"outlookterm/internal/model"
)

// errorText maps a refresh failure to what the user sees. Each failure class
// gets its own wording.
func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Sign-in cancelled."
	case errors.Is(err, model.ErrAuthInteractiveFailed) && errors.Is(err, context.DeadlineExceeded):
		return "Sign-in timed out before it was completed."
	case errors.Is(err, model.ErrAuthInteractiveFailed):
		return "Sign-in failed. No token could be obtained interactively."
	case errors.Is(err, model.ErrAuthSilentFailed):
		return "Could not reach the sign-in provider."
	case errors.Is(err, model.ErrAuthNoToken):
		return "Sign-in finished but returned no token."
	case errors.Is(err, model.ErrAuthRejected):
		return "The mail service rejected your sign-in. Run outlookterm logout and sign in again."
	case errors.Is(err, model.ErrFetchNetwork):
		return "Could not reach the mail service. Check your connection."
	case errors.Is(err, model.ErrFetchService):
		return "The mail service returned an error."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for the mail service."
	default:
		return "Something went wrong while loading the inbox."
	}
}
