package model

import "errors"

// Failure taxonomy shared by the token acquirer, the fetcher and the UI.
// Callers match with errors.Is; the wrapped cause carries the detail.
var (
	ErrAuthSilentFailed      = errors.New("silent sign-in failed")
	ErrAuthInteractiveFailed = errors.New("interactive sign-in failed")
	ErrAuthNoToken           = errors.New("no token obtained")
	ErrAuthRejected          = errors.New("token rejected by mail service")
	ErrFetchNetwork          = errors.New("mail service unreachable")
	ErrFetchService          = errors.New("mail service error")
)
