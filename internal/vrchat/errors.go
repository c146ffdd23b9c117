package vrchat

import "fmt"

// AuthError means the login or TOTP handshake failed irrecoverably: bad
// credentials, a non-2FA rejection, an exhausted retry budget, or a fresh
// session that the API still refuses. The current poll cycle aborts; the
// next tick starts over.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vrchat auth failed: %s: %v", e.Reason, e.Err)
	}
	return "vrchat auth failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError is a non-auth failure fetching the group instance list. It
// carries the message reported by the API ("unknown" when the body gave us
// nothing usable).
type FetchError struct {
	Message string
}

func (e *FetchError) Error() string {
	return "fetch group instances failed: " + e.Message
}
