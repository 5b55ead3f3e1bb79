package azauth

import "fmt"

// Phase tags which part of the credential flow an AuthenticationError
// originated from.
type Phase string

const (
	// PhaseInitialization covers credential construction.
	PhaseInitialization Phase = "initialization"
	// PhaseTokenAcquisition covers the first token fetch.
	PhaseTokenAcquisition Phase = "token_acquisition"
	// PhaseTokenRefresh covers replacing a previously cached token.
	PhaseTokenRefresh Phase = "token_refresh"
)

// AuthenticationError reports a cloud-credential failure together with the
// phase it occurred in.
type AuthenticationError struct {
	Phase Phase
	Err   error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("azure authentication failed during %s: %v", e.Phase, e.Err)
	}

	return fmt.Sprintf("azure authentication failed during %s", e.Phase)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
