// Package identity models locally registered users of the remote authority.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tresorgate/internal/platform/id"
)

// State is the registration state of an identity. It only moves forward.
type State int

const (
	// StateInitiated means a registration session exists but the user cannot log in.
	StateInitiated State = 0
	// StateFinishedRegistration means client-side registration completed and
	// the identity awaits validation.
	StateFinishedRegistration State = 1
	// StateValidated means the identity may authenticate.
	StateValidated State = 2
)

// ValidationCodeLength is the length of generated validation codes.
const ValidationCodeLength = 32

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateFinishedRegistration:
		return "finished_registration"
	case StateValidated:
		return "validated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s >= StateInitiated && s <= StateValidated
}

// RegistrationData holds the secrets needed to validate a registration.
// It exists only before the identity is validated.
type RegistrationData struct {
	SessionID          string `json:"sessionId"`
	SessionVerifier    string `json:"sessionVerifier"`
	ValidationVerifier string `json:"validationVerifier,omitempty"`
	ValidationCode     string `json:"validationCode,omitempty"`
}

// Identity pairs a remote user id with a locally chosen name.
type Identity struct {
	ID           string            `json:"id"`
	UserName     string            `json:"userName"`
	State        State             `json:"state"`
	Registration *RegistrationData `json:"registrationData,omitempty"`
	// ProfileData is an opaque JSON document owned by the application.
	ProfileData string    `json:"profileData,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NormalizeUserName trims surrounding whitespace from a user name.
func NormalizeUserName(name string) string {
	return strings.TrimSpace(name)
}

// Advance moves the identity to next. Only single forward steps are
// allowed; reaching StateValidated clears the registration data.
func (i *Identity) Advance(next State) error {
	if !next.Valid() {
		return fmt.Errorf("unknown state %d", int(next))
	}
	if next != i.State+1 {
		return fmt.Errorf("cannot move identity from %s to %s", i.State, next)
	}
	i.State = next
	if next == StateValidated {
		i.Registration = nil
	}
	return nil
}

// Clone returns a deep copy safe to hand to policy code.
func (i Identity) Clone() Identity {
	if i.Registration != nil {
		reg := *i.Registration
		i.Registration = &reg
	}
	return i
}

// Public returns a copy with registration secrets removed.
func (i Identity) Public() Identity {
	i.Registration = nil
	return i
}

// NewValidationCode returns a fresh random alphanumeric validation code.
func NewValidationCode() (string, error) {
	return id.NewCode(ValidationCodeLength)
}
