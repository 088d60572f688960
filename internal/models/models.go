package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a device.
type State string

const (
	StateAvailable State = "available"
	StateInUse     State = "in-use"
	StateInactive  State = "inactive"
)

var validStates = []State{StateAvailable, StateInUse, StateInactive}

// ValidStates returns every known state in declaration order.
func ValidStates() []State {
	out := make([]State, len(validStates))
	copy(out, validStates)
	return out
}

// ParseState resolves a state token. Matching ignores case, so "IN-USE" and
// "in-use" are the same state.
func ParseState(token string) (State, error) {
	for _, s := range validStates {
		if strings.EqualFold(string(s), token) {
			return s, nil
		}
	}
	return "", &InvalidStateError{Token: token}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, v := range validStates {
		if s == v {
			return true
		}
	}
	return false
}

func (s State) String() string { return string(s) }

// MarshalJSON encodes the state as its token.
func (s State) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, &InvalidStateError{Token: string(s)}
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON decodes a state token, rejecting anything outside the known set.
func (s *State) UnmarshalJSON(b []byte) error {
	var token string
	if err := json.Unmarshal(b, &token); err != nil {
		return &InvalidStateError{Token: string(b)}
	}
	parsed, err := ParseState(token)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// InvalidStateError is returned when a state token is not one of the known states.
type InvalidStateError struct {
	Token string
}

func (e *InvalidStateError) Error() string {
	tokens := make([]string, len(validStates))
	for i, s := range validStates {
		tokens[i] = string(s)
	}
	return fmt.Sprintf("Invalid device state: %s. Valid states are: %s", e.Token, strings.Join(tokens, ", "))
}

// Device is a managed device record.
type Device struct {
	ID           int64
	Name         string
	Brand        string
	State        State
	CreationTime time.Time
	Version      int64
}

// InUse reports whether the device is currently in use. In-use devices may not
// be renamed, rebranded, or deleted.
func (d *Device) InUse() bool {
	return d.State == StateInUse
}
