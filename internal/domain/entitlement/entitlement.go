package entitlement

import (
	"fmt"
	"time"
)

// State is the session's entitlement. The zero value is not entitled.
//
// A State only becomes granted through Grant with a purchase event or a
// validation source; listing products never grants. Nothing in this
// package revokes a grant.
type State struct {
	granted   bool
	source    Source
	grantedAt time.Time
}

// Grant marks the state entitled. The first grant's source and time are
// kept; later grants are no-ops.
func (s *State) Grant(source Source, at time.Time) error {
	if !source.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	if s.granted {
		return nil
	}
	s.granted = true
	s.source = source
	s.grantedAt = at
	return nil
}

// Granted reports whether gated content is unlocked.
func (s State) Granted() bool {
	return s.granted
}

// Source returns what granted the entitlement, or "" when not granted.
func (s State) Source() Source {
	return s.source
}

func (s State) GrantedAt() time.Time {
	return s.grantedAt
}
