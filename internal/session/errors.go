package session

import (
	"errors"

	"github.com/askgate-dev/askgate/internal/choice"
)

var (
	// ErrNotFound marks an unknown or already-evicted session id.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyResolved marks a second resolution attempt. It is a soft
	// failure: the recorded outcome is untouched and callers treat it as
	// success with someone else's result.
	ErrAlreadyResolved = errors.New("outcome already recorded")
)

// ResolveByID commits out for the identified session. It is the tagged-result
// form of Session.Resolve: nil on the winning resolution, ErrAlreadyResolved
// when a prior resolution stands, ErrNotFound for an unknown id.
func (r *Registry) ResolveByID(id string, out choice.Outcome) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !s.Resolve(out) {
		return ErrAlreadyResolved
	}
	return nil
}
