// Package maps provides map selection for matches.
package maps

import (
	"github.com/lefinal/pug-server/errors"
	"strings"
)

// Status of a Selector.
type Status int

const (
	// StatusUnselected is used when no map has been selected yet.
	StatusUnselected Status = iota
	// StatusSelected is used when a map was selected but not confirmed.
	StatusSelected
	// StatusConfirmed is used when the selected map is final.
	StatusConfirmed
)

func (s Status) String() string {
	switch s {
	case StatusUnselected:
		return "unselected"
	case StatusSelected:
		return "selected"
	case StatusConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// Map is a playable map.
type Map struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// Selector holds the map selection for one match session. It is not safe for
// concurrent use.
type Selector struct {
	pool     []Map
	status   Status
	selected Map
}

// NewSelector creates a Selector for the given pool. A pool with only one map
// is confirmed right away.
func NewSelector(pool []Map) *Selector {
	s := &Selector{
		pool:   pool,
		status: StatusUnselected,
	}
	if len(pool) == 1 {
		s.selected = pool[0]
		s.status = StatusConfirmed
	}
	return s
}

// Status returns the current Status.
func (s *Selector) Status() Status {
	return s.status
}

// Pool returns all selectable maps.
func (s *Selector) Pool() []Map {
	return s.pool
}

// Select the map with the given name or id. Names are compared
// case-insensitive. Selecting after confirmation is not allowed.
func (s *Selector) Select(nameOrID string) (Map, error) {
	if s.status == StatusConfirmed {
		return Map{}, errors.NewBadRequestError(errors.KindMatchPhaseViolation, "map already confirmed",
			errors.Details{"map": s.selected.Name})
	}
	for _, m := range s.pool {
		if m.ID == nameOrID || strings.EqualFold(m.Name, nameOrID) {
			s.selected = m
			s.status = StatusSelected
			return m, nil
		}
	}
	return Map{}, errors.NewBadRequestError(errors.KindUnknownMap, "unknown map", errors.Details{"map": nameOrID})
}

// Confirm the selected map. It reports false if no map is selected.
func (s *Selector) Confirm() bool {
	switch s.status {
	case StatusSelected:
		s.status = StatusConfirmed
		return true
	case StatusConfirmed:
		return true
	}
	return false
}

// Map returns the confirmed map. The second return value is false if the
// selection is not confirmed yet.
func (s *Selector) Map() (Map, bool) {
	if s.status != StatusConfirmed {
		return Map{}, false
	}
	return s.selected, true
}

// Selected returns the currently selected map, confirmed or not.
func (s *Selector) Selected() (Map, bool) {
	if s.status == StatusUnselected {
		return Map{}, false
	}
	return s.selected, true
}
