package games

import (
	"context"
	"github.com/lefinal/pug-server/errors"
	"go.uber.org/zap"
	"sync"
)

// Registry is the fixed collection of match slots. Slots are created once and
// live as long as the Registry.
type Registry struct {
	logger *zap.Logger
	// matches holds all matches in configured order.
	matches []*Match
	byID    map[string]*Match
	// latestNumber is the number of the last launched match.
	latestNumber int
	// numberMutex locks latestNumber.
	numberMutex sync.Mutex
}

// NewRegistry creates a Registry with one Match for each of the given slots.
// Match numbers continue after the given latest one.
func NewRegistry(lifetime context.Context, logger *zap.Logger, slots []SlotConfig, config MatchConfig, deps Deps,
	latestNumber int) (*Registry, error) {
	r := &Registry{
		logger:       logger,
		matches:      make([]*Match, 0, len(slots)),
		byID:         make(map[string]*Match, len(slots)),
		latestNumber: latestNumber,
	}
	for _, slot := range slots {
		if _, ok := r.byID[slot.ID]; ok {
			return nil, errors.Error{
				Code:    errors.ErrInternal,
				Kind:    errors.KindInvalidConfig,
				Message: "duplicate slot id",
				Details: errors.Details{"slot": slot.ID},
			}
		}
		match := newMatch(lifetime, logger.Named("match").Named(slot.ID), slot, config, deps)
		r.matches = append(r.matches, match)
		r.byID[slot.ID] = match
	}
	return r, nil
}

// Match returns the Match for the slot with the given id. If no such slot is
// configured, an errors.KindElementNotFound error is returned.
func (r *Registry) Match(slotID string) (*Match, error) {
	match, ok := r.byID[slotID]
	if !ok {
		return nil, errors.NewElementNotFoundError("match slot", errors.Details{"slot": slotID})
	}
	return match, nil
}

// Matches returns all matches in configured order.
func (r *Registry) Matches() []*Match {
	return r.matches
}

// FindFree returns the first free Match in configured order.
func (r *Registry) FindFree() (*Match, bool) {
	for _, match := range r.matches {
		if match.Status() == StatusFree {
			return match, true
		}
	}
	return nil, false
}

// NextNumber returns the number for the next launched match.
func (r *Registry) NextNumber() int {
	r.numberMutex.Lock()
	defer r.numberMutex.Unlock()
	r.latestNumber++
	return r.latestNumber
}

// OnFree sets the function to call whenever a Match became free again.
func (r *Registry) OnFree(fn func(match *Match)) {
	for _, match := range r.matches {
		match.setOnFree(fn)
	}
}

// Snapshot returns snapshots of all matches in configured order.
func (r *Registry) Snapshot() []MatchSnapshot {
	snapshots := make([]MatchSnapshot, 0, len(r.matches))
	for _, match := range r.matches {
		snapshots = append(snapshots, match.Snapshot())
	}
	return snapshots
}
