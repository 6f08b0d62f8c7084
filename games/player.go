package games

import (
	"github.com/gobuffalo/nulls"
	"sync"
)

// PlayerStatus is the status of a Player.
type PlayerStatus int

const (
	// PlayerUnregistered is used for unknown players.
	PlayerUnregistered PlayerStatus = iota
	// PlayerRegistered is used for players that are known but not in the lobby
	// or a match.
	PlayerRegistered
	// PlayerLobbied is used for players waiting in the lobby.
	PlayerLobbied
	// PlayerMatched is used for players handed to a match but not drafted yet.
	PlayerMatched
	// PlayerPicked is used for captains and drafted players.
	PlayerPicked
	// PlayerActive is used for players of a match that is getting ready or
	// playing.
	PlayerActive
)

func (s PlayerStatus) String() string {
	switch s {
	case PlayerUnregistered:
		return "unregistered"
	case PlayerRegistered:
		return "registered"
	case PlayerLobbied:
		return "lobbied"
	case PlayerMatched:
		return "matched"
	case PlayerPicked:
		return "picked"
	case PlayerActive:
		return "active"
	}
	return "unknown"
}

// Player is a registered player.
type Player struct {
	// ID identifies the player.
	ID string
	// Name is the display handle.
	Name string
	// HasOwnAccount describes whether the player plays with an own account and
	// therefore does not need one from the account pool.
	HasOwnAccount bool
	status        PlayerStatus
	statusMutex   sync.RWMutex
}

// NewPlayer creates a new registered Player.
func NewPlayer(id string, name string, hasOwnAccount bool) *Player {
	return &Player{
		ID:            id,
		Name:          name,
		HasOwnAccount: hasOwnAccount,
		status:        PlayerRegistered,
	}
}

// Status returns the current PlayerStatus.
func (p *Player) Status() PlayerStatus {
	p.statusMutex.RLock()
	defer p.statusMutex.RUnlock()
	return p.status
}

// SetStatus sets the PlayerStatus.
func (p *Player) SetStatus(status PlayerStatus) {
	p.statusMutex.Lock()
	defer p.statusMutex.Unlock()
	p.status = status
}

// ActivePlayer is a Player that is part of a Team.
type ActivePlayer struct {
	*Player
	team *Team
	// account is the allocated account. It is not set for players with own
	// account or before accounts were given.
	account nulls.String
	// accountValidated describes whether the player confirmed to be logged in
	// with the allocated account.
	accountValidated bool
}

// Team returns the Team the player is part of.
func (p *ActivePlayer) Team() *Team {
	return p.team
}

// Account returns the allocated account.
func (p *ActivePlayer) Account() nulls.String {
	return p.account
}

// IsReady describes whether the player may start. Players with own account
// are always ready.
func (p *ActivePlayer) IsReady() bool {
	return p.HasOwnAccount || p.accountValidated
}

// Captain is the ActivePlayer responsible for the decisions of a Team.
type Captain struct {
	*ActivePlayer
	// turn describes whether the captain is expected to act.
	turn bool
}

// Turn describes whether it is the captain's turn.
func (c *Captain) Turn() bool {
	return c.turn
}

func names(players []*Player) []string {
	n := make([]string, 0, len(players))
	for _, p := range players {
		n = append(n, p.Name)
	}
	return n
}
