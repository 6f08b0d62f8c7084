package games

import (
	"fmt"
	"github.com/lefinal/pug-server/errors"
	"strings"
)

// Faction is the in-game affiliation of a Team.
type Faction int

// FactionUnset is used for teams that did not pick a faction yet.
const FactionUnset Faction = 0

// Factions is the closed set of configured factions.
type Factions struct {
	byName  map[string]Faction
	byValue map[Faction]string
}

// NewFactions creates Factions from the given name-to-value mapping. Values
// must be unique and not FactionUnset.
func NewFactions(nameToValue map[string]int) (Factions, error) {
	f := Factions{
		byName:  make(map[string]Faction),
		byValue: make(map[Faction]string),
	}
	for name, value := range nameToValue {
		faction := Faction(value)
		if faction == FactionUnset {
			return Factions{}, errors.Error{
				Code:    errors.ErrInternal,
				Kind:    errors.KindInvalidConfig,
				Message: fmt.Sprintf("faction %s uses reserved value %d", name, value),
			}
		}
		if other, ok := f.byValue[faction]; ok {
			return Factions{}, errors.Error{
				Code:    errors.ErrInternal,
				Kind:    errors.KindInvalidConfig,
				Message: fmt.Sprintf("factions %s and %s share value %d", name, other, value),
			}
		}
		f.byName[strings.ToLower(name)] = faction
		f.byValue[faction] = name
	}
	return f, nil
}

// Parse the faction with the given name. Names are compared case-insensitive.
func (f Factions) Parse(name string) (Faction, error) {
	faction, ok := f.byName[strings.ToLower(name)]
	if !ok {
		return FactionUnset, errors.NewBadRequestError(errors.KindUnknownFaction, "unknown faction",
			errors.Details{"faction": name})
	}
	return faction, nil
}

// Name returns the name of the given Faction or an empty string if unset or
// unknown.
func (f Factions) Name(faction Faction) string {
	return f.byValue[faction]
}

// Len returns the number of factions.
func (f Factions) Len() int {
	return len(f.byValue)
}

// Team is one of the two teams of a match session.
type Team struct {
	id      int
	name    string
	captain *Captain
	// players holds all players of the team with the captain at first position.
	players []*ActivePlayer
	faction Faction
}

// newTeam creates a Team with the given Player as captain.
func newTeam(id int, name string, captain *Player) *Team {
	t := &Team{
		id:      id,
		name:    name,
		faction: FactionUnset,
	}
	t.captain = &Captain{ActivePlayer: t.addPlayer(captain)}
	return t
}

// ID returns the team index (0 or 1).
func (t *Team) ID() int {
	return t.id
}

// Name returns the display name.
func (t *Team) Name() string {
	return t.name
}

// Captain returns the team's Captain.
func (t *Team) Captain() *Captain {
	return t.captain
}

// Faction returns the picked Faction or FactionUnset.
func (t *Team) Faction() Faction {
	return t.faction
}

// Players returns all players including the captain.
func (t *Team) Players() []*ActivePlayer {
	return t.players
}

// addPlayer adds the given Player to the team and marks it as picked.
func (t *Team) addPlayer(p *Player) *ActivePlayer {
	p.SetStatus(PlayerPicked)
	active := &ActivePlayer{
		Player: p,
		team:   t,
	}
	t.players = append(t.players, active)
	return active
}

// drafted returns the number of picked players without the captain.
func (t *Team) drafted() int {
	return len(t.players) - 1
}

// matchReady marks all players as active.
func (t *Team) matchReady() {
	for _, p := range t.players {
		p.SetStatus(PlayerActive)
	}
}

// find the ActivePlayer with the given player id.
func (t *Team) find(playerID string) (*ActivePlayer, bool) {
	for _, p := range t.players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// substitute replaces the player with the given id in place. The substitute
// takes over status, account and captaincy. Account validation is reset.
func (t *Team) substitute(playerID string, sub *Player) (*ActivePlayer, bool) {
	for i, p := range t.players {
		if p.ID != playerID {
			continue
		}
		sub.SetStatus(p.Status())
		replacement := &ActivePlayer{
			Player:  sub,
			team:    t,
			account: p.account,
		}
		t.players[i] = replacement
		if t.captain.ActivePlayer == p {
			t.captain.ActivePlayer = replacement
		}
		return replacement, true
	}
	return nil, false
}

// notReady returns all players that did not validate their allocated account.
func (t *Team) notReady() []*Player {
	notReady := make([]*Player, 0)
	for _, p := range t.players {
		if !p.IsReady() {
			notReady = append(notReady, p.Player)
		}
	}
	return notReady
}

// basePlayers returns the underlying players of all team members.
func (t *Team) basePlayers() []*Player {
	players := make([]*Player, 0, len(t.players))
	for _, p := range t.players {
		players = append(players, p.Player)
	}
	return players
}
