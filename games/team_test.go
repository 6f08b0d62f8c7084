package games

import (
	"github.com/gobuffalo/nulls"
	"github.com/lefinal/pug-server/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"testing"
)

func TestNewFactions(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		factions, err := NewFactions(map[string]int{"Red": 1, "Blue": 2})
		require.NoError(t, err, "should not fail")
		assert.Equal(t, 2, factions.Len())
	})
	t.Run("reserved value", func(t *testing.T) {
		_, err := NewFactions(map[string]int{"Red": 0})
		assert.True(t, errors.Is(err, errors.KindInvalidConfig), "should fail with correct kind")
	})
	t.Run("duplicate value", func(t *testing.T) {
		_, err := NewFactions(map[string]int{"Red": 1, "Blue": 1})
		assert.True(t, errors.Is(err, errors.KindInvalidConfig), "should fail with correct kind")
	})
}

func TestFactions_Parse(t *testing.T) {
	factions := testFactions()
	faction, err := factions.Parse("rED")
	require.NoError(t, err, "should ignore case")
	assert.Equal(t, Faction(1), faction)
	assert.Equal(t, "Red", factions.Name(faction), "should keep configured name")
	_, err = factions.Parse("green")
	assert.True(t, errors.Is(err, errors.KindUnknownFaction), "should fail with correct kind")
	assert.Empty(t, factions.Name(FactionUnset), "unset should have no name")
}

// teamSuite tests Team.
type teamSuite struct {
	suite.Suite
	captain *Player
	team    *Team
}

func (suite *teamSuite) SetupTest() {
	suite.captain = NewPlayer("c", "Captain", true)
	suite.team = newTeam(0, "Team 1", suite.captain)
}

func (suite *teamSuite) TestNewTeam() {
	suite.Equal(FactionUnset, suite.team.Faction())
	suite.Require().Len(suite.team.Players(), 1, "should include captain")
	suite.Equal(suite.captain, suite.team.Captain().Player)
	suite.Equal(PlayerPicked, suite.captain.Status())
	suite.False(suite.team.Captain().Turn())
	suite.Zero(suite.team.drafted())
}

func (suite *teamSuite) TestAddPlayer() {
	p := NewPlayer("p", "P", false)
	active := suite.team.addPlayer(p)
	suite.Equal(suite.team, active.Team())
	suite.Equal(PlayerPicked, p.Status())
	suite.Equal(1, suite.team.drafted())
	found, ok := suite.team.find("p")
	suite.Require().True(ok)
	suite.Equal(active, found)
	_, ok = suite.team.find("unknown")
	suite.False(ok)
}

func (suite *teamSuite) TestMatchReady() {
	p := NewPlayer("p", "P", false)
	suite.team.addPlayer(p)
	suite.team.matchReady()
	suite.Equal(PlayerActive, p.Status())
	suite.Equal(PlayerActive, suite.captain.Status())
}

func (suite *teamSuite) TestNotReady() {
	p := NewPlayer("p", "P", false)
	active := suite.team.addPlayer(p)
	suite.Equal([]*Player{p}, suite.team.notReady(), "player without own account should validate")
	active.accountValidated = true
	suite.Empty(suite.team.notReady())
}

func (suite *teamSuite) TestSubstituteCaptain() {
	suite.team.captain.turn = true
	suite.team.captain.account = nulls.NewString("acc-1")
	suite.team.captain.accountValidated = true
	sub := NewPlayer("s", "Sub", false)
	replacement, ok := suite.team.substitute("c", sub)
	suite.Require().True(ok, "should substitute")
	suite.Equal(replacement, suite.team.Captain().ActivePlayer, "should take over captaincy")
	suite.True(suite.team.Captain().Turn(), "should keep turn")
	suite.Equal("acc-1", replacement.Account().String, "should inherit account")
	suite.False(replacement.IsReady(), "should reset validation")
	suite.Equal(PlayerPicked, sub.Status(), "should inherit status")
	suite.Equal(replacement, suite.team.Players()[0], "should replace in place")
}

func (suite *teamSuite) TestSubstituteUnknown() {
	_, ok := suite.team.substitute("unknown", NewPlayer("s", "Sub", true))
	suite.False(ok)
}

func TestTeam(t *testing.T) {
	suite.Run(t, new(teamSuite))
}
