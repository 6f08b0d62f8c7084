package app

import (
	"github.com/lefinal/pug-server/cues"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/games"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestMatchConfig(t *testing.T) {
	config := validConfig().Match
	config.PickCueDelay = time.Second
	config.AccountTimeout = 2 * time.Second
	got, err := matchConfig(config)
	require.NoError(t, err, "should not fail")
	assert.Equal(t, config.RoundLength, got.RoundLength)
	assert.Equal(t, config.Maps, got.Maps)
	assert.Equal(t, games.DefaultCountdown(), got.Countdown, "should use default countdown")
	assert.Equal(t, time.Second, got.PickCueDelay)
	assert.Equal(t, 2*time.Second, got.AccountTimeout)
	red, err := got.Factions.Parse("red")
	require.NoError(t, err, "should parse configured faction")
	assert.Equal(t, games.Faction(1), red)
}

func TestMatchConfigCustomCountdown(t *testing.T) {
	config := validConfig().Match
	config.Countdown = []games.CountdownStep{{Delay: time.Second, Remaining: 1}}
	got, err := matchConfig(config)
	require.NoError(t, err, "should not fail")
	assert.Equal(t, config.Countdown, got.Countdown)
}

func TestMatchConfigInvalidFactions(t *testing.T) {
	config := validConfig().Match
	config.Factions = map[string]int{"Red": 0}
	_, err := matchConfig(config)
	require.Error(t, err, "should fail")
	assert.True(t, errors.Is(err, errors.KindInvalidConfig), "should fail with correct kind")
}

func TestClipDurations(t *testing.T) {
	got := clipDurations(map[string]time.Duration{
		string(cues.ClipSwapSides): 4 * time.Second,
	})
	assert.Equal(t, map[cues.Clip]time.Duration{cues.ClipSwapSides: 4 * time.Second}, got)
}
