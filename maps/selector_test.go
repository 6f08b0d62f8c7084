package maps

import (
	"github.com/lefinal/pug-server/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

var testPool = []Map{
	{ID: "ceres", Name: "Ceres"},
	{ID: "ghanan", Name: "Ghanan South"},
}

func TestNewSelector(t *testing.T) {
	s := NewSelector(testPool)
	assert.Equal(t, StatusUnselected, s.Status(), "should be unselected")
	_, ok := s.Map()
	assert.False(t, ok, "should not have map")
}

func TestNewSelectorSingleMapConfirmed(t *testing.T) {
	s := NewSelector(testPool[:1])
	assert.Equal(t, StatusConfirmed, s.Status(), "should be confirmed")
	m, ok := s.Map()
	require.True(t, ok, "should have map")
	assert.Equal(t, testPool[0], m, "should have the only map")
}

func TestSelector_Select(t *testing.T) {
	s := NewSelector(testPool)
	m, err := s.Select("ghanan south")
	require.NoError(t, err, "should select by name")
	assert.Equal(t, testPool[1], m, "should return selected")
	assert.Equal(t, StatusSelected, s.Status(), "should be selected")
	_, ok := s.Map()
	assert.False(t, ok, "should not be confirmed")
	m, err = s.Select("ceres")
	require.NoError(t, err, "should select by id")
	assert.Equal(t, testPool[0], m, "should replace selection")
}

func TestSelector_SelectUnknown(t *testing.T) {
	s := NewSelector(testPool)
	_, err := s.Select("nowhere")
	assert.True(t, errors.Is(err, errors.KindUnknownMap), "should fail with unknown map")
	assert.Equal(t, StatusUnselected, s.Status(), "should not change status")
}

func TestSelector_Confirm(t *testing.T) {
	s := NewSelector(testPool)
	assert.False(t, s.Confirm(), "should not confirm without selection")
	assert.Equal(t, StatusUnselected, s.Status(), "should not change status")
	_, err := s.Select("ceres")
	require.NoError(t, err)
	assert.True(t, s.Confirm(), "should confirm")
	m, ok := s.Map()
	require.True(t, ok, "should have map")
	assert.Equal(t, testPool[0], m)
	_, err = s.Select("ghanan")
	assert.True(t, errors.Is(err, errors.KindMatchPhaseViolation), "should not allow select after confirm")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "confirmed", StatusConfirmed.String())
}
