// Package event holds all payloads exchanged over the portal.

package event

import (
	"github.com/eclipse/paho.golang/paho"
	"github.com/lefinal/pug-server/errors"
	"time"
)

// Event is a received message with its parsed payload.
type Event[T any] struct {
	Publish *paho.Publish
	Payload T
}

// EmptyEvent is used for topics without payload.
type EmptyEvent struct{}

// ErrorEventPayload is published for failed commands.
type ErrorEventPayload struct {
	// Code is the error code from errors.Error.
	Code string `json:"code"`
	// Kind is the error kind from errors.Error.
	Kind string `json:"kind,omitempty"`
	// Err is the error from errors.Error.
	Err string `json:"err"`
	// Message is the message from errors.Error.
	Message string `json:"message"`
	// Details are error details from errors.Error.
	Details map[string]interface{} `json:"details"`
	// Command is the topic of the command that failed.
	Command string `json:"command,omitempty"`
}

// ErrorEventPayloadFromError creates a ErrorEventPayload from the given error.
// Internal errors are reduced to their code.
func ErrorEventPayloadFromError(err error) ErrorEventPayload {
	e, _ := errors.Cast(err)
	if !errors.BlameUser(err) {
		return ErrorEventPayload{
			Code:    string(e.Code),
			Message: "internal server error",
		}
	}
	return ErrorEventPayload{
		Code:    string(e.Code),
		Kind:    string(e.Kind),
		Err:     e.Error(),
		Message: e.Message,
		Details: e.Details,
	}
}

// NotificationEvent is a user-facing notification. Edits of a previously sent
// notification reuse its Handle.
type NotificationEvent struct {
	// Handle identifies the notification for later edits.
	Handle string `json:"handle"`
	// Edit is set when a previously sent notification is replaced.
	Edit bool `json:"edit"`
	// Key is the notification key.
	Key string `json:"key"`
	// Target is the channel to post in.
	Target string `json:"target"`
	// Args are the arguments for rendering.
	Args []interface{} `json:"args"`
}

// CueAction is an action for a voice bot.
type CueAction string

const (
	// CueActionMove moves the bot to CueCommandEvent.Channel.
	CueActionMove CueAction = "move"
	// CueActionEnqueue enqueues CueCommandEvent.Clip.
	CueActionEnqueue CueAction = "enqueue"
	// CueActionPlay plays CueCommandEvent.Clip immediately.
	CueActionPlay CueAction = "play"
)

// CueCommandEvent is sent to voice bots.
type CueCommandEvent struct {
	Action  CueAction `json:"action"`
	Channel string    `json:"channel,omitempty"`
	Clip    string    `json:"clip,omitempty"`
}

// RegisterPlayerCommand registers or updates a player.
type RegisterPlayerCommand struct {
	PlayerID      string `json:"player_id"`
	Name          string `json:"name"`
	HasOwnAccount bool   `json:"has_own_account"`
}

// PlayerCommand is used for lobby commands regarding a single player.
type PlayerCommand struct {
	PlayerID string `json:"player_id"`
}

// MatchCommand is used for all commands regarding a match slot. Fields not
// needed by the command are ignored.
type MatchCommand struct {
	// SlotID identifies the match slot.
	SlotID string `json:"slot_id"`
	// TeamID is the team the issuing captain belongs to.
	TeamID int `json:"team_id"`
	// PlayerID is the picked, substituted or validating player.
	PlayerID string `json:"player_id"`
	// Faction is the faction name for faction picks.
	Faction string `json:"faction"`
	// Map is the map name for map selection.
	Map string `json:"map"`
}

// LobbyStatus is the lobby part of StatusEvent.
type LobbyStatus struct {
	Capacity int      `json:"capacity"`
	Players  []string `json:"players"`
	Stuck    bool     `json:"stuck"`
}

// TeamStatus is the team part of MatchStatus.
type TeamStatus struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Captain string   `json:"captain"`
	Turn    bool     `json:"turn"`
	Faction string   `json:"faction"`
	Players []string `json:"players"`
}

// MatchStatus is the match part of StatusEvent.
type MatchStatus struct {
	SlotID       string       `json:"slot_id"`
	Status       string       `json:"status"`
	Number       int          `json:"number"`
	Round        int          `json:"round"`
	Map          string       `json:"map,omitempty"`
	SidesSwapped bool         `json:"sides_swapped"`
	Unassigned   []string     `json:"unassigned"`
	Teams        []TeamStatus `json:"teams"`
}

// StatusEvent is a snapshot of the lobby and all match slots.
type StatusEvent struct {
	Time    time.Time     `json:"time"`
	Lobby   LobbyStatus   `json:"lobby"`
	Matches []MatchStatus `json:"matches"`
}

// NextLogEntryEvent is a published log entry.
type NextLogEntryEvent struct {
	Time       time.Time              `json:"time"`
	Message    string                 `json:"message"`
	Level      string                 `json:"level"`
	LoggerName string                 `json:"logger_name"`
	Fields     map[string]interface{} `json:"fields"`
}

// LogBatchEvent holds log entries collected since the last batch.
type LogBatchEvent struct {
	Entries []NextLogEntryEvent `json:"entries"`
}
