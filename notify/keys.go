package notify

import (
	"github.com/lefinal/pug-server/errors"
)

// Key identifies a notification. Only keys listed in knownKeys are accepted.
type Key string

// Lobby notifications.
const (
	KeyLobbyAdded         Key = "LB_ADDED"
	KeyLobbyRemoved       Key = "LB_REMOVED"
	KeyLobbyReminder      Key = "LB_NOTIFY"
	KeyLobbyStuck         Key = "LB_STUCK"
	KeyLobbyMatchStarting Key = "LB_MATCH_STARTING"
	KeyLobbyWentInactive  Key = "LB_WENT_INACTIVE"
	KeyLobbyCleared       Key = "LB_CLEARED"
)

// Picking notifications.
const (
	KeyMatchInit       Key = "MATCH_INIT"
	KeyShowPicks       Key = "MATCH_SHOW_PICKS"
	KeyPicked          Key = "PK_OK"
	KeyPickedLast      Key = "PK_LAST"
	KeyPickFaction     Key = "PK_OK_FACTION"
	KeyFactionPicked   Key = "PK_FACTION_OK"
	KeyFactionTaken    Key = "PK_FACTION_TAKEN"
	KeyCaptainResigned Key = "PK_RESIGNED"
	KeyWaitMap         Key = "PK_WAIT_MAP"
	KeyMapSelected     Key = "PK_MAP_SELECTED"
	KeyMapAuto         Key = "MATCH_MAP_AUTO"
	KeyMapConfirmed    Key = "MATCH_MAP_CONFIRMED"
	KeySubstituted     Key = "SUB_OK"
)

// Match notifications.
const (
	KeyAccountsNotEnough    Key = "ACC_NOT_ENOUGH"
	KeyAccountsError        Key = "ACC_ERROR"
	KeyAccountsNotValidated Key = "ACC_NOT_VALIDATED"
	KeyAccountValidated     Key = "ACC_VALIDATED"
	KeyMatchConfirm         Key = "MATCH_CONFIRM"
	KeyTeamReady            Key = "MATCH_TEAM_READY"
	KeyTeamNotReady         Key = "MATCH_TEAM_NOT_READY"
	KeyTeamAlreadyReady     Key = "MATCH_TEAM_ALREADY_READY"
	KeyTeamNotConfirmed     Key = "MATCH_TEAM_NOT_CONFIRMED"
	KeyMatchStarting        Key = "MATCH_STARTING"
	KeyMatchStarted         Key = "MATCH_STARTED"
	KeyRoundOver            Key = "MATCH_ROUND_OVER"
	KeySwap                 Key = "MATCH_SWAP"
	KeyMatchOver            Key = "MATCH_OVER"
	KeyMatchAborted         Key = "MATCH_ABORTED"
	KeyMatchCleared         Key = "MATCH_CLEARED"
)

var knownKeys = map[Key]struct{}{
	KeyLobbyAdded:           {},
	KeyLobbyRemoved:         {},
	KeyLobbyReminder:        {},
	KeyLobbyStuck:           {},
	KeyLobbyMatchStarting:   {},
	KeyLobbyWentInactive:    {},
	KeyLobbyCleared:         {},
	KeyMatchInit:            {},
	KeyShowPicks:            {},
	KeyPicked:               {},
	KeyPickedLast:           {},
	KeyPickFaction:          {},
	KeyFactionPicked:        {},
	KeyFactionTaken:         {},
	KeyCaptainResigned:      {},
	KeyWaitMap:              {},
	KeyMapSelected:          {},
	KeyMapAuto:              {},
	KeyMapConfirmed:         {},
	KeySubstituted:          {},
	KeyAccountsNotEnough:    {},
	KeyAccountsError:        {},
	KeyAccountsNotValidated: {},
	KeyAccountValidated:     {},
	KeyMatchConfirm:         {},
	KeyTeamReady:            {},
	KeyTeamNotReady:         {},
	KeyTeamAlreadyReady:     {},
	KeyTeamNotConfirmed:     {},
	KeyMatchStarting:        {},
	KeyMatchStarted:         {},
	KeyRoundOver:            {},
	KeySwap:                 {},
	KeyMatchOver:            {},
	KeyMatchAborted:         {},
	KeyMatchCleared:         {},
}

// Valid checks whether the Key is a known one.
func (k Key) Valid() bool {
	_, ok := knownKeys[k]
	return ok
}

// ParseKey parses the given raw key. Unknown keys yield an
// errors.KindUnknownNotificationKey error.
func ParseKey(raw string) (Key, error) {
	k := Key(raw)
	if !k.Valid() {
		return "", errors.NewBadRequestError(errors.KindUnknownNotificationKey, "unknown notification key",
			errors.Details{"key": raw})
	}
	return k, nil
}
