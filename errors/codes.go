package errors

// Code is a general error class that decides how an error is logged and
// whether the user is to blame.
type Code string

const (
	ErrAborted           Code = "aborted"
	ErrBadRequest        Code = "bad-request"
	ErrCommunication     Code = "communication"
	ErrConflict          Code = "conflict"
	ErrProtocolViolation Code = "protocol-violation"
	ErrFatal             Code = "fatal"
	ErrNotFound          Code = "not-found"
	ErrInternal          Code = "internal"
	// ErrResourceExhausted is used when a shared resource like the account pool
	// cannot serve a request.
	ErrResourceExhausted Code = "resource-exhausted"
	ErrUnexpected        Code = "unexpected"
)

// Kind is a more specific error type than Code.
type Kind string

const (
	// KindAccountsNotEnough is used when the account pool holds fewer accounts
	// than requested.
	KindAccountsNotEnough Kind = "accounts-not-enough"
	// KindCaptainResignDenied is used when a captain tries to resign after
	// drafting began or without a replacement available.
	KindCaptainResignDenied Kind = "captain-resign-denied"
	// KindContextAborted is used when we were currently performing an operation but
	// the context got aborted.
	KindContextAborted Kind = "context-aborted"
	KindDB             Kind = "db"
	KindDBRollback     Kind = "db-rollback"
	KindDBTxBegin      Kind = "db-tx-begin"
	KindDBTxCommit     Kind = "db-tx-commit"
	KindDBQuery        Kind = "db-query"
	KindDBScan         Kind = "db-scan"
	// KindDuplicateRecord is used when a record with the same key already exists
	// in the store.
	KindDuplicateRecord Kind = "duplicate-record"
	// KindElementNotFound is used when a match slot is looked up which is not
	// configured. This should never happen in normal operation.
	KindElementNotFound Kind = "element-not-found"
	// KindInvalidConfig is used for configs that fail validation.
	KindInvalidConfig Kind = "invalid-config"
	// KindLobbyFull is used when a player joins a lobby that reached capacity
	// and waits for a free match slot.
	KindLobbyFull Kind = "lobby-full"
	// KindMatchNotFree is used when a roster is handed to a match slot that is
	// occupied.
	KindMatchNotFree Kind = "match-not-free"
	// KindMatchPhaseViolation is used for operations that were performed although
	// not in the expected match phase.
	KindMatchPhaseViolation Kind = "match-phase-violation"
	// KindNoSubstitute is used when a substitute is requested but the lobby is
	// empty.
	KindNoSubstitute Kind = "no-substitute"
	// KindPlayerAlreadyLobbied is used when a player joins the lobby twice.
	KindPlayerAlreadyLobbied Kind = "player-already-lobbied"
	// KindPlayerNotLobbied is used when a player leaves the lobby without being
	// in it.
	KindPlayerNotLobbied Kind = "player-not-lobbied"
	// KindPlayerUnavailable is used when a player is not in a status that allows
	// the requested operation.
	KindPlayerUnavailable Kind = "player-unavailable"
	KindResourceNotFound  Kind = "resource-not-found"
	// KindTurnViolation is used when a captain acts although not holding the
	// turn.
	KindTurnViolation Kind = "turn-violation"
	KindUnexpected    Kind = "unexpected"
	// KindUnknownFaction is used for faction names or values not part of the
	// configured faction set.
	KindUnknownFaction Kind = "unknown-faction"
	// KindUnknownMap is used for maps not in the map pool.
	KindUnknownMap Kind = "unknown-map"
	// KindUnknownNotificationKey is used for notification keys outside the
	// known set.
	KindUnknownNotificationKey Kind = "unknown-notification-key"
	// KindUnknownPlayer is used when a player id is not registered.
	KindUnknownPlayer Kind = "unknown-player"
)
