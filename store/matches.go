package store

import (
	"context"
	nativeerrors "errors"
	"github.com/doug-martin/goqu/v9"
	"github.com/gobuffalo/nulls"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/lefinal/pug-server/errors"
	"time"
)

// pgUniqueViolation is the PostgreSQL error code for unique violations.
const pgUniqueViolation = "23505"

// MatchPlayer is a player that took part in a match.
type MatchPlayer struct {
	PlayerID string
	// Team is the team index (0 or 1).
	Team    int
	Captain bool
	// Account is the allocated account if the player had no own one.
	Account nulls.String
}

// MatchRecord is a completed match.
type MatchRecord struct {
	// Number is the unique match number.
	Number int
	// SlotID is the id of the slot the match was played in.
	SlotID    string
	SessionID uuid.UUID
	// Map is the confirmed map, if any.
	Map      nulls.String
	Factions [2]int
	// RoundStarts holds the start timestamps of all played rounds.
	RoundStarts []time.Time
	EndedAt     time.Time
	Players     []MatchPlayer
}

// InsertMatch inserts the given MatchRecord. If a record with the same number
// already exists, an errors.KindDuplicateRecord error is returned.
func (m *Mall) InsertMatch(ctx context.Context, record MatchRecord) error {
	matchQuery, playersQuery, err := insertMatchQueries(m.dialect, record)
	if err != nil {
		return errors.Wrap(err, "build insert match queries", nil)
	}
	// Begin tx.
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return errors.NewDBTxBeginError(err)
	}
	defer m.rollbackTx(ctx, tx, "insert match")
	// Insert match.
	_, err = tx.Exec(ctx, matchQuery)
	if err != nil {
		var pgErr *pgconn.PgError
		if nativeerrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.Error{
				Code:    errors.ErrConflict,
				Kind:    errors.KindDuplicateRecord,
				Err:     err,
				Message: "match already recorded",
				Details: errors.Details{"number": record.Number},
			}
		}
		return errors.NewExecQueryError(err, "exec insert match query", matchQuery)
	}
	// Insert players.
	if playersQuery != "" {
		_, err = tx.Exec(ctx, playersQuery)
		if err != nil {
			return errors.NewExecQueryError(err, "exec insert match players query", playersQuery)
		}
	}
	err = tx.Commit(ctx)
	if err != nil {
		return errors.NewDBTxCommitError(err)
	}
	return nil
}

// insertMatchQueries builds the queries for inserting the match and its
// players. The players query is empty if the record holds no players.
func insertMatchQueries(dialect goqu.DialectWrapper, record MatchRecord) (string, string, error) {
	startedAt := nulls.Time{}
	if len(record.RoundStarts) > 0 {
		startedAt = nulls.NewTime(record.RoundStarts[0])
	}
	matchQuery, _, err := dialect.Insert(goqu.T("matches")).Rows(goqu.Record{
		"number":        record.Number,
		"slot_id":       record.SlotID,
		"session_id":    record.SessionID.String(),
		"map":           record.Map,
		"team1_faction": record.Factions[0],
		"team2_faction": record.Factions[1],
		"started_at":    startedAt,
		"ended_at":      record.EndedAt,
		"rounds":        len(record.RoundStarts),
	}).ToSQL()
	if err != nil {
		return "", "", errors.NewQueryToSQLError(err, errors.Details{"number": record.Number})
	}
	if len(record.Players) == 0 {
		return matchQuery, "", nil
	}
	rows := make([]interface{}, 0, len(record.Players))
	for _, p := range record.Players {
		rows = append(rows, goqu.Record{
			"match_number": record.Number,
			"player_id":    p.PlayerID,
			"team":         p.Team,
			"captain":      p.Captain,
			"account":      p.Account,
		})
	}
	playersQuery, _, err := dialect.Insert(goqu.T("match_players")).Rows(rows...).ToSQL()
	if err != nil {
		return "", "", errors.NewQueryToSQLError(err, errors.Details{"number": record.Number})
	}
	return matchQuery, playersQuery, nil
}

// LatestMatchNumber returns the highest recorded match number or 0 if no
// match was recorded yet.
func (m *Mall) LatestMatchNumber(ctx context.Context) (int, error) {
	q, err := latestMatchNumberQuery(m.dialect)
	if err != nil {
		return 0, errors.Wrap(err, "build latest match number query", nil)
	}
	var latest int
	err = m.db.QueryRow(ctx, q).Scan(&latest)
	if err != nil {
		return 0, errors.NewScanDBRowError(err, "scan latest match number", q)
	}
	return latest, nil
}

func latestMatchNumberQuery(dialect goqu.DialectWrapper) (string, error) {
	q, _, err := dialect.From(goqu.T("matches")).
		Select(goqu.COALESCE(goqu.MAX(goqu.C("number")), 0)).ToSQL()
	if err != nil {
		return "", errors.NewQueryToSQLError(err, nil)
	}
	return q, nil
}

// UpdatePlayerStats increments the played matches for all given players and
// remembers the match number as their last one.
func (m *Mall) UpdatePlayerStats(ctx context.Context, matchNumber int, playerIDs []string) error {
	if len(playerIDs) == 0 {
		return nil
	}
	q, err := updatePlayerStatsQuery(m.dialect, matchNumber, playerIDs)
	if err != nil {
		return errors.Wrap(err, "build update player stats query", nil)
	}
	_, err = m.db.Exec(ctx, q)
	if err != nil {
		return errors.NewExecQueryError(err, "exec update player stats query", q)
	}
	return nil
}

func updatePlayerStatsQuery(dialect goqu.DialectWrapper, matchNumber int, playerIDs []string) (string, error) {
	rows := make([]interface{}, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		rows = append(rows, goqu.Record{
			"player_id":      playerID,
			"matches_played": 1,
			"last_match":     matchNumber,
		})
	}
	q, _, err := dialect.Insert(goqu.T("player_stats")).Rows(rows...).
		OnConflict(goqu.DoUpdate("player_id", goqu.Record{
			"matches_played": goqu.L(`"player_stats"."matches_played" + 1`),
			"last_match":     goqu.L(`"excluded"."last_match"`),
		})).ToSQL()
	if err != nil {
		return "", errors.NewQueryToSQLError(err, errors.Details{"match_number": matchNumber})
	}
	return q, nil
}
