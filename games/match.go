package games

import (
	"context"
	"fmt"
	"github.com/gobuffalo/nulls"
	"github.com/google/uuid"
	"github.com/lefinal/pug-server/cues"
	"github.com/lefinal/pug-server/errors"
	"github.com/lefinal/pug-server/maps"
	"github.com/lefinal/pug-server/notify"
	"github.com/lefinal/pug-server/scheduling"
	"github.com/lefinal/pug-server/store"
	"go.uber.org/zap"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// MatchStatus is the phase of a Match.
type MatchStatus string

const (
	StatusFree     MatchStatus = "free"
	StatusRunning  MatchStatus = "running"
	StatusPicking  MatchStatus = "picking"
	StatusFaction  MatchStatus = "faction"
	StatusMapping  MatchStatus = "mapping"
	StatusWaiting  MatchStatus = "waiting"
	StatusStarting MatchStatus = "starting"
	StatusPlaying  MatchStatus = "playing"
	StatusResult   MatchStatus = "result"
)

// roundCount is the number of rounds per match. Sides are swapped in between.
const roundCount = 2

// Match is a match slot. It cycles between StatusFree and the phases of a
// session. All exported methods are safe for concurrent use.
type Match struct {
	logger   *zap.Logger
	lifetime context.Context
	slot     SlotConfig
	config   MatchConfig
	deps     Deps
	// onFree is called without holding the lock after the match became free.
	onFree func(match *Match)
	// m locks all fields below.
	m      sync.Mutex
	status MatchStatus
	number int
	// freed is set when the match became free during the current mutation.
	freed bool
	// Session state. Only set while not free.
	sessionID     uuid.UUID
	cancelSession context.CancelFunc
	tasks         *scheduling.Group
	roundTimer    *scheduling.Task
	unassigned    map[string]*Player
	teams         [2]*Team
	selector      *maps.Selector
	allocator     AccountAllocator
	roundStamps   []time.Time
	sidesSwapped  bool
	// resultMessage is the handle of the readiness message. It is edited while
	// teams confirm and once the result is known.
	resultMessage uuid.UUID
}

func newMatch(lifetime context.Context, logger *zap.Logger, slot SlotConfig, config MatchConfig, deps Deps) *Match {
	return &Match{
		logger:   logger,
		lifetime: lifetime,
		slot:     slot,
		config:   config,
		deps:     deps,
		status:   StatusFree,
	}
}

// ID returns the slot id.
func (m *Match) ID() string {
	return m.slot.ID
}

// Slot returns the SlotConfig of the match.
func (m *Match) Slot() SlotConfig {
	return m.slot
}

// Status returns the current MatchStatus.
func (m *Match) Status() MatchStatus {
	m.m.Lock()
	defer m.m.Unlock()
	return m.status
}

// RoundNumber returns the current round number. While playing, this is the
// number of started rounds. While getting ready, it is the upcoming round.
// Otherwise, it is zero.
func (m *Match) RoundNumber() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.roundNumber()
}

func (m *Match) roundNumber() int {
	switch m.status {
	case StatusPlaying:
		return len(m.roundStamps)
	case StatusStarting, StatusWaiting:
		return len(m.roundStamps) + 1
	}
	return 0
}

func (m *Match) setOnFree(fn func(match *Match)) {
	m.m.Lock()
	defer m.m.Unlock()
	m.onFree = fn
}

// mutate runs the given function while holding the lock. If the match became
// free, onFree is called after releasing the lock.
func (m *Match) mutate(fn func() error) error {
	m.m.Lock()
	err := fn()
	freed := m.freed
	m.freed = false
	onFree := m.onFree
	m.m.Unlock()
	if freed && onFree != nil {
		onFree(m)
	}
	return err
}

func (m *Match) notify(key notify.Key, args ...interface{}) uuid.UUID {
	return m.deps.Notifier.Send(key, m.slot.ID, args...)
}

// cueBoth enqueues the given clip for both teams.
func (m *Match) cueBoth(clip cues.Clip) {
	m.deps.Cues.Enqueue(cues.BotLobby, clip)
	m.deps.Cues.Enqueue(cues.BotTeam2, clip)
}

// playBoth plays the given clip for both teams.
func (m *Match) playBoth(clip cues.Clip) {
	m.deps.Cues.Play(cues.BotLobby, clip)
	m.deps.Cues.Play(cues.BotTeam2, clip)
}

// requirePhase returns an errors.KindMatchPhaseViolation error if the match
// is not in one of the given phases.
func (m *Match) requirePhase(operation string, phases ...MatchStatus) error {
	for _, phase := range phases {
		if m.status == phase {
			return nil
		}
	}
	return errors.NewMatchPhaseViolationError(operation, m.status)
}

// team returns the Team with the given id.
func (m *Match) team(teamID int) (*Team, error) {
	if teamID < 0 || teamID >= len(m.teams) || m.teams[teamID] == nil {
		return nil, errors.NewBadRequestError(errors.KindResourceNotFound, "unknown team",
			errors.Details{"team": teamID})
	}
	return m.teams[teamID], nil
}

// captainWithTurn returns the Team with the given id if its captain holds the
// turn.
func (m *Match) captainWithTurn(teamID int) (*Team, error) {
	team, err := m.team(teamID)
	if err != nil {
		return nil, err
	}
	if !team.captain.turn {
		return nil, errors.NewTurnViolationError("not the captain's turn", errors.Details{
			"team":    teamID,
			"captain": team.captain.ID,
		})
	}
	return team, nil
}

func (m *Match) other(team *Team) *Team {
	return m.teams[1-team.id]
}

// unassignedPlayers returns the unassigned players sorted by name.
func (m *Match) unassignedPlayers() []*Player {
	players := make([]*Player, 0, len(m.unassigned))
	for _, p := range m.unassigned {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Name < players[j].Name
	})
	return players
}

// drawUnassigned removes a random player from the unassigned ones.
func (m *Match) drawUnassigned() *Player {
	players := m.unassignedPlayers()
	p := players[rand.IntN(len(players))]
	delete(m.unassigned, p.ID)
	return p
}

// participants returns all players of the session.
func (m *Match) participants() []*Player {
	players := m.unassignedPlayers()
	for _, team := range m.teams {
		if team != nil {
			players = append(players, team.basePlayers()...)
		}
	}
	return players
}

func (m *Match) captainNames() []string {
	return []string{m.teams[0].captain.Name, m.teams[1].captain.Name}
}

func (m *Match) teamNames() [][]string {
	return [][]string{names(m.teams[0].basePlayers()), names(m.teams[1].basePlayers())}
}

// Start a session with the given roster. The match must be free. Two random
// captains are chosen and drafting begins with the first team.
func (m *Match) Start(number int, roster []*Player) error {
	return m.mutate(func() error {
		if m.status != StatusFree {
			return errors.Error{
				Code:    errors.ErrConflict,
				Kind:    errors.KindMatchNotFree,
				Message: "match not free",
				Details: errors.Details{"slot": m.slot.ID, "status": m.status},
			}
		}
		if len(roster) < 2 {
			return errors.NewInternalError("roster too small", errors.Details{"players": len(roster)})
		}
		m.status = StatusRunning
		m.number = number
		m.sessionID = uuid.New()
		var sessionCtx context.Context
		sessionCtx, m.cancelSession = context.WithCancel(m.lifetime)
		m.tasks = scheduling.NewGroup(sessionCtx)
		m.unassigned = make(map[string]*Player, len(roster))
		for _, p := range roster {
			p.SetStatus(PlayerMatched)
			m.unassigned[p.ID] = p
		}
		m.logger.Info("match started",
			zap.String("slot", m.slot.ID),
			zap.Int("number", number),
			zap.String("session", m.sessionID.String()))
		m.launch()
		return nil
	})
}

// launch creates teams and captains and starts drafting.
func (m *Match) launch() {
	m.notify(notify.KeyMatchInit, m.number, names(m.unassignedPlayers()))
	m.allocator = m.deps.NewAllocator(m.sessionID)
	m.selector = maps.NewSelector(m.config.Maps)
	for i := range m.teams {
		m.teams[i] = newTeam(i, fmt.Sprintf("Team %d", i+1), m.drawUnassigned())
	}
	m.teams[0].captain.turn = true
	m.status = StatusPicking
	if len(m.unassigned) == 0 {
		m.finishDraft()
		return
	}
	m.notify(notify.KeyShowPicks, m.teams[0].captain.Name, names(m.unassignedPlayers()))
	m.tasks.After(m.config.PickCueDelay, func(_ context.Context) {
		m.deps.Cues.Enqueue(cues.BotLobby, cues.ClipSelectTeams)
	})
}

// Pick the player with the given id for the team. Only the captain holding
// the turn may pick. If only one unassigned player is left afterwards, it is
// assigned to the other team automatically and drafting finishes.
func (m *Match) Pick(teamID int, playerID string) error {
	return m.mutate(func() error {
		if err := m.requirePhase("pick", StatusPicking); err != nil {
			return err
		}
		team, err := m.captainWithTurn(teamID)
		if err != nil {
			return err
		}
		p, ok := m.unassigned[playerID]
		if !ok {
			return errors.NewBadRequestError(errors.KindUnknownPlayer, "player not pickable",
				errors.Details{"player": playerID})
		}
		m.pick(team, p)
		return nil
	})
}

func (m *Match) pick(team *Team, p *Player) {
	team.addPlayer(p)
	delete(m.unassigned, p.ID)
	m.notify(notify.KeyPicked, team.name, p.Name)
	other := m.other(team)
	team.captain.turn = false
	other.captain.turn = true
	if len(m.unassigned) == 1 {
		last := m.unassignedPlayers()[0]
		other.addPlayer(last)
		delete(m.unassigned, last.ID)
		m.notify(notify.KeyPickedLast, last.Name, other.name)
	}
	if len(m.unassigned) == 0 {
		m.finishDraft()
		return
	}
	m.notify(notify.KeyShowPicks, other.captain.Name, names(m.unassignedPlayers()))
}

// finishDraft advances to faction selection. The second team picks first.
func (m *Match) finishDraft() {
	m.status = StatusFaction
	m.teams[0].captain.turn = false
	m.teams[1].captain.turn = true
	m.notify(notify.KeyPickFaction, m.teams[1].captain.Name)
	m.deps.Cues.Enqueue(cues.BotLobby, cues.ClipSelectFaction)
}

// ResignCaptain lets the captain of the given team resign. This is only
// allowed while drafting and before the team picked anyone. A random
// unassigned player becomes captain and keeps the turn. The resigning captain
// returns to the unassigned players.
func (m *Match) ResignCaptain(teamID int) error {
	return m.mutate(func() error {
		if err := m.requirePhase("resign", StatusPicking); err != nil {
			return err
		}
		team, err := m.team(teamID)
		if err != nil {
			return err
		}
		if team.drafted() > 0 {
			return errors.NewBadRequestError(errors.KindCaptainResignDenied, "team already picked players",
				errors.Details{"team": teamID})
		}
		if len(m.unassigned) == 0 {
			return errors.NewBadRequestError(errors.KindCaptainResignDenied, "no replacement available",
				errors.Details{"team": teamID})
		}
		old := team.captain
		replacement := newTeam(team.id, team.name, m.drawUnassigned())
		replacement.captain.turn = old.turn
		m.teams[team.id] = replacement
		old.SetStatus(PlayerMatched)
		m.unassigned[old.ID] = old.Player
		m.notify(notify.KeyCaptainResigned, old.Name, replacement.captain.Name, team.name)
		return nil
	})
}

// FactionPick picks the faction with the given name for the team. Only the
// captain holding the turn may pick. Picking the faction of the other team is
// a no-op. When both teams picked, map selection starts.
func (m *Match) FactionPick(teamID int, factionName string) error {
	return m.mutate(func() error {
		if err := m.requirePhase("faction pick", StatusFaction); err != nil {
			return err
		}
		team, err := m.captainWithTurn(teamID)
		if err != nil {
			return err
		}
		faction, err := m.config.Factions.Parse(factionName)
		if err != nil {
			return err
		}
		other := m.other(team)
		if other.faction == faction {
			m.notify(notify.KeyFactionTaken, team.captain.Name, m.config.Factions.Name(faction))
			return nil
		}
		team.faction = faction
		team.captain.turn = false
		m.notify(notify.KeyFactionPicked, team.name, m.config.Factions.Name(faction))
		if other.faction != FactionUnset {
			m.startMapping()
			return nil
		}
		other.captain.turn = true
		return nil
	})
}

// startMapping gives the turn to both captains. If the map is already
// confirmed, the ready sequence starts right away.
func (m *Match) startMapping() {
	m.status = StatusMapping
	for _, team := range m.teams {
		team.captain.turn = true
	}
	if selected, ok := m.selector.Map(); ok {
		m.notify(notify.KeyMapAuto, selected.Name)
		m.deps.Cues.Enqueue(cues.BotLobby, cues.ClipMapSelected)
		m.startReady()
		return
	}
	m.tasks.After(m.config.MapCueDelay, func(_ context.Context) {
		m.deps.Cues.Enqueue(cues.BotLobby, cues.ClipSelectMap)
	})
	poolNames := make([]string, 0, len(m.selector.Pool()))
	for _, mp := range m.selector.Pool() {
		poolNames = append(poolNames, mp.Name)
	}
	m.notify(notify.KeyWaitMap, m.captainNames(), poolNames)
}

// SelectMap selects the map with the given name for confirmation by the other
// captain. Only a captain holding the turn may select.
func (m *Match) SelectMap(teamID int, mapName string) error {
	return m.mutate(func() error {
		if err := m.requirePhase("select map", StatusMapping); err != nil {
			return err
		}
		team, err := m.captainWithTurn(teamID)
		if err != nil {
			return err
		}
		selected, err := m.selector.Select(mapName)
		if err != nil {
			return err
		}
		other := m.other(team)
		team.captain.turn = false
		other.captain.turn = true
		m.notify(notify.KeyMapSelected, team.captain.Name, selected.Name, other.captain.Name)
		return nil
	})
}

// ConfirmMap confirms the selected map and starts the ready sequence. Only a
// captain holding the turn may confirm. Without selection, this is a no-op.
func (m *Match) ConfirmMap(teamID int) error {
	return m.mutate(func() error {
		if err := m.requirePhase("confirm map", StatusMapping); err != nil {
			return err
		}
		if _, err := m.captainWithTurn(teamID); err != nil {
			return err
		}
		if !m.selector.Confirm() {
			return nil
		}
		selected, _ := m.selector.Map()
		m.notify(notify.KeyMapConfirmed, selected.Name)
		m.deps.Cues.Enqueue(cues.BotLobby, cues.ClipMapSelected)
		m.startReady()
		return nil
	})
}

// startReady marks all players as active and hands out accounts. If not
// enough accounts are available, the match is torn down.
func (m *Match) startReady() {
	m.status = StatusWaiting
	needAccount := make([]*ActivePlayer, 0)
	for _, team := range m.teams {
		team.matchReady()
		team.captain.turn = true
		for _, p := range team.players {
			if !p.HasOwnAccount {
				needAccount = append(needAccount, p)
			}
		}
	}
	ctx, cancel := context.WithTimeout(m.lifetime, m.config.AccountTimeout)
	reserved, err := m.allocator.Reserve(ctx, len(needAccount))
	cancel()
	if err == nil && len(reserved) < len(needAccount) {
		err = errors.NewInternalError("allocator reserved too few accounts", errors.Details{
			"requested": len(needAccount),
			"reserved":  len(reserved),
		})
	}
	if err != nil {
		m.notifyAccountFailure(err, len(needAccount))
		m.clear()
		return
	}
	for i, p := range needAccount {
		p.account = nulls.NewString(reserved[i])
		p.accountValidated = false
	}
	m.promptReady()
}

// notifyAccountFailure reports a failed account reservation. Exhaustion is
// expected and only notified. Everything else is logged as well.
func (m *Match) notifyAccountFailure(err error, requested int) {
	if errors.Is(err, errors.KindAccountsNotEnough) {
		m.notify(notify.KeyAccountsNotEnough, requested)
		return
	}
	errors.Log(m.logger, errors.Wrap(err, "reserve accounts", errors.Details{"slot": m.slot.ID}))
	m.notify(notify.KeyAccountsError)
}

// promptReady asks both captains to confirm readiness.
func (m *Match) promptReady() {
	m.resultMessage = m.notify(notify.KeyMatchConfirm, m.pendingCaptainNames(), m.roundNumber())
	m.tasks.After(m.config.ReadyCueDelay, func(_ context.Context) {
		m.cueBoth(cues.ClipTypeReady)
	})
}

// pendingCaptainNames returns the names of all captains that did not confirm
// readiness yet.
func (m *Match) pendingCaptainNames() []string {
	pending := make([]string, 0, len(m.teams))
	for _, team := range m.teams {
		if team.captain.turn {
			pending = append(pending, team.captain.Name)
		}
	}
	return pending
}

// editResultMessage replaces the content of the readiness message.
func (m *Match) editResultMessage(key notify.Key, args ...interface{}) {
	if m.resultMessage == uuid.Nil {
		return
	}
	m.deps.Notifier.Edit(m.resultMessage, key, m.slot.ID, args...)
}

// ValidateAccount marks the allocated account of the given player as
// validated.
func (m *Match) ValidateAccount(playerID string) error {
	return m.mutate(func() error {
		if err := m.requirePhase("validate account", StatusWaiting, StatusStarting, StatusPlaying); err != nil {
			return err
		}
		for _, team := range m.teams {
			p, ok := team.find(playerID)
			if !ok {
				continue
			}
			if !p.account.Valid {
				return errors.NewBadRequestError(errors.KindPlayerUnavailable, "player has no allocated account",
					errors.Details{"player": playerID})
			}
			p.accountValidated = true
			m.notify(notify.KeyAccountValidated, p.Name)
			return nil
		}
		return errors.NewBadRequestError(errors.KindUnknownPlayer, "player not in match",
			errors.Details{"player": playerID})
	})
}

// OnTeamReady confirms readiness for the given team. If players did not
// validate their accounts yet, nothing changes and they are returned. When
// both teams are ready, the countdown starts.
func (m *Match) OnTeamReady(teamID int) ([]*Player, error) {
	var notReady []*Player
	err := m.mutate(func() error {
		if err := m.requirePhase("ready", StatusWaiting); err != nil {
			return err
		}
		team, err := m.team(teamID)
		if err != nil {
			return err
		}
		if !team.captain.turn {
			m.notify(notify.KeyTeamAlreadyReady, team.name)
			return nil
		}
		notReady = team.notReady()
		if len(notReady) > 0 {
			m.notify(notify.KeyAccountsNotValidated, team.name, names(notReady))
			return nil
		}
		team.captain.turn = false
		m.notify(notify.KeyTeamReady, team.name)
		m.editResultMessage(notify.KeyMatchConfirm, m.pendingCaptainNames(), m.roundNumber())
		if !m.other(team).captain.turn {
			m.status = StatusStarting
			m.startCountdown()
		}
		return nil
	})
	return notReady, err
}

// OnTeamNotReady withdraws the readiness of the given team.
func (m *Match) OnTeamNotReady(teamID int) error {
	return m.mutate(func() error {
		if err := m.requirePhase("not ready", StatusWaiting); err != nil {
			return err
		}
		team, err := m.team(teamID)
		if err != nil {
			return err
		}
		if team.captain.turn {
			m.notify(notify.KeyTeamNotConfirmed, team.name)
			return nil
		}
		team.captain.turn = true
		m.notify(notify.KeyTeamNotReady, team.name)
		m.editResultMessage(notify.KeyMatchConfirm, m.pendingCaptainNames(), m.roundNumber())
		return nil
	})
}

// startCountdown runs the configured countdown and starts the round.
func (m *Match) startCountdown() {
	round := m.roundNumber()
	m.tasks.After(0, func(ctx context.Context) {
		for _, step := range m.config.Countdown {
			if !scheduling.Sleep(ctx, step.Delay) {
				return
			}
			_ = m.mutate(func() error {
				if ctx.Err() != nil || m.status != StatusStarting {
					return nil
				}
				if step.Remaining > 0 {
					m.notify(notify.KeyMatchStarting, round, step.Remaining)
				}
				if step.Clip != "" {
					m.playBoth(step.Clip)
				}
				return nil
			})
		}
		_ = m.mutate(func() error {
			if ctx.Err() != nil || m.status != StatusStarting {
				return nil
			}
			m.roundStamps = append(m.roundStamps, time.Now())
			m.status = StatusPlaying
			m.notify(notify.KeyMatchStarted, m.teamNames(), m.roundNumber())
			m.roundTimer = m.tasks.After(m.config.RoundLength, m.onRoundOver)
			return nil
		})
	})
}

// onRoundOver is called when the round timer fires. After the first round,
// sides are swapped and the teams need to confirm readiness again. After the
// second one, the match is recorded and torn down.
func (m *Match) onRoundOver(ctx context.Context) {
	var record *store.MatchRecord
	_ = m.mutate(func() error {
		if ctx.Err() != nil || m.status != StatusPlaying {
			return nil
		}
		m.roundTimer = nil
		m.notify(notify.KeyRoundOver, m.teamNames(), m.roundNumber())
		for _, team := range m.teams {
			team.captain.turn = true
		}
		if len(m.roundStamps) < roundCount {
			m.notify(notify.KeySwap)
			m.sidesSwapped = !m.sidesSwapped
			m.status = StatusWaiting
			m.tasks.After(m.config.SwapCueDelay, func(_ context.Context) {
				m.cueBoth(cues.ClipSwapSides)
			})
			m.promptReady()
			return nil
		}
		m.notify(notify.KeyMatchOver)
		m.editResultMessage(notify.KeyMatchOver, m.teamNames(), len(m.roundStamps))
		m.status = StatusResult
		r := m.record()
		record = &r
		return nil
	})
	if record == nil {
		return
	}
	m.persist(ctx, *record)
	_ = m.mutate(func() error {
		if ctx.Err() != nil || m.status != StatusResult {
			return nil
		}
		m.clear()
		return nil
	})
}

// record creates the store.MatchRecord for the current session.
func (m *Match) record() store.MatchRecord {
	record := store.MatchRecord{
		Number:      m.number,
		SlotID:      m.slot.ID,
		SessionID:   m.sessionID,
		RoundStarts: append([]time.Time(nil), m.roundStamps...),
		EndedAt:     time.Now(),
		Players:     make([]store.MatchPlayer, 0),
	}
	if selected, ok := m.selector.Map(); ok {
		record.Map = nulls.NewString(selected.Name)
	}
	for i, team := range m.teams {
		record.Factions[i] = int(team.faction)
		for _, p := range team.players {
			record.Players = append(record.Players, store.MatchPlayer{
				PlayerID: p.ID,
				Team:     team.id,
				Captain:  p == team.captain.ActivePlayer,
				Account:  p.account,
			})
		}
	}
	return record
}

// persist the given record and update player statistics. Failures are only
// logged.
func (m *Match) persist(ctx context.Context, record store.MatchRecord) {
	err := m.deps.Recorder.InsertMatch(ctx, record)
	if err != nil {
		errors.Log(m.logger, errors.Wrap(err, "insert match", errors.Details{"number": record.Number}))
		return
	}
	playerIDs := make([]string, 0, len(record.Players))
	for _, p := range record.Players {
		playerIDs = append(playerIDs, p.PlayerID)
	}
	err = m.deps.Recorder.UpdatePlayerStats(ctx, record.Number, playerIDs)
	if err != nil {
		errors.Log(m.logger, errors.Wrap(err, "update player stats", errors.Details{"number": record.Number}))
	}
}

// Substitute replaces the player with the given id with one returned by draw.
// Unassigned players are replaced in the unassigned pool. Team members are
// replaced in place and the substitute takes over captaincy and account. If no
// account can be reserved for the substitute, the match is torn down.
func (m *Match) Substitute(playerID string, draw func() (*Player, error)) (*Player, error) {
	var sub *Player
	err := m.mutate(func() error {
		err := m.requirePhase("substitute", StatusPicking, StatusFaction, StatusMapping, StatusWaiting,
			StatusStarting, StatusPlaying)
		if err != nil {
			return err
		}
		var replaced *Player
		var team *Team
		if p, ok := m.unassigned[playerID]; ok {
			replaced = p
		} else {
			for _, t := range m.teams {
				if p, ok := t.find(playerID); ok {
					replaced = p.Player
					team = t
					break
				}
			}
		}
		if replaced == nil {
			return errors.NewBadRequestError(errors.KindUnknownPlayer, "player not in match",
				errors.Details{"player": playerID})
		}
		sub, err = draw()
		if err != nil {
			return errors.Wrap(err, "draw substitute", nil)
		}
		var replacement *ActivePlayer
		if team == nil {
			delete(m.unassigned, replaced.ID)
			sub.SetStatus(PlayerMatched)
			m.unassigned[sub.ID] = sub
		} else {
			replacement, _ = team.substitute(playerID, sub)
		}
		replaced.SetStatus(PlayerRegistered)
		m.notify(notify.KeySubstituted, replaced.Name, sub.Name)
		if replacement == nil {
			return nil
		}
		err = m.grantAccount(replacement)
		if err != nil {
			m.notifyAccountFailure(err, 1)
			m.clear()
			return errors.Wrap(err, "grant account to substitute", errors.Details{"player": sub.ID})
		}
		return nil
	})
	return sub, err
}

// grantAccount reserves an account for a substitute that took over a player
// without allocated account after accounts were handed out.
func (m *Match) grantAccount(p *ActivePlayer) error {
	if p.HasOwnAccount || p.account.Valid {
		return nil
	}
	if m.status != StatusWaiting && m.status != StatusStarting && m.status != StatusPlaying {
		return nil
	}
	ctx, cancel := context.WithTimeout(m.lifetime, m.config.AccountTimeout)
	defer cancel()
	reserved, err := m.allocator.Reserve(ctx, 1)
	if err != nil {
		return errors.Wrap(err, "reserve account", nil)
	}
	if len(reserved) < 1 {
		return errors.NewInternalError("allocator reserved no account", nil)
	}
	p.account = nulls.NewString(reserved[0])
	p.accountValidated = false
	return nil
}

// Abort the current session and tear the match down.
func (m *Match) Abort() error {
	return m.mutate(func() error {
		if m.status == StatusFree {
			return errors.NewMatchPhaseViolationError("abort", m.status)
		}
		m.notify(notify.KeyMatchAborted)
		m.clear()
		return nil
	})
}

// clear tears down the session. Running tasks are cancelled, accounts are
// released and all players return to PlayerRegistered.
func (m *Match) clear() {
	if m.status == StatusPlaying {
		if m.roundTimer != nil {
			m.roundTimer.Cancel()
		}
		m.notify(notify.KeyRoundOver, m.teamNames(), m.roundNumber())
		m.playBoth(cues.ClipRoundOver)
		m.notify(notify.KeyMatchOver)
	}
	m.tasks.CancelAll()
	m.cancelSession()
	if m.allocator != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(m.lifetime), m.config.AccountTimeout)
		if len(m.roundStamps) > 0 {
			if err := m.allocator.Sync(ctx); err != nil {
				errors.Log(m.logger, errors.Wrap(err, "sync accounts", errors.Details{"slot": m.slot.ID}))
			}
		}
		if err := m.allocator.Release(ctx); err != nil {
			errors.Log(m.logger, errors.Wrap(err, "release accounts", errors.Details{"slot": m.slot.ID}))
		}
		cancel()
	}
	for _, p := range m.participants() {
		p.SetStatus(PlayerRegistered)
	}
	m.unassigned = nil
	m.teams = [2]*Team{}
	m.selector = nil
	m.allocator = nil
	m.roundStamps = nil
	m.roundTimer = nil
	m.sidesSwapped = false
	m.resultMessage = uuid.Nil
	m.notify(notify.KeyMatchCleared)
	m.logger.Info("match cleared", zap.String("slot", m.slot.ID), zap.Int("number", m.number))
	m.status = StatusFree
	m.freed = true
}

// TeamSnapshot is the state of a Team at a point in time.
type TeamSnapshot struct {
	ID   int
	Name string
	// Captain is the player id of the captain.
	Captain string
	Turn    bool
	// Faction is the faction name or empty if unset.
	Faction string
	// Players holds the ids of all players including the captain.
	Players []string
}

// MatchSnapshot is the state of a Match at a point in time.
type MatchSnapshot struct {
	SlotID       string
	Status       MatchStatus
	Number       int
	Round        int
	Map          string
	SidesSwapped bool
	// Unassigned holds the ids of all players not drafted yet.
	Unassigned []string
	Teams      []TeamSnapshot
}

// Snapshot returns the current state.
func (m *Match) Snapshot() MatchSnapshot {
	m.m.Lock()
	defer m.m.Unlock()
	snapshot := MatchSnapshot{
		SlotID:       m.slot.ID,
		Status:       m.status,
		Round:        m.roundNumber(),
		SidesSwapped: m.sidesSwapped,
		Unassigned:   make([]string, 0),
		Teams:        make([]TeamSnapshot, 0, len(m.teams)),
	}
	if m.status == StatusFree {
		return snapshot
	}
	snapshot.Number = m.number
	if m.selector != nil {
		if selected, ok := m.selector.Selected(); ok {
			snapshot.Map = selected.Name
		}
	}
	for _, p := range m.unassignedPlayers() {
		snapshot.Unassigned = append(snapshot.Unassigned, p.ID)
	}
	for _, team := range m.teams {
		if team == nil {
			continue
		}
		ts := TeamSnapshot{
			ID:      team.id,
			Name:    team.name,
			Captain: team.captain.ID,
			Turn:    team.captain.turn,
			Faction: m.config.Factions.Name(team.faction),
			Players: make([]string, 0, len(team.players)),
		}
		for _, p := range team.players {
			ts.Players = append(ts.Players, p.ID)
		}
		snapshot.Teams = append(snapshot.Teams, ts)
	}
	return snapshot
}
