// internal/session/session.go
package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/palace-game/palace/internal/protocol"
	"github.com/palace-game/palace/internal/timer"
)

// MessageBus is the outbound fan-out the session publishes through. Both
// calls are fire-and-forget; delivery failures never reach game logic.
type MessageBus interface {
	SendDirect(channel uuid.UUID, msg protocol.Message)
	SendGroup(group string, msg protocol.Message)
}

// Persistence records durable side effects of session activity. All calls
// are best-effort: the session logs failures and moves on.
type Persistence interface {
	AssignLobby(ctx context.Context, username, lobbyID string) error
	ClearLobby(ctx context.Context, username string) error
	DeleteLobby(ctx context.Context, lobbyID string) error
	IncrementWins(ctx context.Context, usernames []string) error
}

// Journal receives best-effort records of notable game outcomes
// (eliminations, results) for out-of-band consumers.
type Journal interface {
	Record(lobbyID, kind string, payload map[string]interface{})
}

// Pacing delays. The cycle warning is best-effort only: when it fires before
// a tally it broadcasts a notice but never forces the tally to resolve.
const (
	beginDelay      = 1 * time.Second
	roleRevealDelay = 5 * time.Second
	cyclePacing     = 5 * time.Second
	cycleWarning    = 50 * time.Second

	persistTimeout = 5 * time.Second
)

// Config carries a Session's collaborators. Shuffle is injectable so tests
// can fix the deck order; nil means a time-seeded shuffle.
type Config struct {
	Bus     MessageBus
	Timers  timer.Service
	Store   Persistence
	Journal Journal
	Logger  *logrus.Logger
	Shuffle func([]Role)
	OnEmpty func(lobbyID string)

	// OnRevive restores a session that dropped out of its registry on empty
	// when a late connect arrives. It reports false when a replacement
	// session already owns the lobby id; the connect is then rejected with
	// ErrSessionReplaced so the caller can join the replacement instead.
	OnRevive func(lobbyID string, s *Session) bool
}

// Session is the per-lobby game coordinator. Every inbound event — connect,
// disconnect, chat, vote, jump, timer fire — funnels through the session
// lock, so at most one event mutates state at a time. Sessions for different
// lobbies share nothing.
type Session struct {
	mu sync.Mutex

	lobbyID string
	group   string

	phase      Phase
	roster     map[string]*Player
	order      []string // join order; fixes deal order and the tally tie-break
	deck       []Role
	totalVotes int
	gameOver   bool

	// generation bumps on every reset; a timer armed for an older generation
	// becomes a no-op if it fires late.
	generation  uint64
	pacingTimer timer.Handle
	warnTimer   timer.Handle

	// detached is set when the session removed itself from its registry on
	// empty. The next connect must re-register through onRevive before the
	// session accepts members again.
	detached bool

	bus      MessageBus
	timers   timer.Service
	store    Persistence
	journal  Journal
	shuffle  func([]Role)
	onEmpty  func(lobbyID string)
	onRevive func(lobbyID string, s *Session) bool
	log      *logrus.Entry
}

// New builds a Session in the Lobby phase with a freshly shuffled deck.
func New(lobbyID string, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	s := &Session{
		lobbyID:  lobbyID,
		group:    GroupAddress(lobbyID),
		phase:    PhaseLobby,
		roster:   make(map[string]*Player),
		bus:      cfg.Bus,
		timers:   cfg.Timers,
		store:    cfg.Store,
		journal:  cfg.Journal,
		shuffle:  cfg.Shuffle,
		onEmpty:  cfg.OnEmpty,
		onRevive: cfg.OnRevive,
		log:      logger.WithField("lobby", lobbyID),
	}
	if s.shuffle == nil {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		s.shuffle = func(deck []Role) {
			r.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
		}
	}
	s.deck = newDeck()
	s.shuffle(s.deck)
	return s
}

// GroupAddress derives the pub/sub group name for a lobby id.
func GroupAddress(lobbyID string) string {
	return "palace_" + lobbyID
}

// Group returns the session's pub/sub group address.
func (s *Session) Group() string { return s.group }

// Summary is a point-in-time view of a session for lobby listings.
type Summary struct {
	LobbyID string `json:"lobbyId"`
	Phase   string `json:"phase"`
	Players int    `json:"players"`
}

// Snapshot returns a Summary under the session lock.
func (s *Session) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{LobbyID: s.lobbyID, Phase: s.phase.String(), Players: len(s.roster)}
}

// Handle applies one event to the session. It is the only entry point for
// external callers; the switch is exhaustive over the sealed Event set.
// Returned errors are recoverable conditions the gateway may surface to the
// offending client — the session itself is always left consistent.
func (s *Session) Handle(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case ConnectEvent:
		return s.connect(e)
	case DisconnectEvent:
		return s.disconnect(e)
	case ChatEvent:
		return s.chat(e)
	case VoteEvent:
		return s.castVote(e)
	case JumpEvent:
		return s.jump(e)
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

func (s *Session) connect(e ConnectEvent) error {
	// A caller may hold a session reference fetched before the roster
	// emptied and the session left its registry. Membership and the connect
	// commit together: either this session re-registers itself here, or the
	// connect is refused because a replacement already owns the lobby id.
	if s.detached {
		if s.onRevive != nil && !s.onRevive(s.lobbyID, s) {
			return ErrSessionReplaced
		}
		s.detached = false
	}

	if s.phase == PhaseLobby {
		if p, ok := s.roster[e.Username]; ok {
			// Same identity joining twice: refresh the channel, nothing else.
			p.Channel = e.Channel
			p.Connected = true
			s.bus.SendDirect(e.Channel, protocol.Self(e.Username))
			return nil
		}
		if len(s.roster) >= Capacity {
			return ErrCapacityExceeded
		}
		s.addPlayer(e.Username, e.Channel, false)
		s.persist("assign lobby", func(ctx context.Context) error {
			return s.store.AssignLobby(ctx, e.Username, s.lobbyID)
		})
		s.bus.SendDirect(e.Channel, protocol.Self(e.Username))
		s.broadcastRoster()
		if len(s.roster) == Capacity {
			s.beginGame()
		}
		return nil
	}

	if p, ok := s.roster[e.Username]; ok {
		if p.Connected {
			p.Channel = e.Channel
			s.bus.SendDirect(e.Channel, protocol.Self(e.Username))
			return nil
		}
		// Reconnect: restore the connection, leave role and votes untouched.
		p.Connected = true
		p.Channel = e.Channel
		s.log.Infof("player %s reconnected", e.Username)
		s.bus.SendDirect(e.Channel, protocol.Self(e.Username))
		s.resendSecrets(p)
		s.bus.SendGroup(s.group, protocol.Reconnected(e.Username))
		return nil
	}

	// Joining mid-game admits a spectator: no role, no vote.
	s.log.Infof("spectator %s joined", e.Username)
	s.addPlayer(e.Username, e.Channel, true)
	s.bus.SendDirect(e.Channel, protocol.Self(e.Username))
	s.broadcastRoster()
	return nil
}

// addPlayer assumes the identity is not in the roster yet.
func (s *Session) addPlayer(username string, channel uuid.UUID, spectator bool) {
	s.roster[username] = &Player{
		Username:  username,
		Channel:   channel,
		Connected: true,
		Spectator: spectator,
	}
	s.order = append(s.order, username)
}

// resendSecrets replays a reconnecting player's private knowledge: their own
// role, and for Guards the King's identity.
func (s *Session) resendSecrets(p *Player) {
	if p.Role == RoleUnassigned {
		return
	}
	s.bus.SendDirect(p.Channel, protocol.Role(p.Username, string(p.Role)))
	if p.Role == RoleGuard {
		if king := s.findRole(RoleKing); king != nil {
			s.bus.SendDirect(p.Channel, protocol.Role(king.Username, string(RoleKing)))
		}
	}
}

func (s *Session) disconnect(e DisconnectEvent) error {
	p, ok := s.roster[e.Username]
	if !ok {
		return ErrNotFound
	}

	if s.phase == PhaseLobby {
		delete(s.roster, e.Username)
		s.dropFromOrder(e.Username)
		s.persist("clear lobby", func(ctx context.Context) error {
			return s.store.ClearLobby(ctx, e.Username)
		})
		s.broadcastRoster()
	} else {
		// Mid-game the roster entry survives so the identity can reconnect.
		// A pending vote from the departed player stays counted.
		p.Connected = false
		s.bus.SendGroup(s.group, protocol.Disconnected(e.Username))
	}

	if !s.anyConnected() {
		s.log.Info("last participant left, resetting lobby")
		s.persist("delete lobby", func(ctx context.Context) error {
			return s.store.DeleteLobby(ctx, s.lobbyID)
		})
		s.reset()
		s.detached = true
		if s.onEmpty != nil {
			s.onEmpty(s.lobbyID)
		}
	}
	return nil
}

func (s *Session) chat(e ChatEvent) error {
	if _, ok := s.roster[e.Username]; !ok {
		return ErrNotFound
	}
	s.bus.SendGroup(s.group, protocol.Chat(e.Username, e.Text))
	return nil
}

// beginGame drives the Lobby -> RoleAssignment transition once the roster
// hits capacity. Roles are dealt after a short pause so clients can render
// the announcement first.
func (s *Session) beginGame() {
	s.phase = PhaseRoleAssignment
	s.bus.SendGroup(s.group, protocol.Beginning())
	s.bus.SendGroup(s.group, protocol.SystemChat("Game beginning!"))
	s.pacingTimer = s.schedule(beginDelay, s.assignRoles)
}

// assignRoles pops one role per non-spectator player from the shuffled deck,
// reveals each privately, tells the Guards who the King is, then schedules
// the first cycle.
func (s *Session) assignRoles() {
	for _, name := range s.order {
		p := s.roster[name]
		if p.Spectator {
			continue
		}
		role := s.deck[len(s.deck)-1]
		s.deck = s.deck[:len(s.deck)-1]
		p.Role = role
		s.bus.SendDirect(p.Channel, protocol.SystemChat(fmt.Sprintf("Your role is %s", role)))
		s.bus.SendDirect(p.Channel, protocol.Role(name, string(role)))
	}
	s.tellGuards()
	s.pacingTimer = s.schedule(roleRevealDelay, s.startCycle)
}

// tellGuards reveals the King's identity to each Guard, individually and
// privately. The King, the Beast, and spectators never receive this.
func (s *Session) tellGuards() {
	king := s.findRole(RoleKing)
	if king == nil {
		return
	}
	for _, name := range s.order {
		p := s.roster[name]
		if p.Role != RoleGuard {
			continue
		}
		s.bus.SendDirect(p.Channel, protocol.Role(king.Username, string(RoleKing)))
		s.bus.SendDirect(p.Channel, protocol.SystemChat(
			fmt.Sprintf("%s is the King, guard him and keep this secret!", king.Username)))
	}
}

func (s *Session) findRole(role Role) *Player {
	for _, name := range s.order {
		if p := s.roster[name]; p.Role == role {
			return p
		}
	}
	return nil
}

// startCycle opens a discussion/voting round. Vote state is zeroed here, so
// the invariant holds that totalVotes is 0 at every cycle start.
func (s *Session) startCycle() {
	s.phase = PhaseCycle
	s.totalVotes = 0
	for _, p := range s.roster {
		p.VoteCount = 0
		p.Voted = false
	}
	s.bus.SendGroup(s.group, protocol.NewCycle())
	s.bus.SendGroup(s.group, protocol.SystemChat("A new cycle begins. Discuss, then vote with v>name."))
	s.warnTimer = s.schedule(cycleWarning, func() {
		// Best-effort pacing only: the cycle stays open until the votes arrive.
		s.bus.SendGroup(s.group, protocol.Broadcast("Time's up!", "warning"))
	})
}

func (s *Session) castVote(e VoteEvent) error {
	if s.gameOver || s.phase != PhaseCycle {
		return ErrInvalidPhase
	}
	voter, ok := s.roster[e.Voter]
	if !ok {
		return ErrNotFound
	}
	if voter.Spectator || voter.Out || !voter.Connected || voter.Voted {
		return ErrInvalidPhase
	}
	target, ok := s.roster[e.Target]
	if !ok || target.Spectator || target.Out {
		return ErrNotFound
	}

	voter.Voted = true
	target.VoteCount++
	s.totalVotes++
	s.bus.SendGroup(s.group, protocol.Broadcast(
		fmt.Sprintf("%s voted for %s", e.Voter, e.Target), "vote"))

	// The tally resolves synchronously inside this same locked step, so no
	// racing vote can slip in between the final vote and the resolution.
	if s.totalVotes >= s.eligibleVoters() {
		s.resolveTally()
	}
	return nil
}

func (s *Session) eligibleVoters() int {
	n := 0
	for _, p := range s.roster {
		if p.eligible() {
			n++
		}
	}
	return n
}

// resolveTally eliminates the top vote-getter and evaluates the win
// condition. Ties break to the earliest-joined player among the leaders —
// deterministic, and deliberately so.
func (s *Session) resolveTally() {
	if s.gameOver {
		return
	}
	if s.warnTimer != nil {
		s.warnTimer.Stop()
		s.warnTimer = nil
	}

	var top *Player
	for _, name := range s.order {
		p := s.roster[name]
		if !p.eligible() {
			continue
		}
		if top == nil || p.VoteCount > top.VoteCount {
			top = p
		}
	}
	if top == nil {
		return
	}

	top.Out = true
	s.log.Infof("tally eliminated %s (%s)", top.Username, top.Role)
	s.bus.SendGroup(s.group, protocol.Out(top.Username, string(top.Role)))
	s.bus.SendGroup(s.group, protocol.Broadcast(
		fmt.Sprintf("%s was voted out. Their role was %s.", top.Username, top.Role), "elimination"))
	s.record("elimination", map[string]interface{}{
		"player": top.Username,
		"role":   string(top.Role),
		"votes":  top.VoteCount,
	})

	s.totalVotes = 0
	for _, p := range s.roster {
		p.VoteCount = 0
		p.Voted = false
	}

	switch top.Role {
	case RoleKing:
		s.endGame(FactionBeast, "The King has fallen. The Beast wins!")
	case RoleBeast:
		s.endGame(FactionPalace, "The Beast was voted out. The Palace team wins!")
	default:
		s.pacingTimer = s.schedule(cyclePacing, s.startCycle)
	}
}

// jump is the immediate elimination action. Unlike a tally it always ends
// the game: a King target hands the Beast the win, anything else hands the
// Palace team the win.
func (s *Session) jump(e JumpEvent) error {
	if s.gameOver || s.phase != PhaseCycle {
		return ErrInvalidPhase
	}
	actor, ok := s.roster[e.Actor]
	if !ok {
		return ErrNotFound
	}
	if actor.Spectator || actor.Out || !actor.Connected {
		return ErrInvalidPhase
	}
	target, ok := s.roster[e.Target]
	if !ok || target.Spectator || target.Out {
		return ErrNotFound
	}

	target.Out = true
	s.log.Infof("%s jumped %s (%s)", e.Actor, e.Target, target.Role)
	s.bus.SendGroup(s.group, protocol.Out(target.Username, string(target.Role)))
	s.bus.SendGroup(s.group, protocol.Broadcast(
		fmt.Sprintf("%s struck down %s, who was %s!", e.Actor, e.Target, target.Role), "elimination"))
	s.record("elimination", map[string]interface{}{
		"player": target.Username,
		"role":   string(target.Role),
		"jump":   true,
		"actor":  e.Actor,
	})

	if target.Role == RoleKing {
		s.endGame(FactionBeast, "The King has fallen. The Beast wins!")
	} else {
		s.endGame(FactionPalace, "The Beast's plot failed. The Palace team wins!")
	}
	return nil
}

// endGame marks the terminal phase and credits the winners. No further
// votes or eliminations are processed; cleanup waits for disconnects.
func (s *Session) endGame(winner Faction, announcement string) {
	s.gameOver = true
	s.phase = PhaseGameOver
	if s.pacingTimer != nil {
		s.pacingTimer.Stop()
		s.pacingTimer = nil
	}
	if s.warnTimer != nil {
		s.warnTimer.Stop()
		s.warnTimer = nil
	}

	s.bus.SendGroup(s.group, protocol.Broadcast(announcement, "game_over"))

	winners := s.winners(winner)
	s.log.Infof("game over: %s faction wins (%s)", winner, strings.Join(winners, ", "))
	s.persist("increment wins", func(ctx context.Context) error {
		return s.store.IncrementWins(ctx, winners)
	})
	s.record("result", map[string]interface{}{
		"winner_faction": string(winner),
		"winners":        winners,
	})
}

// winners lists the usernames on the winning faction: the Beast alone, or
// every non-Beast role holder for a Palace win.
func (s *Session) winners(f Faction) []string {
	var out []string
	for _, name := range s.order {
		p := s.roster[name]
		if p.Spectator || p.Role == RoleUnassigned {
			continue
		}
		if (f == FactionBeast) == (p.Role == RoleBeast) {
			out = append(out, name)
		}
	}
	return out
}

// reset returns the session to its initial Lobby state with a freshly
// shuffled deck, so the same lobby id can host a brand-new game. Pending
// timers are stopped and any that already fired become stale no-ops.
func (s *Session) reset() {
	s.generation++
	if s.pacingTimer != nil {
		s.pacingTimer.Stop()
		s.pacingTimer = nil
	}
	if s.warnTimer != nil {
		s.warnTimer.Stop()
		s.warnTimer = nil
	}
	s.phase = PhaseLobby
	s.roster = make(map[string]*Player)
	s.order = nil
	s.deck = newDeck()
	s.shuffle(s.deck)
	s.totalVotes = 0
	s.gameOver = false
}

// schedule arms a one-shot callback that re-enters the session under its
// lock. A callback from before the last reset is discarded.
func (s *Session) schedule(d time.Duration, fn func()) timer.Handle {
	gen := s.generation
	return s.timers.Schedule(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return
		}
		fn()
	})
}

func (s *Session) broadcastRoster() {
	s.bus.SendGroup(s.group, protocol.Roster(strings.Join(s.order, ", ")))
}

func (s *Session) dropFromOrder(username string) {
	for i, name := range s.order {
		if name == username {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Session) anyConnected() bool {
	for _, p := range s.roster {
		if p.Connected {
			return true
		}
	}
	return false
}

// persist runs a storage call off the event path. Failures are logged and
// otherwise ignored; durability is the gateway's concern, not the session's.
func (s *Session) persist(desc string, fn func(ctx context.Context) error) {
	if s.store == nil {
		return
	}
	log := s.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warnf("persistence %s failed: %v", desc, err)
		}
	}()
}

func (s *Session) record(kind string, payload map[string]interface{}) {
	if s.journal == nil {
		return
	}
	s.journal.Record(s.lobbyID, kind, payload)
}
