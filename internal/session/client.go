// internal/session/client.go
//
// Client is one participant's session context: it owns the room channel
// subscription, the turn clock, the pause controller, and the vote
// coordinator, all constructed on room join and torn down together on leave.
// There is no authoritative server; the client mutates its own copy of the
// snapshot through the pure reducer, publishes the result, and treats every
// incoming snapshot that passes the sequence and actor checks as the new
// truth.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/mkarras/pileup/internal/channel"
	"github.com/mkarras/pileup/internal/game"
)

// ActionRecorder receives a copy of each transition this client authored,
// typically feeding the historian queue. May be nil.
type ActionRecorder func(action string, sess *game.Session, actorID uuid.UUID)

// Options configures a Client.
type Options struct {
	RoomID   uuid.UUID
	PlayerID uuid.UUID
	Channel  channel.RoomChannel
	Rules    game.Rules

	// Clock defaults to the real clock; tests inject a fake.
	Clock clockwork.Clock
	// Rand defaults to a time-seeded source.
	Rand   *rand.Rand
	Logger *logrus.Logger

	// OnState fires after every snapshot replacement, local or remote.
	OnState func(*game.Session)
	// OnTick fires once per second with the derived remaining turn time.
	OnTick func(remaining time.Duration)
	// OnVotePrompt fires when another player's replenishment request opens
	// and this player is eligible to vote.
	OnVotePrompt func(requesterID uuid.UUID, closesAt time.Time)
	// OnVoteResult fires when a ballot decides, on every client.
	OnVoteResult func(requesterID uuid.UUID, approved bool)
	// OnGameOver fires once when the session reaches its terminal state,
	// however the ending was derived.
	OnGameOver func(*game.Session)

	Recorder ActionRecorder
}

// Client is a per-player view of one room's game.
type Client struct {
	roomID   uuid.UUID
	playerID uuid.UUID
	ch       channel.RoomChannel
	rules    game.Rules
	clock    clockwork.Clock
	rng      *rand.Rand
	log      *logrus.Logger

	onState      func(*game.Session)
	onTick       func(time.Duration)
	onVotePrompt func(uuid.UUID, time.Time)
	onVoteResult func(uuid.UUID, bool)
	onGameOver   func(*game.Session)
	record       ActionRecorder

	turnClock *TurnClock
	pause     *PauseController
	votes     *VoteCoordinator

	mu   sync.Mutex
	sess *game.Session
	sub  channel.Subscription
	// gameOverFired keeps the terminal callback to a single invocation.
	gameOverFired bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewClient wires a client from options. Join must be called before use.
func NewClient(opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	c := &Client{
		roomID:       opts.RoomID,
		playerID:     opts.PlayerID,
		ch:           opts.Channel,
		rules:        opts.Rules,
		clock:        opts.Clock,
		rng:          opts.Rand,
		log:          opts.Logger,
		onState:      opts.OnState,
		onTick:       opts.OnTick,
		onVotePrompt: opts.OnVotePrompt,
		onVoteResult: opts.OnVoteResult,
		onGameOver:   opts.OnGameOver,
		record:       opts.Recorder,
		done:         make(chan struct{}),
	}
	c.turnClock = NewTurnClock(opts.Clock, opts.Logger, c.handleTick, c.handleExpire)
	c.pause = NewPauseController(opts.Clock, opts.Logger, opts.Rules.MaxPause(), c.forceResume)
	c.votes = NewVoteCoordinator(opts.Clock, opts.Logger, opts.Rules.VoteWindow(), c.finishVote)
	return c
}

// Join subscribes to the room topic and starts the receive loop and turn
// clock. The client runs until Leave or ctx cancellation.
func (c *Client) Join(ctx context.Context) error {
	sub, err := c.ch.Join(ctx, c.roomID)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.sub = sub
	c.cancel = cancel
	c.mu.Unlock()

	c.turnClock.Start(runCtx)
	go c.run(runCtx, sub)
	return nil
}

// Leave tears the session context down deterministically: unsubscribe, stop
// all timers, drop callbacks. Safe to call more than once.
func (c *Client) Leave() {
	c.once.Do(func() {
		c.mu.Lock()
		cancel, sub := c.cancel, c.sub
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if sub != nil {
			sub.Leave()
		}
		c.turnClock.Stop()
		c.pause.Stop()
		c.votes.Stop()
		close(c.done)
	})
}

// Done closes once the client has fully left.
func (c *Client) Done() <-chan struct{} { return c.done }

// Snapshot returns the client's current copy of the session, or nil.
func (c *Client) Snapshot() *game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Remaining derives the current turn countdown from the snapshot.
func (c *Client) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return 0
	}
	return c.sess.Remaining(c.clock.Now())
}

// StartSession deals a fresh game and broadcasts the opening snapshot. The
// host's client is the sole writer for this transition. A client that has
// held any session refuses a restart: the fresh snapshot's Seq of 1 would
// read as stale on every receiver, so a rematch needs a new room.
func (c *Client) StartSession(ctx context.Context, seats []game.Seat) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return ErrSessionExists
	}
	sess, err := game.NewSession(c.roomID, seats, c.rules, c.rng, c.clock.Now())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.commitLocked(sess)
	c.mu.Unlock()

	c.notifyState(sess)
	c.recordAction("game_start", sess)
	return c.publishState(ctx, channel.EventGameState, sess)
}

// Play plays the head card of the local player's hand.
func (c *Client) Play(ctx context.Context) error {
	return c.applyLocal(ctx, "play", func(s *game.Session) (*game.Session, error) {
		return game.ApplyPlay(s, c.playerID, c.rules, c.clock.Now())
	})
}

// Collect manually sweeps the pile into the local player's hand.
func (c *Client) Collect(ctx context.Context) error {
	return c.applyLocal(ctx, "collect", func(s *game.Session) (*game.Session, error) {
		return game.ApplyCollect(s, c.playerID)
	})
}

// Shuffle permutes the local player's hand, spending allowance.
func (c *Client) Shuffle(ctx context.Context) error {
	return c.applyLocal(ctx, "shuffle", func(s *game.Session) (*game.Session, error) {
		return game.ApplyShuffle(s, c.playerID, c.rng)
	})
}

// RequestReplenishment opens a card-request ballot with this client as
// tallier and prompts the other active players.
func (c *Client) RequestReplenishment(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}
	if sess.IsGameOver {
		return game.ErrGameOver
	}

	var eligible []uuid.UUID
	for _, p := range sess.Players {
		if p.ID != c.playerID && p.IsActive {
			eligible = append(eligible, p.ID)
		}
	}
	if _, err := c.votes.Open(c.roomID, c.playerID, eligible); err != nil {
		return err
	}

	return c.ch.Publish(ctx, channel.Envelope{
		Type:    channel.EventRequestCards,
		RoomID:  c.roomID,
		ActorID: c.playerID,
		Vote:    &channel.VotePayload{PlayerID: c.playerID},
	})
}

// CastVote submits this player's ballot on the open request.
func (c *Client) CastVote(ctx context.Context, approve bool) error {
	if !c.votes.Pending() {
		return ErrVoteClosed
	}
	if c.votes.Requester() == c.playerID {
		return ErrNotEligible
	}
	return c.ch.Publish(ctx, channel.Envelope{
		Type:    channel.EventSubmitCardVote,
		RoomID:  c.roomID,
		ActorID: c.playerID,
		Vote:    &channel.VotePayload{PlayerID: c.playerID, Vote: approve},
	})
}

// applyLocal runs one reducer transition against the local snapshot and, on
// success, commits and broadcasts it.
func (c *Client) applyLocal(ctx context.Context, action string, fn func(*game.Session) (*game.Session, error)) error {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	// The shared deadline may have passed since the last tick; an action
	// must not slip in against a session that is already over.
	if ended := game.CheckGameOver(c.sess, c.clock.Now()); ended != c.sess {
		c.commitLocked(ended)
		c.mu.Unlock()
		c.notifyState(ended)
		return game.ErrGameOver
	}
	next, err := fn(c.sess)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.commitLocked(next)
	c.mu.Unlock()

	c.notifyState(next)
	c.recordAction(action, next)
	return c.publishState(ctx, channel.EventGameState, next)
}

// commitLocked installs a snapshot and rebases the turn clock on it.
func (c *Client) commitLocked(sess *game.Session) {
	c.sess = sess
	c.turnClock.SetDeadline(sess.TurnEndsAt)
	if sess.IsPaused || sess.IsGameOver {
		c.turnClock.Pause()
	} else {
		c.turnClock.Resume()
	}
}

func (c *Client) notifyState(sess *game.Session) {
	if c.onState != nil {
		c.onState(sess)
	}
	if sess.IsGameOver {
		c.fireGameOver(sess)
	}
}

// fireGameOver invokes the terminal callback at most once per client,
// whichever path first installed the finished snapshot.
func (c *Client) fireGameOver(sess *game.Session) {
	if c.onGameOver == nil {
		return
	}
	c.mu.Lock()
	if c.gameOverFired {
		c.mu.Unlock()
		return
	}
	c.gameOverFired = true
	c.mu.Unlock()
	c.onGameOver(sess)
}

func (c *Client) recordAction(action string, sess *game.Session) {
	if c.record != nil {
		c.record(action, sess, c.playerID)
	}
}

func (c *Client) publishState(ctx context.Context, typ channel.EventType, sess *game.Session) error {
	return c.ch.Publish(ctx, channel.Envelope{
		Type:    typ,
		RoomID:  c.roomID,
		ActorID: c.playerID,
		Seq:     sess.Seq,
		Session: sess,
	})
}

// run consumes room envelopes until the subscription closes.
func (c *Client) run(ctx context.Context, sub channel.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.Events():
			if !ok {
				return
			}
			c.handle(env)
		}
	}
}

func (c *Client) handle(env channel.Envelope) {
	switch env.Type {
	case channel.EventGameState:
		c.applyRemote(env, false)

	case channel.EventGameResumed:
		c.applyRemote(env, true)

	case channel.EventGamePaused:
		c.handleRemotePause(env)

	case channel.EventRequestCards:
		c.handleRequestCards(env)

	case channel.EventSubmitCardVote:
		c.handleBallot(env)

	case channel.EventCardVoteResult:
		c.handleVoteResult(env)

	default:
		c.log.Warnf("Unknown envelope type %q in room %s", env.Type, env.RoomID)
	}
}

// applyRemote installs an incoming snapshot after the stale and
// unauthorized-actor checks. Snapshots that fail either check are discarded;
// last-message-wins without the guards would let a raced or stale broadcast
// regress the state.
func (c *Client) applyRemote(env channel.Envelope, resumed bool) {
	if env.Session == nil {
		c.log.Warnf("Dropping %s envelope without a session from %s", env.Type, env.ActorID)
		return
	}

	c.mu.Lock()
	cur := c.sess
	if cur != nil {
		if env.Session.Seq <= cur.Seq {
			c.mu.Unlock()
			c.log.Debugf("Dropping stale snapshot seq=%d (have %d) from %s", env.Session.Seq, cur.Seq, env.ActorID)
			return
		}
		if !c.actorAllowed(cur, env, resumed) {
			c.mu.Unlock()
			c.log.Warnf("Dropping snapshot seq=%d from unexpected actor %s", env.Session.Seq, env.ActorID)
			return
		}
	}
	if resumed {
		c.pause.Lift()
	}
	c.commitLocked(env.Session)
	c.mu.Unlock()

	c.notifyState(env.Session)
}

// actorAllowed validates the sender's claimed role for a transition against
// the last known state: game snapshots must come from the player who held
// the turn, resume snapshots from the pause initiator.
func (c *Client) actorAllowed(cur *game.Session, env channel.Envelope, resumed bool) bool {
	if resumed {
		initiator := c.pause.LastInitiator()
		return initiator == uuid.Nil || initiator == env.ActorID
	}
	return cur.CurrentPlayer().ID == env.ActorID
}

// handleRemotePause freezes this client: the initiator is about to perform a
// multi-step redistribution. The captured remaining time rides on the local
// snapshot so resume can restore it.
func (c *Client) handleRemotePause(env channel.Envelope) {
	c.mu.Lock()
	if c.sess == nil || c.sess.IsPaused {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	remaining := c.sess.Remaining(now)
	paused, err := game.ApplyPause(c.sess, now)
	if err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("Ignoring pause signal")
		return
	}
	c.commitLocked(paused)
	c.pause.Freeze(env.ActorID, remaining)
	c.mu.Unlock()

	c.notifyState(paused)
}

// forceResume lifts a pause whose initiator never returned. Each client
// resumes independently from its last known snapshot; the deadlines land
// within a tick of each other, which is the consistency the design needs.
func (c *Client) forceResume() {
	c.mu.Lock()
	if c.sess == nil || !c.sess.IsPaused {
		c.mu.Unlock()
		return
	}
	resumed, err := game.ApplyResume(c.sess, c.clock.Now())
	if err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("Force-resume failed")
		return
	}
	c.pause.Lift()
	c.commitLocked(resumed)
	c.mu.Unlock()

	c.notifyState(resumed)
}

func (c *Client) handleRequestCards(env channel.Envelope) {
	if env.ActorID == c.playerID {
		// Own request echoed back; the coordinator is already open.
		return
	}
	if err := c.votes.ObserveOpen(env.RoomID, env.ActorID); err != nil {
		c.log.WithError(err).Warnf("Ignoring card request from %s", env.ActorID)
		return
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}
	me, _ := sess.PlayerByID(c.playerID)
	if me == nil || !me.IsActive {
		return
	}
	if c.onVotePrompt != nil {
		c.onVotePrompt(env.ActorID, c.clock.Now().Add(c.rules.VoteWindow()))
	}
}

// handleBallot tallies an incoming vote; only the requester's client holds
// the tally, everyone else ignores ballots.
func (c *Client) handleBallot(env channel.Envelope) {
	if env.Vote == nil || c.votes.Requester() != c.playerID {
		return
	}
	if err := c.votes.Record(env.Vote.PlayerID, env.Vote.Vote); err != nil {
		c.log.WithError(err).Debugf("Discarding ballot from %s", env.Vote.PlayerID)
	}
}

func (c *Client) handleVoteResult(env channel.Envelope) {
	c.votes.Clear()
	if env.Vote != nil && c.onVoteResult != nil {
		c.onVoteResult(env.Vote.PlayerID, env.Vote.Approved)
	}
}

// finishVote runs on the tallying client when its ballot decides. It
// announces the result; on approval it is the sole writer for the
// pause/replenish/resume cycle that tops up its own hand.
func (c *Client) finishVote(requesterID uuid.UUID, approved bool) {
	ctx := context.Background()

	if err := c.ch.Publish(ctx, channel.Envelope{
		Type:    channel.EventCardVoteResult,
		RoomID:  c.roomID,
		ActorID: c.playerID,
		Vote:    &channel.VotePayload{PlayerID: requesterID, Approved: approved},
	}); err != nil {
		c.log.WithError(err).Warn("Failed to announce vote result")
	}
	if c.onVoteResult != nil {
		c.onVoteResult(requesterID, approved)
	}
	if !approved {
		return
	}

	// Freeze everyone, redistribute, then resume with the rebased deadline.
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	now := c.clock.Now()
	remaining := c.sess.Remaining(now)
	paused, err := game.ApplyPause(c.sess, now)
	if err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("Could not pause for replenishment")
		return
	}
	c.commitLocked(paused)
	c.pause.Freeze(c.playerID, remaining)
	c.mu.Unlock()

	c.notifyState(paused)
	if err := c.ch.Publish(ctx, channel.Envelope{
		Type:    channel.EventGamePaused,
		RoomID:  c.roomID,
		ActorID: c.playerID,
	}); err != nil {
		c.log.WithError(err).Warn("Failed to broadcast pause")
	}

	c.mu.Lock()
	replenished, err := game.ApplyReplenish(c.sess, requesterID, c.rules.ReplenishCount)
	if err == nil {
		var resumed *game.Session
		resumed, err = game.ApplyResume(replenished, c.clock.Now())
		if err == nil {
			c.pause.Lift()
			c.commitLocked(resumed)
			c.mu.Unlock()

			c.notifyState(resumed)
			c.recordAction("replenish", resumed)
			if perr := c.publishState(ctx, channel.EventGameResumed, resumed); perr != nil {
				c.log.WithError(perr).Warn("Failed to broadcast resume")
			}
			return
		}
	}
	c.mu.Unlock()
	c.log.WithError(err).Warn("Replenishment failed; waiting out the pause bound")
}

// handleTick runs once per countdown tick. The game deadline is evaluated
// here rather than only on turn expiry: players acting before each turn
// deadline would otherwise keep a session alive past GameEndsAt forever.
func (c *Client) handleTick(remaining time.Duration) {
	c.checkGameDeadline()
	if c.onTick != nil {
		c.onTick(remaining)
	}
}

// checkGameDeadline ends the session locally once GameEndsAt passes. Every
// client derives the same ending from the shared snapshot, so nothing is
// broadcast.
func (c *Client) checkGameDeadline() {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.IsGameOver {
		c.mu.Unlock()
		return
	}
	ended := game.CheckGameOver(sess, c.clock.Now())
	if ended == sess {
		c.mu.Unlock()
		return
	}
	c.commitLocked(ended)
	c.mu.Unlock()
	c.notifyState(ended)
}

// handleExpire fires when the local countdown hits zero. Only the client
// owning the current player synthesizes the forced play; every other client
// waits passively for the resulting broadcast, so no turn is played twice.
func (c *Client) handleExpire() {
	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.IsGameOver || sess.IsPaused {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	if ended := game.CheckGameOver(sess, now); ended != sess {
		c.commitLocked(ended)
		c.mu.Unlock()
		c.notifyState(ended)
		return
	}

	if sess.CurrentPlayer().ID != c.playerID {
		c.mu.Unlock()
		return
	}
	next, err := game.ApplyAutoPlay(sess, c.playerID, c.rules, now)
	if err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("Auto-play failed")
		return
	}
	c.commitLocked(next)
	c.mu.Unlock()

	c.notifyState(next)
	c.recordAction("auto_play", next)
	if err := c.publishState(context.Background(), channel.EventGameState, next); err != nil {
		c.log.WithError(err).Warn("Failed to broadcast auto-play")
	}
}
