package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/maze-rush/internal/protocol"
)

func joinBoth(t *testing.T, r *Room, now time.Time) (ownerConn, playerConn *FakeConn) {
	t.Helper()
	ownerConn, playerConn = &FakeConn{}, &FakeConn{}
	require.NoError(t, r.handleJoin(ownerConn, RoleOwner, "alice", now))
	require.NoError(t, r.handleJoin(playerConn, RolePlayer, "bob", now))
	return ownerConn, playerConn
}

func TestNew_GeneratesSolvableMaze(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	assert.Equal(t, PhaseLobby, r.state.Phase)
	assert.NotNil(t, r.state.Maze)
	assert.Greater(t, r.state.Maze.PathLen, 0)

	// Player spawns at the center of the start cell
	start := r.state.Maze.Start
	assert.Equal(t, float64(start.X)+0.5, r.state.Player.Body.Pos.X)
	assert.Equal(t, float64(start.Y)+0.5, r.state.Player.Body.Pos.Y)
}

func TestJoin_RoleAlreadyTaken(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)

	err := r.handleJoin(&FakeConn{}, RoleOwner, "mallory", now)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoin_InvalidRole(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	err := r.handleJoin(&FakeConn{}, Role("spectator"), "eve", time.Now())
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestJoin_NewSessionRejectedMidMatch(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	ownerConn, _ := joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)

	// The owner seat is occupied by a live connection
	err := r.handleJoin(&FakeConn{}, RoleOwner, "mallory", now)
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.False(t, ownerConn.Closed)
}

// Scenario: owner and player join, the owner starts, the countdown runs
// out, and the room lands in prep with the points window open.
func TestStartFlow_LobbyToPrep(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	_, playerConn := joinBoth(t, r, now)

	owner := r.state.Sessions[RoleOwner]
	player := r.state.Sessions[RolePlayer]
	require.NotNil(t, owner)
	require.NotNil(t, player)
	assert.NotEqual(t, owner.ID, player.ID)

	// Player cannot start the match
	r.handleMessage(playerConn, protocol.MustNewMessage(protocol.MsgOwnerStart, nil), now)
	assert.Contains(t, playerConn.Errors(), protocol.ErrCodeWrongRole)
	assert.Equal(t, PhaseLobby, r.state.Phase)

	require.NoError(t, r.handleOwnerStart(owner, now))
	assert.Equal(t, PhaseCountdown, r.state.Phase)
	assert.Equal(t, now.Add(r.cfg.Game.CountdownDuration()), r.state.PhaseEndsAt)

	// A second start lands in the wrong phase
	assert.ErrorIs(t, r.handleOwnerStart(owner, now), ErrWrongPhase)

	// Countdown deadline passes
	later := now.Add(r.cfg.Game.CountdownDuration())
	r.onWake(later)
	assert.Equal(t, PhasePrep, r.state.Phase)
	assert.Equal(t, StagePoints, r.prepStage(later))
}

func TestStart_RequiresBothSeats(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	ownerConn := &FakeConn{}
	require.NoError(t, r.handleJoin(ownerConn, RoleOwner, "alice", now))

	err := r.handleOwnerStart(r.state.Sessions[RoleOwner], now)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, PhaseLobby, r.state.Phase)
}

func TestOnWake_IdempotentBeforeDeadline(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)
	require.NoError(t, r.handleOwnerStart(r.state.Sessions[RoleOwner], now))

	// Early and repeated wakes must not advance the phase
	r.onWake(now.Add(time.Second))
	r.onWake(now.Add(time.Second))
	assert.Equal(t, PhaseCountdown, r.state.Phase)

	deadline := now.Add(r.cfg.Game.CountdownDuration())
	r.onWake(deadline)
	assert.Equal(t, PhasePrep, r.state.Phase)
	r.onWake(deadline)
	assert.Equal(t, PhasePrep, r.state.Phase)
}

// Scenario: the player disconnects mid-explore. The match pauses, the
// world freezes, and reconnecting resumes with the remaining time intact.
func TestDisconnect_PausesAndResumes(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	ownerConn, playerConn := joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	r.state.Player.Input.Forward = 1

	remainingBefore := r.remainingMs(now)

	r.handleDisconnect(playerConn, now)
	assert.True(t, r.state.Paused)
	assert.NotNil(t, ownerConn.LastEvent(protocol.EventPaused))

	// Ticks during the pause must not move the player
	pos := r.state.Player.Body.Pos
	r.lastTickAt = now
	r.tick(now.Add(50 * time.Millisecond))
	assert.Equal(t, pos, r.state.Player.Body.Pos)

	// Reconnect after 10 seconds of pause
	resumeAt := now.Add(10 * time.Second)
	reconn := &FakeConn{}
	require.NoError(t, r.handleJoin(reconn, RolePlayer, "bob", resumeAt))
	assert.False(t, r.state.Paused)
	assert.NotNil(t, ownerConn.LastEvent(protocol.EventResumed))
	assert.Equal(t, remainingBefore, r.remainingMs(resumeAt))

	// The original session survives the reconnect
	assert.Equal(t, "sess-2", r.state.Sessions[RolePlayer].ID)
}

func TestExpireSessions_DisconnectTimeoutForfeits(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	ownerConn, playerConn := joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)

	r.handleDisconnect(playerConn, now)
	require.True(t, r.state.Paused)

	// Still within the grace period
	r.expireSessions(now.Add(r.cfg.Game.DisconnectTimeout()))
	assert.Equal(t, PhaseExplore, r.state.Phase)

	// Grace period exceeded: the remaining side wins
	r.expireSessions(now.Add(r.cfg.Game.DisconnectTimeout() + time.Second))
	assert.Equal(t, PhaseResult, r.state.Phase)
	assert.Equal(t, RoleOwner, r.state.Winner)
	assert.Equal(t, "OPPONENT_LEFT", r.state.ResultReason)

	result := ownerConn.LastEvent(protocol.EventResult)
	require.NotNil(t, result)
	assert.Equal(t, "OPPONENT_LEFT", result["reason"])
}

func TestExpireSessions_HeartbeatTimeout(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	_, playerConn := joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)

	stale := now.Add(r.cfg.Game.HeartbeatTimeout() + time.Second)
	r.expireSessions(stale)

	assert.True(t, playerConn.Closed)
	assert.True(t, r.state.Paused)
	assert.False(t, r.state.Sessions[RolePlayer].Connected())
}

func TestRematch_SwapsRoles(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)

	owner := r.state.Sessions[RoleOwner]
	player := r.state.Sessions[RolePlayer]
	oldMaze := r.state.Maze

	// Rematch is only available from the result phase
	assert.ErrorIs(t, r.handleRematch(now), ErrNotInResult)

	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	r.finishMatch(RoleOwner, "TIME_UP", now)
	require.Equal(t, PhaseResult, r.state.Phase)

	require.NoError(t, r.handleRematch(now))
	assert.Equal(t, PhaseLobby, r.state.Phase)
	assert.Same(t, player, r.state.Sessions[RoleOwner])
	assert.Same(t, owner, r.state.Sessions[RolePlayer])
	assert.Equal(t, RoleOwner, player.Role)
	assert.Equal(t, RolePlayer, owner.Role)

	// Fresh maze, fresh resources, no leftover result
	assert.NotEqual(t, oldMaze.Seed, r.state.Maze.Seed)
	assert.Equal(t, Role(""), r.state.Winner)
	assert.Equal(t, 0, r.state.Player.Score)
	assert.Equal(t, trapChargesInit, r.state.Owner.TrapCharges)
}

func TestRematch_RequiresBothConnected(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	_, playerConn := joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	r.finishMatch(RoleOwner, "TIME_UP", now)

	r.handleDisconnect(playerConn, now)
	assert.ErrorIs(t, r.handleRematch(now), ErrNotReady)
}

func TestHandleMessage_UnknownConnGetsFatal(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	stranger := &FakeConn{}
	r.handleMessage(stranger, protocol.MustNewMessage(protocol.MsgPing, nil), time.Now())

	require.Len(t, stranger.Immediate, 1)
	assert.Equal(t, protocol.MsgFatal, stranger.Immediate[0].Type)
	assert.True(t, stranger.Closed)
}

func TestHandleMessage_PingPong(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	_, playerConn := joinBoth(t, r, now)

	msg := protocol.MustNewMessage(protocol.MsgPing, protocol.PingPayload{ClientTS: 12345})
	r.handleMessage(playerConn, msg, now)

	require.Len(t, playerConn.Immediate, 1)
	pong, err := protocol.ParsePayload[protocol.PongPayload](playerConn.Immediate[0])
	require.NoError(t, err)
	assert.Equal(t, int64(12345), pong.ClientTS)
	assert.Equal(t, now.UnixMilli(), pong.ServerTS)
}
