package room

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/maze-rush/internal/protocol"
)

func inputMsg(turn, forward float64, ts int64) *protocol.Message {
	return protocol.MustNewMessage(protocol.MsgPlayerInput, protocol.PlayerInputPayload{
		Turn: turn, Forward: forward, ClientTS: ts,
	})
}

func TestPlayerInput_OnlyDuringExplore(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)
	player := r.state.Sessions[RolePlayer]

	err := r.handlePlayerInput(player, inputMsg(0, 1, now.UnixMilli()), now)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestPlayerInput_Accepted(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	player := r.state.Sessions[RolePlayer]
	r.dirty, r.forceFull = false, false

	ts := now.UnixMilli()
	require.NoError(t, r.handlePlayerInput(player, inputMsg(0.5, -1, ts), now))
	assert.Equal(t, 0.5, r.state.Player.Input.Turn)
	assert.Equal(t, -1.0, r.state.Player.Input.Forward)
	assert.Equal(t, ts, r.state.Player.LastInputTS)
	assert.False(t, r.forceFull)
}

// Scenario: an input stamped far behind the last accepted one is rejected
// with the accepted timestamp attached, and the stored input is untouched.
func TestPlayerInput_StaleTimestampRejected(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	player := r.state.Sessions[RolePlayer]

	ts := now.UnixMilli()
	require.NoError(t, r.handlePlayerInput(player, inputMsg(0, 1, ts), now))

	err := r.handlePlayerInput(player, inputMsg(1, 0, ts-pastToleranceMs-1), now)
	var policy *PolicyError
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, protocol.ErrCodeInputTimestampPast, policy.Code)
	assert.Equal(t, ts, policy.Data["accepted_ts"])

	// The previous input and timestamp persist
	assert.Equal(t, 1.0, r.state.Player.Input.Forward)
	assert.Equal(t, ts, r.state.Player.LastInputTS)

	// Exactly at the tolerance edge the input is still accepted
	require.NoError(t, r.handlePlayerInput(player, inputMsg(0, 0, ts-pastToleranceMs), now))
	assert.Equal(t, ts-pastToleranceMs, r.state.Player.LastInputTS)
}

func TestPlayerInput_FutureTimestampRejected(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	player := r.state.Sessions[RolePlayer]

	err := r.handlePlayerInput(player, inputMsg(0, 1, now.UnixMilli()+futureToleranceMs+1), now)
	var policy *PolicyError
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, protocol.ErrCodeInputTimestampFuture, policy.Code)
}

func TestPlayerInput_OverrangeClampedSilently(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	player := r.state.Sessions[RolePlayer]
	r.dirty, r.forceFull = false, false

	// Sanitizing never surfaces an error to the client
	err := r.handlePlayerInput(player, inputMsg(3.5, -2, now.UnixMilli()), now)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.state.Player.Input.Turn)
	assert.Equal(t, -1.0, r.state.Player.Input.Forward)

	// But it does force a full resync
	assert.True(t, r.forceFull)
}

func TestInputSanitizers(t *testing.T) {
	t.Parallel()

	assert.False(t, isFinite(math.NaN()))
	assert.False(t, isFinite(math.Inf(1)))
	assert.False(t, isFinite(math.Inf(-1)))
	assert.True(t, isFinite(0))

	assert.Equal(t, 1.0, clampUnit(7))
	assert.Equal(t, -1.0, clampUnit(-7))
	assert.Equal(t, 0.25, clampUnit(0.25))
}

func TestPlayerInput_WrongRoleViaRouter(t *testing.T) {
	t.Parallel()

	r := newTestRoom()
	now := time.Now()
	ownerConn, _ := joinBoth(t, r, now)
	r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)

	r.handleMessage(ownerConn, inputMsg(0, 1, now.UnixMilli()), now)
	assert.Contains(t, ownerConn.Errors(), protocol.ErrCodeWrongRole)
	assert.Equal(t, int64(0), r.state.Player.LastInputTS)
}
