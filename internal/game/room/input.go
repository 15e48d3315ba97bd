package room

import (
	"math"
	"time"

	"github.com/palemoky/maze-rush/internal/protocol"
)

// handlePlayerInput 接受玩家控制输入。防作弊净化（非有限值、超幅）
// 不回错误：静默钳制权威状态并强制一次全量重同步。
func (r *Room) handlePlayerInput(sess *Session, msg *protocol.Message, now time.Time) error {
	payload, err := protocol.ParsePayload[protocol.PlayerInputPayload](msg)
	if err != nil {
		return ErrInvalidMessage
	}
	if r.state.Phase != PhaseExplore {
		return ErrWrongPhase
	}

	// 时间戳重放/超前窗口
	if r.state.Player.LastInputTS != 0 &&
		payload.ClientTS < r.state.Player.LastInputTS-pastToleranceMs {
		return &PolicyError{
			Code: protocol.ErrCodeInputTimestampPast,
			Data: map[string]any{"accepted_ts": r.state.Player.LastInputTS},
		}
	}
	if payload.ClientTS > now.UnixMilli()+futureToleranceMs {
		return &PolicyError{Code: protocol.ErrCodeInputTimestampFuture}
	}

	turn, forward := payload.Turn, payload.Forward
	sanitized := false
	if !isFinite(turn) {
		turn, sanitized = 0, true
	}
	if !isFinite(forward) {
		forward, sanitized = 0, true
	}
	if turn < -1 || turn > 1 {
		turn, sanitized = clampUnit(turn), true
	}
	if forward < -1 || forward > 1 {
		forward, sanitized = clampUnit(forward), true
	}

	r.state.Player.Input.Turn = turn
	r.state.Player.Input.Forward = forward
	r.state.Player.LastInputTS = payload.ClientTS
	r.dirty = true
	if sanitized {
		r.forceFull = true
	}

	r.emitEvent(sess, protocol.EventInputEcho, map[string]any{
		"ts": payload.ClientTS,
	})
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
