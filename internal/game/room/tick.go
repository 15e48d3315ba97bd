package room

import (
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/game/physics"
	"github.com/palemoky/maze-rush/internal/protocol"
)

// tick 固定频率推进。自算与上帧的间隔并设上限，长时间停顿后
// 不会爆发式位移。掉线/心跳超时也在这里统一评估。
func (r *Room) tick(now time.Time) {
	dt := now.Sub(r.lastTickAt)
	r.lastTickAt = now
	if dt > maxTickDelta {
		dt = maxTickDelta
	}
	if dt <= 0 {
		return
	}

	r.expireSessions(now)

	// 错过的阶段唤醒兜底
	if !r.state.Paused && !r.state.PhaseEndsAt.IsZero() && !now.Before(r.state.PhaseEndsAt) {
		r.advancePhase(now)
	}

	// 只在探索阶段、双方在线且未暂停时推进物理
	if r.state.Phase != PhaseExplore || r.state.Paused || !r.bothConnected() {
		return
	}

	input := r.state.Player.Input
	if now.Before(r.state.Player.StunnedUntil) {
		// 陷阱定身期间不接受前进
		input.Forward = 0
	}

	prev := r.state.Player.Body
	body := physics.Step(prev, input, dt.Seconds(), r.state.solidAt, r.params)

	if !r.sanitizeBody(&body, prev) {
		// 权威状态被钳制过，客户端必须整体重同步
		r.forceFull = true
	}
	if body != prev {
		r.dirty = true
	}
	r.state.Player.Body = body

	r.resolveCellEvents(now)
}

// sanitizeBody 防作弊兜底：非有限或越界的位置直接吸附回安全值，
// 永不向客户端报错。返回 false 表示发生了钳制。
func (r *Room) sanitizeBody(body *physics.Body, prev physics.Body) bool {
	max := float64(r.state.Maze.Size)
	ok := true
	if !isFinite(body.Pos.X) || !isFinite(body.Pos.Y) ||
		!isFinite(body.Vel.X) || !isFinite(body.Vel.Y) || !isFinite(body.Heading) {
		*body = prev
		body.Vel = physics.Vec{}
		return false
	}
	if body.Pos.X < 0 || body.Pos.X > max {
		body.Pos.X = clampRange(body.Pos.X, 0, max)
		body.Vel.X = 0
		ok = false
	}
	if body.Pos.Y < 0 || body.Pos.Y > max {
		body.Pos.Y = clampRange(body.Pos.Y, 0, max)
		body.Vel.Y = 0
		ok = false
	}
	return ok
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveCellEvents 位移后的格子结算：分数点、陷阱、预测标记、终点。
// 达到目标分当帧直接进结算，不等探索阶段的唤醒。
func (r *Room) resolveCellEvents(now time.Time) {
	cell := r.state.playerCell()

	if value, ok := r.state.Points[cell]; ok {
		delete(r.state.Points, cell)
		r.state.Player.Score += value
		r.dirty = true
		r.broadcastEvent(protocol.EventPointTaken, map[string]any{
			"cell":  cell,
			"value": value,
			"score": r.state.Player.Score,
		})
	}

	if _, ok := r.state.Traps[cell]; ok {
		delete(r.state.Traps, cell)
		r.state.Player.StunnedUntil = now.Add(stunDuration)
		if r.state.Player.Score > 0 {
			r.state.Player.Score -= trapScorePenalty
		}
		r.dirty = true
		r.broadcastEvent(protocol.EventTrapHit, map[string]any{
			"cell":       cell,
			"stunned_ms": stunDuration.Milliseconds(),
			"score":      r.state.Player.Score,
		})
	}

	if _, ok := r.state.Marks[cell]; ok {
		delete(r.state.Marks, cell)
		reward := r.deck.Draw()
		r.applyReward(reward)
		r.dirty = true
		r.log.Info("prediction hit",
			zap.String("cell_reward", string(reward)),
			zap.Int("x", cell.X), zap.Int("y", cell.Y),
		)
		r.broadcastEvent(protocol.EventMarkHit, map[string]any{
			"cell":   cell,
			"reward": reward,
		})
	}

	// 达标当帧结算
	if r.state.TargetLocked && r.state.Player.Score >= r.state.TargetScore {
		r.finishMatch(RolePlayer, "TARGET_REACHED", now)
		return
	}

	// 踏入终点：分够即胜，不够则过早进终点判房主胜
	if cell == r.state.Maze.Goal {
		if r.state.Player.Score >= r.state.TargetScore {
			r.finishMatch(RolePlayer, "GOAL_REACHED", now)
		} else {
			r.finishMatch(RoleOwner, "GOAL_TOO_EARLY", now)
		}
	}
}

// applyReward 把预测奖励入账到房主资源池
func (r *Room) applyReward(reward Reward) {
	switch reward {
	case RewardWallStock:
		r.state.Owner.WallStock++
	case RewardTrapCharge:
		r.state.Owner.TrapCharges++
	case RewardRemovalCharge:
		r.state.Owner.RemovalCharges++
	}
}
