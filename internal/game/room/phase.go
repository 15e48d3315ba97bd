package room

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/protocol"
)

// prepStage 按 prep 已历时长推导当前子窗口：
// 分数点 [0,40/60)，陷阱 [40/60,45/60)，预测 [45/60,1)
func (r *Room) prepStage(now time.Time) PrepStage {
	if r.state.Phase != PhasePrep {
		return StageNone
	}
	total := r.cfg.Game.PrepDuration()
	elapsed := r.prepElapsed(now)
	switch {
	case elapsed < total*40/60:
		return StagePoints
	case elapsed < total*45/60:
		return StageTraps
	default:
		return StageMarks
	}
}

// prepElapsed prep 阶段已历时长，暂停期间冻结在暂停时刻
func (r *Room) prepElapsed(now time.Time) time.Duration {
	if r.state.Paused {
		return r.state.PausedAt.Sub(r.state.PhaseStartedAt)
	}
	return now.Sub(r.state.PhaseStartedAt)
}

// setPhase 推进到新阶段并重设阶段时钟。dur 为零表示无时限。
func (r *Room) setPhase(p Phase, dur time.Duration, now time.Time) {
	r.state.Phase = p
	r.state.PhaseStartedAt = now
	if dur > 0 {
		r.state.PhaseEndsAt = now.Add(dur)
	} else {
		r.state.PhaseEndsAt = time.Time{}
	}
	r.forceFull = true
	r.log.Info("phase transition", zap.String("phase", string(p)))
}

// rearmWake 从权威截止时间重算唯一的阶段唤醒定时器
func (r *Room) rearmWake(wake *time.Timer) {
	if !wake.Stop() {
		select {
		case <-wake.C:
		default:
		}
	}
	if r.state.Paused || r.state.PhaseEndsAt.IsZero() {
		return
	}
	d := time.Until(r.state.PhaseEndsAt)
	if d < 0 {
		d = 0
	}
	wake.Reset(d)
}

// onWake 阶段到点唤醒。只在确实到点时推进一步，对重复/迟到触发幂等。
func (r *Room) onWake(now time.Time) {
	if r.state.Paused || r.state.PhaseEndsAt.IsZero() || now.Before(r.state.PhaseEndsAt) {
		return
	}
	r.advancePhase(now)
}

// advancePhase 沿 countdown→prep→explore→result 推进一步
func (r *Room) advancePhase(now time.Time) {
	switch r.state.Phase {
	case PhaseCountdown:
		r.setPhase(PhasePrep, r.cfg.Game.PrepDuration(), now)
	case PhasePrep:
		r.lockTargetScore()
		r.setPhase(PhaseExplore, r.cfg.Game.ExploreDuration(), now)
	case PhaseExplore:
		// 时间耗尽，房主胜
		r.finishMatch(RoleOwner, "TIME_UP", now)
	}
}

// lockTargetScore 目标分只计算一次，之后不可变
func (r *Room) lockTargetScore() {
	if r.state.TargetLocked {
		return
	}
	total := 0
	for _, v := range r.state.Points {
		total += v
	}
	target := int(math.Ceil(float64(total) * targetScoreRatio))
	if target < targetScoreMin {
		target = targetScoreMin
	}
	r.state.TargetScore = target
	r.state.TargetLocked = true
}

// handleOwnerStart 房主发起开局：双方到齐后进入倒计时
func (r *Room) handleOwnerStart(sess *Session, now time.Time) error {
	if r.state.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	if !r.bothConnected() {
		return ErrNotReady
	}
	r.setPhase(PhaseCountdown, r.cfg.Game.CountdownDuration(), now)
	r.recorder.MatchStarted(r.Code)
	r.dirty = true
	return nil
}

// finishMatch 进入结算阶段，任何到达路径（达标、终点、超时、逃跑）都走这里
func (r *Room) finishMatch(winner Role, reason string, now time.Time) {
	if r.state.Phase == PhaseResult {
		return
	}
	var duration time.Duration
	if !r.state.PhaseStartedAt.IsZero() {
		duration = now.Sub(r.state.PhaseStartedAt)
	}
	r.state.Winner = winner
	r.state.ResultReason = reason
	r.state.Paused = false
	r.setPhase(PhaseResult, 0, now)
	r.dirty = true

	r.broadcastEvent(protocol.EventResult, map[string]any{
		"winner": winner,
		"reason": reason,
		"score":  r.state.Player.Score,
		"target": r.state.TargetScore,
	})
	if r.bothConnected() {
		r.broadcastEvent(protocol.EventRematchReady, nil)
	}
	r.recorder.MatchFinished(r.Code, winner, r.state.Player.Score, duration)
}

// handleRematch 结算阶段且双方在线才可重赛：互换角色、重新生成迷宫、
// 清空对局资源、回到 lobby
func (r *Room) handleRematch(now time.Time) error {
	if r.state.Phase != PhaseResult {
		return ErrNotInResult
	}
	if !r.bothConnected() {
		return ErrNotReady
	}

	owner := r.state.Sessions[RoleOwner]
	player := r.state.Sessions[RolePlayer]
	owner.Role = RolePlayer
	player.Role = RoleOwner
	r.state.Sessions = map[Role]*Session{
		RoleOwner:  player,
		RolePlayer: owner,
	}

	if err := r.resetMatch(); err != nil {
		return err
	}
	r.log.Info("rematch", zap.String("new_owner", player.Nickname))
	return nil
}

// pauseMatch 对局中掉线：冻结阶段时钟，记录剩余时间
func (r *Room) pauseMatch(now time.Time) {
	if r.state.Paused {
		return
	}
	r.state.Paused = true
	r.state.PausedAt = now
	r.dirty = true
	r.broadcastEvent(protocol.EventPaused, map[string]any{
		"remaining_ms": r.remainingMs(now),
	})
}

// resumeMatch 双方重新到齐：按暂停时长整体平移阶段时钟，剩余时间不变
func (r *Room) resumeMatch(now time.Time) {
	if !r.state.Paused {
		return
	}
	shift := now.Sub(r.state.PausedAt)
	r.state.PhaseStartedAt = r.state.PhaseStartedAt.Add(shift)
	if !r.state.PhaseEndsAt.IsZero() {
		r.state.PhaseEndsAt = r.state.PhaseEndsAt.Add(shift)
	}
	r.state.Paused = false
	r.state.PausedAt = time.Time{}
	r.lastTickAt = now
	r.forceFull = true
	r.broadcastEvent(protocol.EventResumed, map[string]any{
		"remaining_ms": r.remainingMs(now),
	})
}

// remainingMs 当前阶段剩余毫秒数（暂停时按冻结时刻计）
func (r *Room) remainingMs(now time.Time) int64 {
	if r.state.PhaseEndsAt.IsZero() {
		return 0
	}
	ref := now
	if r.state.Paused {
		ref = r.state.PausedAt
	}
	ms := r.state.PhaseEndsAt.Sub(ref).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// inMatch 阶段是否处于对局中（掉线需要暂停而不是销毁会话）
func (r *Room) inMatch() bool {
	switch r.state.Phase {
	case PhaseCountdown, PhasePrep, PhaseExplore:
		return true
	}
	return false
}
