package room

import (
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/protocol"
)

// handleJoin 加入握手。不变式：每角色至多一个会话，全房至多两个。
// 对局中同角色重新接入按断线重连处理。
func (r *Room) handleJoin(conn Conn, role Role, nickname string, now time.Time) error {
	if !role.Valid() {
		return ErrInvalidMessage
	}

	if existing := r.state.Sessions[role]; existing != nil {
		if existing.Connected() {
			return ErrRoomFull
		}
		// 断线重连：沿用原会话
		existing.Conn = conn
		existing.LastSeenAt = now
		existing.DisconnectedAt = time.Time{}
		if nickname != "" {
			existing.Nickname = nickname
		}
		r.log.Info("session reconnected",
			zap.String("session", existing.ID),
			zap.String("role", string(role)),
		)
		if r.state.Paused && r.bothConnected() {
			r.resumeMatch(now)
		}
		if r.state.Phase == PhaseResult && r.bothConnected() {
			r.broadcastEvent(protocol.EventRematchReady, nil)
		}
		r.forceFull = true
		return nil
	}

	// 全新会话只在 lobby 接受
	if r.state.Phase != PhaseLobby {
		return ErrWrongPhase
	}

	sess := &Session{
		ID:         r.newID(),
		Nickname:   nickname,
		Role:       role,
		JoinedAt:   now,
		LastSeenAt: now,
		Conn:       conn,
	}
	r.state.Sessions[role] = sess
	r.log.Info("session joined",
		zap.String("session", sess.ID),
		zap.String("role", string(role)),
		zap.String("nickname", nickname),
	)
	r.forceFull = true
	return nil
}

// handleDisconnect 连接断开：对局中暂停等待重连，否则直接销毁会话
func (r *Room) handleDisconnect(conn Conn, now time.Time) {
	sess := r.session(conn)
	if sess == nil {
		return
	}
	sess.Conn = nil
	sess.DisconnectedAt = now
	r.log.Info("session disconnected",
		zap.String("session", sess.ID),
		zap.String("role", string(sess.Role)),
	)

	if r.inMatch() {
		r.pauseMatch(now)
	} else {
		delete(r.state.Sessions, sess.Role)
	}
	r.dirty = true
}

// expireSessions 在 tick 内统一评估掉线与心跳超时，避免与单写者模型竞态
func (r *Room) expireSessions(now time.Time) {
	for role, sess := range r.state.Sessions {
		if sess.Connected() {
			// 心跳超时：当作掉线处理
			if now.Sub(sess.LastSeenAt) > r.cfg.Game.HeartbeatTimeout() {
				r.log.Warn("heartbeat timeout",
					zap.String("session", sess.ID),
					zap.String("role", string(role)),
				)
				sess.Conn.Close()
				r.handleDisconnect(sess.Conn, now)
			}
			continue
		}

		// 掉线超过等待时限
		if now.Sub(sess.DisconnectedAt) > r.cfg.Game.DisconnectTimeout() {
			delete(r.state.Sessions, role)
			r.dirty = true
			if r.inMatch() {
				// 对局作废，留下的一方获胜
				r.finishMatch(other(role), "OPPONENT_LEFT", now)
			}
		}
	}
	r.updateCounters(now)
}
