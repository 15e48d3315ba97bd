package room

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/protocol"
)

// command 汇入房间协程的封闭命令集
type command interface{ isCommand() }

type joinCmd struct {
	conn     Conn
	role     Role
	nickname string
	reply    chan error
}

type leaveCmd struct {
	conn Conn
}

type msgCmd struct {
	conn Conn
	msg  *protocol.Message
}

type rematchCmd struct {
	reply chan error
}

func (joinCmd) isCommand()    {}
func (leaveCmd) isCommand()   {}
func (msgCmd) isCommand()     {}
func (rematchCmd) isCommand() {}

// ErrRoomClosed 房间已停止
var ErrRoomClosed = errors.New("room: closed")

// Run 房间主循环。运行时保证同一时刻至多一个处理在途：
// 消息、物理帧、阶段唤醒全部串行经过这里，状态无需加锁。
func (r *Room) Run() {
	ticker := time.NewTicker(r.cfg.Game.TickInterval())
	defer ticker.Stop()

	// 单一阶段唤醒定时器，每次转移都从权威截止时间重算
	wake := time.NewTimer(time.Hour)
	if !wake.Stop() {
		<-wake.C
	}
	defer wake.Stop()
	r.rearmWake(wake)

	r.lastTickAt = r.now()

	for {
		select {
		case cmd := <-r.inbox:
			now := r.now()
			r.dispatch(cmd, now)
			r.rearmWake(wake)
			r.flushSync()
		case <-ticker.C:
			now := r.now()
			r.tick(now)
			r.rearmWake(wake)
			r.flushSync()
		case <-wake.C:
			now := r.now()
			r.onWake(now)
			r.rearmWake(wake)
			r.flushSync()
		case <-r.quit:
			r.closeAll()
			return
		}
	}
}

// Stop 停止房间并断开所有连接
func (r *Room) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
}

// Join 绑定一个新连接到会话（带外加入握手）。阻塞到房间协程应答。
func (r *Room) Join(conn Conn, role Role, nickname string) error {
	cmd := joinCmd{conn: conn, role: role, nickname: nickname, reply: make(chan error, 1)}
	select {
	case r.inbox <- cmd:
	case <-r.quit:
		return ErrRoomClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-r.quit:
		return ErrRoomClosed
	}
}

// Deliver 投递一条已解码的入站消息。同一连接的消息保持到达顺序。
func (r *Room) Deliver(conn Conn, msg *protocol.Message) {
	select {
	case r.inbox <- msgCmd{conn: conn, msg: msg}:
	case <-r.quit:
	}
}

// Disconnect 通知连接已断开
func (r *Room) Disconnect(conn Conn) {
	select {
	case r.inbox <- leaveCmd{conn: conn}:
	case <-r.quit:
	}
}

// RequestRematch 请求角色互换重开一局（HTTP 侧调用）
func (r *Room) RequestRematch() error {
	cmd := rematchCmd{reply: make(chan error, 1)}
	select {
	case r.inbox <- cmd:
	case <-r.quit:
		return ErrRoomClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-r.quit:
		return ErrRoomClosed
	}
}

// dispatch 处理一条命令。处理单个连接事件时的意外 panic 只打死
// 该连接（致命 ERROR 后关闭），房间继续服务另一方。
func (r *Room) dispatch(cmd command, now time.Time) {
	switch c := cmd.(type) {
	case joinCmd:
		c.reply <- r.handleJoin(c.conn, c.role, c.nickname, now)
		r.updateCounters(now)
	case leaveCmd:
		r.handleDisconnect(c.conn, now)
		r.updateCounters(now)
	case msgCmd:
		r.handleMessage(c.conn, c.msg, now)
	case rematchCmd:
		c.reply <- r.handleRematch(now)
	default:
		// command 是封闭集合，到这里说明新增命令漏了分支
		panic("room: unhandled command type")
	}
}

// handleMessage 校验来源角色并按消息类型路由
func (r *Room) handleMessage(conn Conn, msg *protocol.Message, now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic handling message",
				zap.Any("panic", rec),
				zap.String("type", string(msg.Type)),
			)
			_ = conn.SendImmediate(protocol.NewFatalMessage(protocol.ErrCodeInternal))
			conn.Close()
			r.handleDisconnect(conn, now)
		}
	}()

	sess := r.session(conn)
	if sess == nil {
		// 未完成加入握手的连接不允许发消息
		_ = conn.SendImmediate(protocol.NewFatalMessage(protocol.ErrCodeInvalidMessage))
		conn.Close()
		return
	}
	sess.LastSeenAt = now
	r.lastActiveAt.Store(now.UnixMilli())

	var err error
	switch msg.Type {
	case protocol.MsgPing:
		r.handlePing(sess, msg, now)

	case protocol.MsgPlayerInput:
		if sess.Role != RolePlayer {
			err = ErrWrongRole
			break
		}
		err = r.handlePlayerInput(sess, msg, now)

	case protocol.MsgOwnerEdit, protocol.MsgOwnerMark,
		protocol.MsgOwnerConfirm, protocol.MsgOwnerCancel, protocol.MsgOwnerStart:
		if sess.Role != RoleOwner {
			err = ErrWrongRole
			break
		}
		switch msg.Type {
		case protocol.MsgOwnerEdit:
			err = r.handleOwnerEdit(sess, msg, now)
		case protocol.MsgOwnerMark:
			err = r.handleOwnerMark(sess, msg, now)
		case protocol.MsgOwnerConfirm:
			err = r.handleOwnerConfirm(sess, now)
		case protocol.MsgOwnerCancel:
			err = r.handleOwnerCancel(sess, now)
		case protocol.MsgOwnerStart:
			err = r.handleOwnerStart(sess, now)
		}

	default:
		err = ErrInvalidMessage
	}

	if err != nil {
		r.sendReject(sess, err)
	}
}

// sendReject 把错误转成非致命 ERR 下发给动作发起方
func (r *Room) sendReject(sess *Session, err error) {
	var policy *PolicyError
	if !errors.As(err, &policy) {
		policy = &PolicyError{Code: protocol.ErrCodeUnknown}
	}
	var msg *protocol.Message
	if policy.Data != nil {
		msg = protocol.NewErrorMessageWithData(policy.Code, policy.Data)
	} else {
		msg = protocol.NewErrorMessage(policy.Code)
	}
	if sess.Connected() {
		_ = sess.Conn.Enqueue(msg, false)
	}
}

// handlePing 心跳应答，直接走快速通道
func (r *Room) handlePing(sess *Session, msg *protocol.Message, now time.Time) {
	var clientTS int64
	if payload, err := protocol.ParsePayload[protocol.PingPayload](msg); err == nil {
		clientTS = payload.ClientTS
	}
	if sess.Connected() {
		_ = sess.Conn.SendImmediate(protocol.NewPongMessage(clientTS, now))
	}
}

// emitEvent 给单个会话发领域事件
func (r *Room) emitEvent(sess *Session, name string, data any) {
	if sess.Connected() {
		_ = sess.Conn.Enqueue(protocol.NewEventMessage(name, data), false)
	}
}

// broadcastEvent 给双方发领域事件
func (r *Room) broadcastEvent(name string, data any) {
	for _, sess := range r.state.Sessions {
		r.emitEvent(sess, name, data)
	}
}

// flushSync 本轮有变更时产出同步消息并广播。
// 全量快照不可合并，增量补丁允许被队列里更新的补丁顶掉。
func (r *Room) flushSync() {
	if !r.dirty && !r.forceFull {
		return
	}
	snap := r.composer.Compose(&r.state, r.forceFull)
	r.dirty = false
	r.forceFull = false
	if snap == nil {
		return
	}

	msg := protocol.MustNewMessage(protocol.MsgState, snap)
	for _, sess := range r.state.Sessions {
		if !sess.Connected() {
			continue
		}
		if err := sess.Conn.Enqueue(msg, !snap.Full); err != nil {
			r.log.Warn("enqueue state failed",
				zap.String("session", sess.ID),
				zap.Error(err),
			)
		}
	}
}

// closeAll 停房时断开所有连接
func (r *Room) closeAll() {
	for _, sess := range r.state.Sessions {
		if sess.Connected() {
			sess.Conn.Close()
		}
	}
}
