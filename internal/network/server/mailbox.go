package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/config"
	"github.com/palemoky/maze-rush/internal/protocol"
)

var (
	// ErrMailboxClosed 邮箱已关闭，消息被丢弃
	ErrMailboxClosed = errors.New("mailbox: closed")
	// ErrMailboxFull 出站队列满，对端消费过慢
	ErrMailboxFull = errors.New("mailbox: queue full")
	// ErrMessageTooLarge 编码后超出单条大小上限
	ErrMessageTooLarge = errors.New("mailbox: message too large")
)

// frame 一条待发送的已编码消息
type frame struct {
	data      []byte
	coalesce  bool // 增量补丁，可被更新的补丁顶掉
	immediate bool // 插队且不受最小发送间隔约束
}

// Mailbox 单连接出站队列。独占 WebSocket 写端，自带发送协程：
// 增量补丁只保留最新一条，全量与事件按序排队，发送间隔有下限，
// 队列溢出或写失败即整体关闭并丢弃积压。
type Mailbox struct {
	conn *websocket.Conn
	log  *zap.Logger

	depth        int
	sendInterval time.Duration
	maxBytes     int

	mu     sync.Mutex
	queue  []frame
	kick   chan struct{}
	done   chan struct{}
	closed bool
}

// NewMailbox 创建邮箱并启动发送协程
func NewMailbox(conn *websocket.Conn, limits config.LimitsConfig, log *zap.Logger) *Mailbox {
	m := &Mailbox{
		conn:         conn,
		log:          log,
		depth:        limits.MailboxDepth,
		sendInterval: limits.SendInterval(),
		maxBytes:     limits.MaxMessageBytes,
		kick:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go m.pump()
	return m
}

// Enqueue 排队一条消息。coalesce 为真时丢弃队列里尚未发出的增量
// 补丁，新补丁排到队尾，保证与全量快照的相对顺序。
func (m *Mailbox) Enqueue(msg *protocol.Message, coalesce bool) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if len(data) > m.maxBytes {
		return ErrMessageTooLarge
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	if coalesce {
		// 旧补丁作废出队，新补丁排到队尾：不能原地顶替，否则会
		// 越过中间排队的全量快照，序号在线上乱序
		for i := len(m.queue) - 1; i >= 0; i-- {
			if m.queue[i].coalesce {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				break
			}
		}
	}
	if len(m.queue) >= m.depth {
		m.mu.Unlock()
		// 消费端跟不上，硬错误并整体关闭
		m.Close()
		return ErrMailboxFull
	}
	m.queue = append(m.queue, frame{data: data, coalesce: coalesce})
	m.mu.Unlock()
	m.wake()
	return nil
}

// SendImmediate 越过排队消息且不受发送间隔约束（PONG、致命 ERROR）
func (m *Mailbox) SendImmediate(msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if len(data) > m.maxBytes {
		return ErrMessageTooLarge
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.queue = append([]frame{{data: data, immediate: true}}, m.queue...)
	m.mu.Unlock()
	m.wake()
	return nil
}

// Close 关闭邮箱并丢弃所有积压消息。可重复调用。
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
	m.mu.Unlock()

	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = m.conn.Close()
}

func (m *Mailbox) wake() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// pump 发送协程：补丁之间保持最小间隔。等待期间消息留在队列里，
// 新补丁仍可顶掉旧补丁，插队消息到达会立即中断等待。写失败即关闭。
func (m *Mailbox) pump() {
	var nextAllowed time.Time

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.kick:
				continue
			case <-m.done:
				return
			}
		}

		if !m.queue[0].immediate {
			if wait := time.Until(nextAllowed); wait > 0 {
				m.mu.Unlock()
				select {
				case <-time.After(wait):
				case <-m.kick:
				case <-m.done:
					return
				}
				continue
			}
		}
		f := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		_ = m.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := m.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
			m.log.Debug("write failed, closing mailbox", zap.Error(err))
			m.Close()
			return
		}
		if !f.immediate {
			nextAllowed = time.Now().Add(m.sendInterval)
		}
	}
}
