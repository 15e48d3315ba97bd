package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/game/room"
	"github.com/palemoky/maze-rush/internal/protocol"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 连续超速多少次后断开
	rateKickThreshold = 5
)

// Client 一条已升级的玩家连接，读端解码入站消息投递给房间，
// 写端完全由邮箱接管。实现 room.Conn。
type Client struct {
	ID string

	conn    *websocket.Conn
	mailbox *Mailbox
	room    *room.Room
	limiter *MessageRateLimiter
	log     *zap.Logger

	closeOnce sync.Once
}

// NewClient 包装一条升级完成的连接
func NewClient(conn *websocket.Conn, r *room.Room, mailbox *Mailbox, limiter *MessageRateLimiter, log *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		ID:      id,
		conn:    conn,
		mailbox: mailbox,
		room:    r,
		limiter: limiter,
		log:     log.With(zap.String("conn", id)),
	}
}

// Enqueue 实现 room.Conn
func (c *Client) Enqueue(msg *protocol.Message, coalesce bool) error {
	return c.mailbox.Enqueue(msg, coalesce)
}

// SendImmediate 实现 room.Conn
func (c *Client) SendImmediate(msg *protocol.Message) error {
	return c.mailbox.SendImmediate(msg)
}

// Close 实现 room.Conn，关闭邮箱即关闭底层连接
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.limiter.RemoveClient(c.ID)
		c.mailbox.Close()
	})
}

// ReadPump 连接读循环。返回即通知房间断开。
func (c *Client) ReadPump() {
	defer func() {
		c.room.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(int64(c.mailbox.maxBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("read error", zap.Error(err))
			}
			return
		}

		allowed, warning := c.limiter.AllowMessage(c.ID)
		if !allowed {
			_ = c.SendImmediate(protocol.NewErrorMessage(protocol.ErrCodeRateLimited))
			if c.limiter.WarningCount(c.ID) > rateKickThreshold {
				c.log.Warn("kicked for flooding")
				return
			}
			continue
		}
		if warning {
			_ = c.Enqueue(protocol.NewErrorMessage(protocol.ErrCodeRateLimited), false)
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			_ = c.Enqueue(protocol.NewErrorMessage(protocol.ErrCodeInvalidMessage), false)
			continue
		}

		c.room.Deliver(c, msg)
	}
}

// pingLoop 协议层 ping，保持 NAT 映射与读超时刷新
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.mailbox.done:
			return
		}
	}
}
