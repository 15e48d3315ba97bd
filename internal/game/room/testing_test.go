package room

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/palemoky/maze-rush/internal/config"
	"github.com/palemoky/maze-rush/internal/game/maze"
	"github.com/palemoky/maze-rush/internal/game/physics"
	"github.com/palemoky/maze-rush/internal/game/reach"
	"github.com/palemoky/maze-rush/internal/protocol"
)

// FakeConn 记录所有出站消息的测试连接
type FakeConn struct {
	mu        sync.Mutex
	Queued    []*protocol.Message
	Immediate []*protocol.Message
	Closed    bool
}

func (c *FakeConn) Enqueue(msg *protocol.Message, coalesce bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queued = append(c.Queued, msg)
	return nil
}

func (c *FakeConn) SendImmediate(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Immediate = append(c.Immediate, msg)
	return nil
}

func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
}

// LastEvent 返回最近一条指定名字的领域事件载荷，没有则返回 nil
func (c *FakeConn) LastEvent(name string) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.Queued) - 1; i >= 0; i-- {
		if c.Queued[i].Type != protocol.MsgEvent {
			continue
		}
		var payload protocol.EventPayload
		if err := json.Unmarshal(c.Queued[i].Payload, &payload); err != nil {
			continue
		}
		if payload.Name == name {
			if data, ok := payload.Data.(map[string]any); ok {
				return data
			}
			return map[string]any{}
		}
	}
	return nil
}

// Errors 返回所有 ERR 消息的错误码
func (c *FakeConn) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var codes []string
	for _, msg := range c.Queued {
		if msg.Type != protocol.MsgErr {
			continue
		}
		var payload protocol.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			codes = append(codes, payload.Code)
		}
	}
	return codes
}

// newTestRoom 固定种子与顺序会话 ID 的房间，便于确定性断言
func newTestRoom() *Room {
	n := 0
	r, err := New(Options{
		Code:   "TEST01",
		Config: config.Default(),
		Seed:   42,
		NewID:  func() string { n++; return fmt.Sprintf("sess-%d", n) },
	})
	if err != nil {
		panic(err)
	}
	return r
}

// corridorMaze 手工直廊迷宫：只有 (1,1)(2,1)(3,1) 三格通行，
// 起点 (1,1)、终点 (3,1)，中间格是唯一通路
func corridorMaze() *maze.Maze {
	const size = 5
	m := &maze.Maze{
		Cells:   2,
		Size:    size,
		Solid:   make([]bool, size*size),
		Start:   maze.Cell{X: 1, Y: 1},
		Goal:    maze.Cell{X: 3, Y: 1},
		PathLen: 2,
	}
	for i := range m.Solid {
		m.Solid[i] = true
	}
	for x := 1; x <= 3; x++ {
		m.Solid[1*size+x] = false
	}
	return m
}

// useCorridor 把房间换到直廊迷宫上，玩家站在起点格中心
func (r *Room) useCorridor() {
	m := corridorMaze()
	r.state.Maze = m
	r.state.Player.Body = physics.Body{
		Pos: physics.Vec{X: float64(m.Start.X) + 0.5, Y: float64(m.Start.Y) + 0.5},
	}
	r.validator = reach.New()
}
