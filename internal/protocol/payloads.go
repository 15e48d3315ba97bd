package protocol

// Cell 迷宫格坐标（瓦片坐标系）
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PlayerInputPayload 玩家移动输入
type PlayerInputPayload struct {
	Turn     float64 `json:"turn"`    // 转向增量 [-1,1]
	Forward  float64 `json:"forward"` // 前进量 [-1,1]
	ClientTS int64   `json:"ts"`      // 客户端毫秒时间戳
}

// OwnerEditPayload 房主编辑操作
type OwnerEditPayload struct {
	Action string `json:"action"` // ADD_WALL / DEL_WALL / PLACE_TRAP / PLACE_POINT
	Cell   Cell   `json:"cell"`
	Value  int    `json:"value,omitempty"` // 仅 PLACE_POINT：点值 1/3/5
}

// OwnerMarkPayload 房主预测标记开关
type OwnerMarkPayload struct {
	Cell Cell `json:"cell"`
}

// PingPayload 心跳
type PingPayload struct {
	ClientTS int64 `json:"ts,omitempty"`
}

// PongPayload 心跳应答，带服务端时钟
type PongPayload struct {
	ClientTS int64 `json:"ts,omitempty"`
	ServerTS int64 `json:"server_ts"`
}

// ErrorPayload 动作级拒绝
type ErrorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventPayload 领域事件，负载结构由事件名决定
type EventPayload struct {
	Name string `json:"name"`
	Data any    `json:"data,omitempty"`
}
