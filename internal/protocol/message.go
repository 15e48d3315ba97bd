package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	MsgPing MessageType = "ping" // 心跳 ping

	MsgPlayerInput MessageType = "player_input" // 玩家移动输入

	MsgOwnerEdit    MessageType = "owner_edit"    // 房主编辑（加墙/拆墙/放陷阱/放分数点）
	MsgOwnerMark    MessageType = "owner_mark"    // 房主预测标记（开关）
	MsgOwnerConfirm MessageType = "owner_confirm" // 房主确认当前子阶段布置
	MsgOwnerCancel  MessageType = "owner_cancel"  // 房主撤销当前子阶段布置
	MsgOwnerStart   MessageType = "owner_start"   // 房主发起开局
)

// 服务端 → 客户端 消息类型
const (
	MsgState MessageType = "STATE" // 全量快照或增量补丁
	MsgEvent MessageType = "EV"    // 领域事件
	MsgErr   MessageType = "ERR"   // 可恢复的动作级拒绝
	MsgFatal MessageType = "ERROR" // 致命错误，随后立即断开
	MsgPong  MessageType = "PONG"  // 心跳应答
)

// 编辑动作
const (
	EditAddWall    = "ADD_WALL"
	EditDelWall    = "DEL_WALL"
	EditPlaceTrap  = "PLACE_TRAP"
	EditPlacePoint = "PLACE_POINT"
)

// 事件名
const (
	EventInputEcho    = "INPUT_ECHO"    // 输入回显
	EventEditEcho     = "EDIT_ECHO"     // 编辑回显
	EventMarkHit      = "MARK_HIT"      // 预测命中
	EventTrapHit      = "TRAP_HIT"      // 陷阱触发
	EventPointTaken   = "POINT_TAKEN"   // 分数点拾取
	EventPaused       = "PAUSED"        // 对局暂停
	EventResumed      = "RESUMED"       // 对局恢复
	EventRematchReady = "REMATCH_READY" // 可以重赛
	EventResult       = "RESULT"        // 对局结束
)
