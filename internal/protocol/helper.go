package protocol

import (
	"encoding/json"
	"time"
)

// NewMessage 创建一个新消息
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Type:    msgType,
		Payload: data,
	}, nil
}

// MustNewMessage 创建消息，失败时 panic
func MustNewMessage(msgType MessageType, payload any) *Message {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Encode 将消息编码为 JSON 字节
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode 从 JSON 字节解码消息
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrEmptyType
	}
	return &msg, nil
}

// ParsePayload 解析消息的 Payload 到指定类型
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// NewErrorMessage 创建拒绝消息
func NewErrorMessage(code string) *Message {
	return MustNewMessage(MsgErr, ErrorPayload{
		Code:    code,
		Message: ErrorMessages[code],
	})
}

// NewErrorMessageWithData 创建带附加数据的拒绝消息
func NewErrorMessageWithData(code string, data map[string]any) *Message {
	return MustNewMessage(MsgErr, ErrorPayload{
		Code:    code,
		Message: ErrorMessages[code],
		Data:    data,
	})
}

// NewFatalMessage 创建致命错误消息，发送后连接应立即关闭
func NewFatalMessage(code string) *Message {
	return MustNewMessage(MsgFatal, ErrorPayload{
		Code:    code,
		Message: ErrorMessages[code],
	})
}

// NewEventMessage 创建领域事件消息
func NewEventMessage(name string, data any) *Message {
	return MustNewMessage(MsgEvent, EventPayload{Name: name, Data: data})
}

// NewPongMessage 创建心跳应答
func NewPongMessage(clientTS int64, now time.Time) *Message {
	return MustNewMessage(MsgPong, PongPayload{
		ClientTS: clientTS,
		ServerTS: now.UnixMilli(),
	})
}
