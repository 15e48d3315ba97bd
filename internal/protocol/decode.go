package protocol

import "errors"

// ErrEmptyType 消息缺少 type 字段
var ErrEmptyType = errors.New("protocol: message has empty type")
