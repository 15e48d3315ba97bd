package room

import "github.com/palemoky/maze-rush/internal/protocol"

// PolicyError 规则拒绝：动作合法但违反策略，状态不变，连接保持
type PolicyError struct {
	Code string
	Data map[string]any
}

func (e *PolicyError) Error() string {
	if msg, ok := protocol.ErrorMessages[e.Code]; ok {
		return msg
	}
	return e.Code
}

// 预定义拒绝
var (
	ErrWrongRole   = &PolicyError{Code: protocol.ErrCodeWrongRole}
	ErrWrongPhase  = &PolicyError{Code: protocol.ErrCodeWrongPhase}
	ErrRoomFull    = &PolicyError{Code: protocol.ErrCodeRoomFull}
	ErrNotInResult = &PolicyError{Code: protocol.ErrCodeNotInResult}
	ErrNotReady    = &PolicyError{Code: protocol.ErrCodeNotReady}

	ErrOutOfStock    = &PolicyError{Code: protocol.ErrCodeOutOfStock}
	ErrOutOfBounds   = &PolicyError{Code: protocol.ErrCodeOutOfBounds}
	ErrForbiddenCell = &PolicyError{Code: protocol.ErrCodeForbiddenCell}
	ErrOccupiedCell  = &PolicyError{Code: protocol.ErrCodeOccupiedCell}
	ErrNoSuchWall    = &PolicyError{Code: protocol.ErrCodeNoSuchWall}
	ErrNoPath        = &PolicyError{Code: protocol.ErrCodeNoPath}
	ErrWindowClosed  = &PolicyError{Code: protocol.ErrCodeWindowClosed}
	ErrTooManyMarks  = &PolicyError{Code: protocol.ErrCodeTooManyMarks}

	ErrInvalidMessage = &PolicyError{Code: protocol.ErrCodeInvalidMessage}
)

// cooldownError 带剩余毫秒数的冷却拒绝
func cooldownError(remainingMs int64) *PolicyError {
	return &PolicyError{
		Code: protocol.ErrCodeCooldown,
		Data: map[string]any{"remaining_ms": remainingMs},
	}
}
