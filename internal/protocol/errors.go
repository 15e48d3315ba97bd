package protocol

// 错误码
const (
	ErrCodeUnknown        = "UNKNOWN"
	ErrCodeInvalidMessage = "INVALID_MESSAGE" // 消息格式不合法
	ErrCodeRateLimited    = "RATE_LIMITED"    // 消息过于频繁
	ErrCodeInternal       = "INTERNAL"        // 服务端内部错误（致命）

	ErrCodeWrongRole   = "WRONG_ROLE"    // 消息与会话角色不符
	ErrCodeWrongPhase  = "WRONG_PHASE"   // 当前阶段不允许该操作
	ErrCodeRoomFull    = "ROOM_FULL"     // 角色已被占用
	ErrCodeNotInResult = "NOT_IN_RESULT" // 只有结算阶段才能重赛
	ErrCodeNotReady    = "NOT_READY"     // 双方未到齐

	ErrCodeCooldown      = "COOLDOWN"       // 编辑冷却中
	ErrCodeOutOfStock    = "OUT_OF_STOCK"   // 资源耗尽
	ErrCodeOutOfBounds   = "OUT_OF_BOUNDS"  // 目标格越界
	ErrCodeForbiddenCell = "FORBIDDEN_CELL" // 禁区（起点/终点/玩家所在格等）
	ErrCodeOccupiedCell  = "OCCUPIED_CELL"  // 目标格已被占用
	ErrCodeNoSuchWall    = "NO_SUCH_WALL"   // 目标格没有可拆的墙
	ErrCodeNoPath        = "NO_PATH"        // 加墙会切断玩家到终点的路径
	ErrCodeWindowClosed  = "WINDOW_CLOSED"  // 子阶段窗口已关闭
	ErrCodeTooManyMarks  = "TOO_MANY_MARKS" // 预测标记超出上限

	ErrCodeInputTimestampPast   = "INPUT_TIMESTAMP_PAST"   // 输入时间戳过旧（重放）
	ErrCodeInputTimestampFuture = "INPUT_TIMESTAMP_FUTURE" // 输入时间戳超前
)

// ErrorMessages 错误码对应的默认提示
var ErrorMessages = map[string]string{
	ErrCodeUnknown:        "未知错误",
	ErrCodeInvalidMessage: "无效的消息格式",
	ErrCodeRateLimited:    "请求过于频繁",
	ErrCodeInternal:       "服务端内部错误",

	ErrCodeWrongRole:   "当前角色不能执行该操作",
	ErrCodeWrongPhase:  "当前阶段不允许该操作",
	ErrCodeRoomFull:    "该角色已被占用",
	ErrCodeNotInResult: "只有结算阶段才能重赛",
	ErrCodeNotReady:    "双方玩家未到齐",

	ErrCodeCooldown:      "编辑冷却中",
	ErrCodeOutOfStock:    "资源已耗尽",
	ErrCodeOutOfBounds:   "目标格越界",
	ErrCodeForbiddenCell: "该格不允许放置",
	ErrCodeOccupiedCell:  "该格已被占用",
	ErrCodeNoSuchWall:    "该格没有可拆的墙",
	ErrCodeNoPath:        "会切断玩家到终点的路径",
	ErrCodeWindowClosed:  "该布置窗口已关闭",
	ErrCodeTooManyMarks:  "预测标记已达上限",

	ErrCodeInputTimestampPast:   "输入时间戳过旧",
	ErrCodeInputTimestampFuture: "输入时间戳超前",
}
