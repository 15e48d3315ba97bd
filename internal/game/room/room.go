// Package room 实现单房间的权威协调器：一个房间一个 actor 协程，
// 独占整份对局状态，仲裁所有变更，驱动物理帧，产出同步流。
package room

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palemoky/maze-rush/internal/config"
	"github.com/palemoky/maze-rush/internal/game/maze"
	"github.com/palemoky/maze-rush/internal/game/physics"
	"github.com/palemoky/maze-rush/internal/game/reach"
	"github.com/palemoky/maze-rush/internal/protocol"
)

// Role 会话角色
type Role string

const (
	RoleOwner  Role = "owner"  // 编辑迷宫的一方
	RolePlayer Role = "player" // 探索迷宫的一方
)

// Valid 角色是否合法
func (r Role) Valid() bool {
	return r == RoleOwner || r == RolePlayer
}

// Phase 对局阶段，除整体重置外严格单向推进
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhasePrep      Phase = "prep"
	PhaseExplore   Phase = "explore"
	PhaseResult    Phase = "result"
)

// PrepStage prep 阶段内互不重叠的三个子窗口
type PrepStage string

const (
	StagePoints PrepStage = "points" // [0, 40/60)
	StageTraps  PrepStage = "traps"  // [40/60, 45/60)
	StageMarks  PrepStage = "marks"  // [45/60, 1)
	StageNone   PrepStage = ""       // 非 prep 阶段
)

// 对局常量
const (
	marksPerWindow     = 3                      // 单窗口预测标记上限
	trapChargesInit    = 3                      // 初始陷阱配额
	removalChargesInit = 1                      // 初始拆墙机会
	editCooldown       = 700 * time.Millisecond // 编辑冷却
	stunDuration       = 1500 * time.Millisecond
	trapScorePenalty   = 1
	maxTickDelta       = 250 * time.Millisecond // 卡顿后单帧位移上限
	pastToleranceMs    = 2000                   // 输入时间戳允许的回退窗口
	futureToleranceMs  = 1000                   // 输入时间戳允许的超前窗口
	targetScoreRatio   = 0.6
	targetScoreMin     = 5
)

// Conn 对局出站通道，由网络层实现。Enqueue 的 coalesce 表示
// 该消息是可被更新的增量补丁，队列里旧的补丁可以直接丢弃。
type Conn interface {
	Enqueue(msg *protocol.Message, coalesce bool) error
	SendImmediate(msg *protocol.Message) error
	Close()
}

// Recorder 对局统计上报，尽力而为，绝不阻塞房间协程
type Recorder interface {
	MatchStarted(roomCode string)
	MatchFinished(roomCode string, winner Role, score int, duration time.Duration)
}

// NopRecorder 空实现
type NopRecorder struct{}

func (NopRecorder) MatchStarted(string)                            {}
func (NopRecorder) MatchFinished(string, Role, int, time.Duration) {}

// Session 角色会话。每角色至多一个，全房至多两个。
type Session struct {
	ID             string
	Nickname       string
	Role           Role
	JoinedAt       time.Time
	LastSeenAt     time.Time
	DisconnectedAt time.Time
	Conn           Conn // nil 表示掉线
}

// Connected 会话当前是否在线
func (s *Session) Connected() bool {
	return s != nil && s.Conn != nil
}

// PlayerState 玩家运动与得分
type PlayerState struct {
	Body         physics.Body
	Input        physics.Input
	LastInputTS  int64 // 已接受的最新输入时间戳（客户端毫秒）
	Score        int
	StunnedUntil time.Time
}

// OwnerResources 房主资源池
type OwnerResources struct {
	WallStock      int
	RemovalCharges int
	TrapCharges    int
	CooldownUntil  time.Time
}

// State 整份房间状态，仅由房间 actor 读写
type State struct {
	Phase          Phase
	PhaseStartedAt time.Time
	PhaseEndsAt    time.Time // 零值表示该阶段无时限

	Paused   bool
	PausedAt time.Time

	Sessions map[Role]*Session

	Maze   *maze.Maze
	Walls  map[maze.Cell]bool      // 房主加的墙（派生实心集，独立于基础图）
	Carved map[maze.Cell]bool      // 房主拆掉的基础墙
	Points map[maze.Cell]int       // 分数点 → 点值
	Traps  map[maze.Cell]time.Time // 陷阱 → 放置时间
	Marks  map[maze.Cell]time.Time // 预测标记 → 创建时间

	Player PlayerState
	Owner  OwnerResources

	TargetScore  int
	TargetLocked bool // 只计算一次，锁定后不可变

	Winner       Role // 结算前为空
	ResultReason string
}

// solidAt 合成实心判定：基础墙（除被拆的）+ 房主墙
func (st *State) solidAt(x, y int) bool {
	c := maze.Cell{X: x, Y: y}
	if st.Walls[c] {
		return true
	}
	return st.Maze.IsSolid(x, y) && !st.Carved[c]
}

// playerCell 玩家圆心所在瓦片
func (st *State) playerCell() maze.Cell {
	return maze.Cell{
		X: int(st.Player.Body.Pos.X),
		Y: int(st.Player.Body.Pos.Y),
	}
}

// Room 房间协调器。所有变更都经由 inbox 汇入单协程处理，无内部锁。
type Room struct {
	Code string

	cfg      *config.Config
	log      *zap.Logger
	recorder Recorder
	newID    func() string // 注入的会话 ID 生成器
	rng      *rand.Rand
	now      func() time.Time

	state     State
	validator *reach.Validator
	composer  *Composer
	deck      *rewardDeck
	params    physics.Params

	lastTickAt time.Time
	dirty      bool // 本轮处理产生了需要同步的变更
	forceFull  bool // 下一条同步消息必须是全量快照

	inbox chan command
	quit  chan struct{}

	// 供房间清理协程无锁查询
	sessionCount atomic.Int32
	lastActiveAt atomic.Int64
}

// Options 房间构造参数
type Options struct {
	Code     string
	Config   *config.Config
	Logger   *zap.Logger
	Recorder Recorder
	Seed     int64         // 0 则取当前时间
	NewID    func() string // nil 则使用 uuid
}

// New 创建房间并生成首局迷宫
func New(opts Options) (*Room, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	r := &Room{
		Code:      opts.Code,
		cfg:       opts.Config,
		log:       opts.Logger.With(zap.String("room", opts.Code)),
		recorder:  opts.Recorder,
		newID:     opts.NewID,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		now:       time.Now,
		validator: reach.New(),
		composer:  NewComposer(),
		params:    physics.DefaultParams(),
		inbox:     make(chan command, 256),
		quit:      make(chan struct{}),
	}
	r.deck = newRewardDeck(r.rng)

	if err := r.resetMatch(); err != nil {
		return nil, err
	}
	r.state.Sessions = make(map[Role]*Session)
	r.state.Phase = PhaseLobby
	r.lastActiveAt.Store(time.Now().UnixMilli())
	return r, nil
}

// resetMatch 重新生成迷宫并清空所有对局资源，阶段回到 lobby
func (r *Room) resetMatch() error {
	m, err := maze.Generate(r.cfg.Game.MazeCells, r.cfg.Game.MinPathFactor, r.rng.Int63())
	if err != nil {
		return err
	}

	sessions := r.state.Sessions
	r.state = State{
		Phase:    PhaseLobby,
		Sessions: sessions,
		Maze:     m,
		Walls:    make(map[maze.Cell]bool),
		Carved:   make(map[maze.Cell]bool),
		Points:   make(map[maze.Cell]int),
		Traps:    make(map[maze.Cell]time.Time),
		Marks:    make(map[maze.Cell]time.Time),
		Player: PlayerState{
			Body: physics.Body{
				Pos: physics.Vec{
					X: float64(m.Start.X) + 0.5,
					Y: float64(m.Start.Y) + 0.5,
				},
			},
		},
		Owner: OwnerResources{
			WallStock:      r.cfg.Game.MazeCells,
			RemovalCharges: removalChargesInit,
			TrapCharges:    trapChargesInit,
		},
	}
	r.validator = reach.New()
	r.deck = newRewardDeck(r.rng)
	r.forceFull = true
	r.dirty = true
	return nil
}

// SessionCount 在线会话数（清理协程用）
func (r *Room) SessionCount() int {
	return int(r.sessionCount.Load())
}

// LastActiveAt 最近一次活动时间（清理协程用）
func (r *Room) LastActiveAt() time.Time {
	return time.UnixMilli(r.lastActiveAt.Load())
}

// session 按连接反查会话
func (r *Room) session(conn Conn) *Session {
	for _, s := range r.state.Sessions {
		if s.Conn == conn && conn != nil {
			return s
		}
	}
	return nil
}

// other 另一角色
func other(role Role) Role {
	if role == RoleOwner {
		return RolePlayer
	}
	return RoleOwner
}

// bothConnected 双方是否都在线
func (r *Room) bothConnected() bool {
	return r.state.Sessions[RoleOwner].Connected() &&
		r.state.Sessions[RolePlayer].Connected()
}

// updateCounters 维护给清理协程看的计数
func (r *Room) updateCounters(now time.Time) {
	r.sessionCount.Store(int32(len(r.state.Sessions)))
	r.lastActiveAt.Store(now.UnixMilli())
}
