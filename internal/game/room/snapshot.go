package room

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/palemoky/maze-rush/internal/game/maze"
	"github.com/palemoky/maze-rush/internal/game/physics"
)

// Snapshot 同步流的一条消息：全量快照或顶层分节的增量补丁。
// 增量只携带与上一条快照相比发生变化的分节。
type Snapshot struct {
	Seq  uint64 `json:"seq"`
	Full bool   `json:"full"`

	Scalars  *ScalarsSection `json:"scalars,omitempty"`
	Maze     *MazeSection    `json:"maze,omitempty"`
	Sessions *[]SessionView  `json:"sessions,omitempty"`
	Player   *PlayerSection  `json:"player,omitempty"`
	Owner    *OwnerSection   `json:"owner,omitempty"`
}

// ScalarsSection 标量分节。只放随变更移动的绝对时间戳，
// 不放随墙钟流逝的派生值，否则无变更的重组也会产生补丁。
type ScalarsSection struct {
	Phase          Phase  `json:"phase"`
	PhaseStartedAt int64  `json:"phase_started_at"` // unix 毫秒，0 表示未设
	PhaseEndsAt    int64  `json:"phase_ends_at"`
	Paused         bool   `json:"paused"`
	PausedAt       int64  `json:"paused_at,omitempty"`
	TargetScore    int    `json:"target_score"`
	TargetLocked   bool   `json:"target_locked"`
	Winner         Role   `json:"winner,omitempty"`
	ResultReason   string `json:"result_reason,omitempty"`
}

// MazeSection 基础迷宫，每局不变；行编码为 '0'/'1' 字符串
type MazeSection struct {
	Cells   int       `json:"cells"`
	Size    int       `json:"size"`
	Rows    []string  `json:"rows"`
	Start   maze.Cell `json:"start"`
	Goal    maze.Cell `json:"goal"`
	PathLen int       `json:"path_len"`
}

// SessionView 会话视图
type SessionView struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Role      Role   `json:"role"`
	Connected bool   `json:"connected"`
}

// PlayerSection 玩家分节
type PlayerSection struct {
	Pos          physics.Vec `json:"pos"`
	Heading      float64     `json:"heading"`
	Vel          physics.Vec `json:"vel"`
	Score        int         `json:"score"`
	StunnedUntil int64       `json:"stunned_until,omitempty"` // unix 毫秒
	LastInputTS  int64       `json:"last_input_ts,omitempty"`
}

// PointView 分数点视图
type PointView struct {
	Cell  maze.Cell `json:"cell"`
	Value int       `json:"value"`
}

// OwnerSection 房主分节：已加的墙、拆掉的基础墙、陷阱、分数点、
// 预测标记与资源池
type OwnerSection struct {
	Walls  []maze.Cell `json:"walls"`
	Carved []maze.Cell `json:"carved"`
	Points []PointView `json:"points"`
	Traps  []maze.Cell `json:"traps"`
	Marks  []maze.Cell `json:"marks"`

	WallStock      int   `json:"wall_stock"`
	RemovalCharges int   `json:"removal_charges"`
	TrapCharges    int   `json:"trap_charges"`
	CooldownUntil  int64 `json:"cooldown_until,omitempty"` // unix 毫秒
}

// Composer 保留上一条已发出的全量快照，产出全量或分节级增量。
// 快照内数组全部按坐标/会话 ID 排序，逻辑相等的状态 diff 为空。
type Composer struct {
	seq  uint64
	last *composed
}

// composed 组好的全部分节
type composed struct {
	scalars  ScalarsSection
	maze     MazeSection
	sessions []SessionView
	player   PlayerSection
	owner    OwnerSection
}

// NewComposer 创建同步器
func NewComposer() *Composer {
	return &Composer{}
}

// Compose 产出一条同步消息。首次或 forceFull 时发全量；
// 否则只带变化的分节；完全无变化时返回 nil（整条消息抑制）。
func (c *Composer) Compose(st *State, forceFull bool) *Snapshot {
	cur := build(st)

	if c.last == nil || forceFull {
		c.last = cur
		c.seq++
		return &Snapshot{
			Seq:      c.seq,
			Full:     true,
			Scalars:  &cur.scalars,
			Maze:     &cur.maze,
			Sessions: &cur.sessions,
			Player:   &cur.player,
			Owner:    &cur.owner,
		}
	}

	snap := &Snapshot{}
	changed := false
	if !reflect.DeepEqual(cur.scalars, c.last.scalars) {
		snap.Scalars = &cur.scalars
		changed = true
	}
	if !reflect.DeepEqual(cur.maze, c.last.maze) {
		snap.Maze = &cur.maze
		changed = true
	}
	if !reflect.DeepEqual(cur.sessions, c.last.sessions) {
		snap.Sessions = &cur.sessions
		changed = true
	}
	if !reflect.DeepEqual(cur.player, c.last.player) {
		snap.Player = &cur.player
		changed = true
	}
	if !reflect.DeepEqual(cur.owner, c.last.owner) {
		snap.Owner = &cur.owner
		changed = true
	}
	if !changed {
		return nil
	}

	c.last = cur
	c.seq++
	snap.Seq = c.seq
	return snap
}

// build 从房间状态组一份顺序稳定的完整快照
func build(st *State) *composed {
	cur := &composed{}

	cur.scalars = ScalarsSection{
		Phase:          st.Phase,
		PhaseStartedAt: unixMs(st.PhaseStartedAt),
		PhaseEndsAt:    unixMs(st.PhaseEndsAt),
		Paused:         st.Paused,
		PausedAt:       unixMs(st.PausedAt),
		TargetScore:    st.TargetScore,
		TargetLocked:   st.TargetLocked,
		Winner:         st.Winner,
		ResultReason:   st.ResultReason,
	}

	rows := make([]string, st.Maze.Size)
	for y := 0; y < st.Maze.Size; y++ {
		var b strings.Builder
		b.Grow(st.Maze.Size)
		for x := 0; x < st.Maze.Size; x++ {
			if st.Maze.IsSolid(x, y) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		rows[y] = b.String()
	}
	cur.maze = MazeSection{
		Cells:   st.Maze.Cells,
		Size:    st.Maze.Size,
		Rows:    rows,
		Start:   st.Maze.Start,
		Goal:    st.Maze.Goal,
		PathLen: st.Maze.PathLen,
	}

	cur.sessions = make([]SessionView, 0, len(st.Sessions))
	for _, s := range st.Sessions {
		cur.sessions = append(cur.sessions, SessionView{
			ID:        s.ID,
			Nickname:  s.Nickname,
			Role:      s.Role,
			Connected: s.Connected(),
		})
	}
	sort.Slice(cur.sessions, func(i, j int) bool {
		return cur.sessions[i].ID < cur.sessions[j].ID
	})

	cur.player = PlayerSection{
		Pos:          st.Player.Body.Pos,
		Heading:      st.Player.Body.Heading,
		Vel:          st.Player.Body.Vel,
		Score:        st.Player.Score,
		StunnedUntil: unixMs(st.Player.StunnedUntil),
		LastInputTS:  st.Player.LastInputTS,
	}

	cur.owner = OwnerSection{
		Walls:          sortedCells(st.Walls),
		Carved:         sortedCells(st.Carved),
		Points:         sortedPoints(st.Points),
		Traps:          sortedCellKeys(st.Traps),
		Marks:          sortedCellKeys(st.Marks),
		WallStock:      st.Owner.WallStock,
		RemovalCharges: st.Owner.RemovalCharges,
		TrapCharges:    st.Owner.TrapCharges,
		CooldownUntil:  unixMs(st.Owner.CooldownUntil),
	}
	return cur
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func cellLess(a, b maze.Cell) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func sortedCells(set map[maze.Cell]bool) []maze.Cell {
	out := make([]maze.Cell, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return cellLess(out[i], out[j]) })
	return out
}

func sortedCellKeys(m map[maze.Cell]time.Time) []maze.Cell {
	out := make([]maze.Cell, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return cellLess(out[i], out[j]) })
	return out
}

func sortedPoints(m map[maze.Cell]int) []PointView {
	out := make([]PointView, 0, len(m))
	for c, v := range m {
		out = append(out, PointView{Cell: c, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return cellLess(out[i].Cell, out[j].Cell) })
	return out
}
