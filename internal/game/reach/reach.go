// Package reach 房主加墙前的连通性校验：玩家所在瓦片必须仍可到达终点。
//
// 每次交互编辑都跑全量 BFS 代价太高，这里做两级缓存：
//  1. 保留上一次全量 BFS（到达终点即提前退出）的访问集。候选格不在
//     访问集中时，已知路径不经过它，直接放行，无需重跑。
//  2. 候选格在访问集中时，带上候选墙重跑 BFS，按 (起点,终点,候选格)
//     缓存判定结果；放行时新的访问集成为下一版本的基线。
//
// 任何加墙/拆墙都会递增 solid 版本号并清空判定缓存，基线按需重建。
// 注意：基线默认玩家所在瓦片在两次编辑之间不变；起点变化会导致缓存键
// 不匹配而自动重建。
package reach

import "github.com/palemoky/maze-rush/internal/game/maze"

// SolidFunc 合成后的实心判定（基础迷宫 + 房主已加的墙）
type SolidFunc func(x, y int) bool

// cacheKey 基线与判定缓存的键
type cacheKey struct {
	size  int
	start maze.Cell
	goal  maze.Cell
}

// Validator 带缓存的连通性校验器，单房间协程内使用，无锁
type Validator struct {
	rev uint64 // solid 版本号，任何墙体变化递增

	key         cacheKey
	baseline    map[maze.Cell]bool // 上次全量 BFS 的访问集
	baselineRev uint64

	results    map[maze.Cell]bool // 本版本内按候选格缓存的判定
	resultsRev uint64

	// 放行判定时待接任的基线（提交该墙后生效）
	pending     map[maze.Cell]bool
	pendingCell maze.Cell
	pendingOK   bool
}

// New 创建校验器
func New() *Validator {
	return &Validator{}
}

// Revision 当前 solid 版本号
func (v *Validator) Revision() uint64 {
	return v.rev
}

// CanAdd 判定在 candidate 加墙后 start 是否仍可到达 goal。
// solid 是未含候选墙的当前实心判定。
func (v *Validator) CanAdd(size int, solid SolidFunc, start, goal, candidate maze.Cell) bool {
	if start == goal {
		return true
	}
	key := cacheKey{size: size, start: start, goal: goal}
	if key != v.key {
		// 玩家移动或对局重开，全部作废
		v.key = key
		v.baseline = nil
		v.results = nil
		v.pendingOK = false
	}

	// 判定缓存命中
	if v.results != nil && v.resultsRev == v.rev {
		if ok, hit := v.results[candidate]; hit {
			return ok
		}
	} else {
		v.results = make(map[maze.Cell]bool)
		v.resultsRev = v.rev
	}

	// 一级：基线访问集
	if v.baseline == nil || v.baselineRev != v.rev {
		v.baseline, _ = bfs(size, solid, start, goal, nil)
		v.baselineRev = v.rev
	}
	if !v.baseline[candidate] {
		// 已知路径不经过候选格，平凡安全
		v.results[candidate] = true
		return true
	}

	// 二级：带候选墙重跑
	visited, reached := bfs(size, solid, start, goal, &candidate)
	v.results[candidate] = reached
	if reached {
		v.pending = visited
		v.pendingCell = candidate
		v.pendingOK = true
	}
	return reached
}

// NoteAdd 记录一次已提交的加墙
func (v *Validator) NoteAdd(cell maze.Cell) {
	v.rev++
	v.results = nil
	if v.pendingOK && v.pendingCell == cell {
		// 刚校验通过的访问集直接接任基线
		v.baseline = v.pending
		v.baselineRev = v.rev
	}
	v.pending = nil
	v.pendingOK = false
}

// NoteRemove 记录一次已提交的拆墙
func (v *Validator) NoteRemove(cell maze.Cell) {
	v.rev++
	v.results = nil
	v.baseline = nil
	v.pending = nil
	v.pendingOK = false
}

// bfs 从 start 泛洪，到达 goal 即停。extra 非空时视作额外的墙。
// 返回访问集和是否到达 goal。
func bfs(size int, solid SolidFunc, start, goal maze.Cell, extra *maze.Cell) (map[maze.Cell]bool, bool) {
	if extra != nil && *extra == start {
		return map[maze.Cell]bool{start: true}, false
	}

	visited := map[maze.Cell]bool{start: true}
	queue := []maze.Cell{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			return visited, true
		}
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			n := maze.Cell{X: cur.X + d[0], Y: cur.Y + d[1]}
			if n.X < 0 || n.Y < 0 || n.X >= size || n.Y >= size {
				continue
			}
			if visited[n] || solid(n.X, n.Y) {
				continue
			}
			if extra != nil && *extra == n {
				continue
			}
			visited[n] = true
			queue = append(queue, n)
		}
	}
	return visited, false
}
