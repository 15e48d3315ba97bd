// Package maze 生成每局使用的完美迷宫（生成树，全连通）。
package maze

import (
	"errors"
	"fmt"
	"math/rand"
)

// Cell 瓦片坐标
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Maze 一局的迷宫，生成后不可变；重赛时整体重新生成
type Maze struct {
	Cells   int    // 单元格边长
	Size    int    // 瓦片网格边长 = 2*Cells+1
	Solid   []bool // 基础墙体，row-major Size×Size
	Start   Cell
	Goal    Cell
	PathLen int   // Start→Goal 最短路径（瓦片步数）
	Seed    int64 // 生成种子，同种子结果一致
}

// ErrGeneration 重试耗尽仍未达到最短路径下限
var ErrGeneration = errors.New("maze: generation retries exhausted")

const maxAttempts = 24

// 四邻方向
var dirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Generate 生成迷宫。起止点通过两次 BFS 取近似直径的两端，
// 直到最短路径 ≥ cells×minPathFactor 为止，有限次重试。
func Generate(cells int, minPathFactor float64, seed int64) (*Maze, error) {
	if cells < 4 {
		return nil, fmt.Errorf("maze: cells must be >= 4, got %d", cells)
	}

	rng := rand.New(rand.NewSource(seed))
	minPath := int(float64(cells) * minPathFactor)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		m := carve(cells, rng, seed)

		// 双 BFS 取近似最远点对
		origin := Cell{X: 1, Y: 1}
		far1, _ := m.bfsFarthest(origin)
		far2, dist := m.bfsFarthest(far1)

		if dist >= minPath {
			m.Start = far1
			m.Goal = far2
			m.PathLen = dist
			return m, nil
		}
	}
	return nil, ErrGeneration
}

// carve 随机化迭代深搜（回退法）在单元格上打通生成树走廊
func carve(cells int, rng *rand.Rand, seed int64) *Maze {
	size := 2*cells + 1
	m := &Maze{
		Cells: cells,
		Size:  size,
		Solid: make([]bool, size*size),
		Seed:  seed,
	}
	for i := range m.Solid {
		m.Solid[i] = true
	}

	visited := make([]bool, cells*cells)
	open := func(tx, ty int) { m.Solid[ty*size+tx] = false }

	type cellPos struct{ x, y int }
	start := cellPos{rng.Intn(cells), rng.Intn(cells)}
	stack := []cellPos{start}
	visited[start.y*cells+start.x] = true
	open(2*start.x+1, 2*start.y+1)

	for len(stack) > 0 {
		cur := stack[len(stack)-1]

		// 打乱邻居顺序
		order := rng.Perm(4)
		advanced := false
		for _, oi := range order {
			nx, ny := cur.x+dirs[oi][0], cur.y+dirs[oi][1]
			if nx < 0 || ny < 0 || nx >= cells || ny >= cells || visited[ny*cells+nx] {
				continue
			}
			visited[ny*cells+nx] = true
			// 打通两格之间的墙和目标格
			open(2*cur.x+1+dirs[oi][0], 2*cur.y+1+dirs[oi][1])
			open(2*nx+1, 2*ny+1)
			stack = append(stack, cellPos{nx, ny})
			advanced = true
			break
		}
		if !advanced {
			stack = stack[:len(stack)-1]
		}
	}
	return m
}

// IsSolid 越界一律视作墙
func (m *Maze) IsSolid(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Size || y >= m.Size {
		return true
	}
	return m.Solid[y*m.Size+x]
}

// bfsFarthest 从 from 出发 BFS，返回最远可达瓦片及其距离
func (m *Maze) bfsFarthest(from Cell) (Cell, int) {
	dist := make([]int, m.Size*m.Size)
	for i := range dist {
		dist[i] = -1
	}
	dist[from.Y*m.Size+from.X] = 0

	queue := []Cell{from}
	farthest, farDist := from, 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := dist[cur.Y*m.Size+cur.X]
		if d > farDist {
			farthest, farDist = cur, d
		}
		for _, dir := range dirs {
			nx, ny := cur.X+dir[0], cur.Y+dir[1]
			if m.IsSolid(nx, ny) || dist[ny*m.Size+nx] >= 0 {
				continue
			}
			dist[ny*m.Size+nx] = d + 1
			queue = append(queue, Cell{X: nx, Y: ny})
		}
	}
	return farthest, farDist
}

// OpenCells 返回所有走廊瓦片，顺序稳定（行优先）
func (m *Maze) OpenCells() []Cell {
	out := make([]Cell, 0, m.Cells*m.Cells)
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			if !m.Solid[y*m.Size+x] {
				out = append(out, Cell{X: x, Y: y})
			}
		}
	}
	return out
}
