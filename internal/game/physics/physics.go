// Package physics 推进玩家刚体运动，按轴分解的扫掠碰撞，可沿墙滑行。
package physics

import "math"

// Vec 二维向量，单位为瓦片
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Body 运动状态
type Body struct {
	Pos     Vec     `json:"pos"`
	Heading float64 `json:"heading"` // 弧度
	Vel     Vec     `json:"vel"`
}

// Input 归一化控制量
type Input struct {
	Turn    float64 // [-1,1]
	Forward float64 // [-1,1]
}

// Params 运动参数
type Params struct {
	Radius   float64 // 碰撞半径（瓦片）
	MaxSpeed float64 // 最大速度（瓦片/秒）
	TurnRate float64 // 转向速率（弧度/秒）
}

// DefaultParams 默认运动参数
func DefaultParams() Params {
	return Params{
		Radius:   0.35,
		MaxSpeed: 4.0,
		TurnRate: 3.5,
	}
}

// SolidFunc 瓦片实心判定。nil 表示无障碍。
type SolidFunc func(x, y int) bool

// 碰撞二分的固定迭代次数
const bisectIterations = 16

// Step 推进一个时间步。碰撞按 X、Y 轴独立消解：
// 目标点与实心瓦片重叠时，在该轴上二分出最远的无碰撞位置并清零该轴速度，
// 另一轴照常推进，从而实现贴墙滑行。
func Step(b Body, in Input, dt float64, solid SolidFunc, p Params) Body {
	if dt <= 0 {
		return b
	}
	turn := clamp(in.Turn, -1, 1)
	forward := clamp(in.Forward, -1, 1)

	b.Heading = normalizeAngle(b.Heading + turn*p.TurnRate*dt)
	b.Vel = Vec{
		X: math.Cos(b.Heading) * forward * p.MaxSpeed,
		Y: math.Sin(b.Heading) * forward * p.MaxSpeed,
	}

	dx := b.Vel.X * dt
	dy := b.Vel.Y * dt

	if solid == nil {
		b.Pos.X += dx
		b.Pos.Y += dy
		return b
	}

	// X 轴
	moved, blocked := resolveAxis(b.Pos.X, b.Pos.Y, dx, true, solid, p.Radius)
	b.Pos.X = moved
	if blocked {
		b.Vel.X = 0
	}
	// Y 轴（基于已消解的 X）
	moved, blocked = resolveAxis(b.Pos.X, b.Pos.Y, dy, false, solid, p.Radius)
	b.Pos.Y = moved
	if blocked {
		b.Vel.Y = 0
	}
	return b
}

// resolveAxis 在单轴上尝试位移 d，返回消解后的坐标和是否被阻挡
func resolveAxis(x, y, d float64, axisX bool, solid SolidFunc, radius float64) (float64, bool) {
	base := x
	if !axisX {
		base = y
	}
	if d == 0 {
		return base, false
	}

	hits := func(v float64) bool {
		if axisX {
			return collides(v, y, radius, solid)
		}
		return collides(x, v, radius, solid)
	}

	if !hits(base + d) {
		return base + d, false
	}

	// 二分出最远无碰撞偏移
	lo, hi := 0.0, d
	for i := 0; i < bisectIterations; i++ {
		mid := (lo + hi) / 2
		if hits(base + mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return base + lo, true
}

// collides 圆与候选位置包围盒内所有实心瓦片（单位正方形）求交
func collides(cx, cy, radius float64, solid SolidFunc) bool {
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Floor(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Floor(cy + radius))

	for ty := minY; ty <= maxY; ty++ {
		for tx := minX; tx <= maxX; tx++ {
			if !solid(tx, ty) {
				continue
			}
			// 圆心到瓦片最近点
			nx := clamp(cx, float64(tx), float64(tx+1))
			ny := clamp(cy, float64(ty), float64(ty+1))
			ddx, ddy := cx-nx, cy-ny
			if ddx*ddx+ddy*ddy < radius*radius {
				return true
			}
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
