package room

import (
	"time"

	"github.com/palemoky/maze-rush/internal/game/maze"
	"github.com/palemoky/maze-rush/internal/protocol"
)

// pointValues 合法点值
var pointValues = map[int]bool{1: true, 3: true, 5: true}

// handleOwnerEdit 房主编辑入口：冷却、越界等公共闸门在前，
// 动作各自的策略闸门在后，全部通过才落地变更
func (r *Room) handleOwnerEdit(sess *Session, msg *protocol.Message, now time.Time) error {
	payload, err := protocol.ParsePayload[protocol.OwnerEditPayload](msg)
	if err != nil {
		return ErrInvalidMessage
	}

	if now.Before(r.state.Owner.CooldownUntil) {
		return cooldownError(r.state.Owner.CooldownUntil.Sub(now).Milliseconds())
	}
	cell := maze.Cell{X: payload.Cell.X, Y: payload.Cell.Y}
	if cell.X < 0 || cell.Y < 0 || cell.X >= r.state.Maze.Size || cell.Y >= r.state.Maze.Size {
		return ErrOutOfBounds
	}

	switch payload.Action {
	case protocol.EditAddWall:
		err = r.addWall(cell, now)
	case protocol.EditDelWall:
		err = r.delWall(cell, now)
	case protocol.EditPlaceTrap:
		err = r.placeTrap(cell, now)
	case protocol.EditPlacePoint:
		err = r.placePoint(cell, payload.Value, now)
	default:
		return ErrInvalidMessage
	}
	if err != nil {
		return err
	}

	r.state.Owner.CooldownUntil = now.Add(editCooldown)
	r.dirty = true
	r.forceFull = true // 编辑强制全量重同步
	r.emitEvent(sess, protocol.EventEditEcho, map[string]any{
		"action": payload.Action,
		"cell":   payload.Cell,
	})
	return nil
}

// addWall 探索阶段加墙，受库存与连通性约束
func (r *Room) addWall(cell maze.Cell, now time.Time) error {
	if r.state.Phase != PhaseExplore {
		return ErrWrongPhase
	}
	if r.state.Owner.WallStock <= 0 {
		return ErrOutOfStock
	}
	if r.state.solidAt(cell.X, cell.Y) {
		return ErrOccupiedCell
	}
	if r.isProtectedCell(cell) {
		return ErrForbiddenCell
	}
	if _, ok := r.state.Points[cell]; ok {
		return ErrOccupiedCell
	}
	if _, ok := r.state.Traps[cell]; ok {
		return ErrOccupiedCell
	}

	// 连通性否决：玩家当前瓦片必须仍能到达终点
	ok := r.validator.CanAdd(
		r.state.Maze.Size,
		r.state.solidAt,
		r.state.playerCell(),
		r.state.Maze.Goal,
		cell,
	)
	if !ok {
		return ErrNoPath
	}

	r.state.Walls[cell] = true
	r.state.Owner.WallStock--
	r.validator.NoteAdd(cell)
	return nil
}

// delWall 拆墙：自己加的墙退回库存；基础墙消耗一次性拆墙机会，
// 外圈边界永不可拆
func (r *Room) delWall(cell maze.Cell, now time.Time) error {
	if r.state.Phase != PhaseExplore {
		return ErrWrongPhase
	}

	if r.state.Walls[cell] {
		delete(r.state.Walls, cell)
		r.state.Owner.WallStock++
		r.validator.NoteRemove(cell)
		return nil
	}

	if r.state.Maze.IsSolid(cell.X, cell.Y) && !r.state.Carved[cell] {
		if cell.X == 0 || cell.Y == 0 ||
			cell.X == r.state.Maze.Size-1 || cell.Y == r.state.Maze.Size-1 {
			return ErrForbiddenCell
		}
		if r.state.Owner.RemovalCharges <= 0 {
			return ErrOutOfStock
		}
		r.state.Carved[cell] = true
		r.state.Owner.RemovalCharges--
		r.validator.NoteRemove(cell)
		return nil
	}
	return ErrNoSuchWall
}

// placeTrap 陷阱：prep 的陷阱窗口内，或探索阶段用预测奖励的配额加放
func (r *Room) placeTrap(cell maze.Cell, now time.Time) error {
	stage := r.prepStage(now)
	if stage != StageTraps && r.state.Phase != PhaseExplore {
		if r.state.Phase == PhasePrep {
			return ErrWindowClosed
		}
		return ErrWrongPhase
	}
	if r.state.Owner.TrapCharges <= 0 {
		return ErrOutOfStock
	}
	if r.state.solidAt(cell.X, cell.Y) {
		return ErrOccupiedCell
	}
	if r.isProtectedCell(cell) {
		return ErrForbiddenCell
	}
	if _, ok := r.state.Traps[cell]; ok {
		return ErrOccupiedCell
	}
	if _, ok := r.state.Points[cell]; ok {
		return ErrOccupiedCell
	}

	r.state.Traps[cell] = now
	r.state.Owner.TrapCharges--
	return nil
}

// placePoint 分数点：只在 prep 的放点窗口内，数量与迷宫尺寸挂钩
func (r *Room) placePoint(cell maze.Cell, value int, now time.Time) error {
	stage := r.prepStage(now)
	if stage != StagePoints {
		if r.state.Phase == PhasePrep {
			return ErrWindowClosed
		}
		return ErrWrongPhase
	}
	if !pointValues[value] {
		return ErrInvalidMessage
	}
	if len(r.state.Points) >= r.cfg.Game.MazeCells {
		return ErrOutOfStock
	}
	if r.state.solidAt(cell.X, cell.Y) {
		return ErrOccupiedCell
	}
	if cell == r.state.Maze.Start || cell == r.state.Maze.Goal {
		return ErrForbiddenCell
	}
	if _, ok := r.state.Points[cell]; ok {
		return ErrOccupiedCell
	}
	if _, ok := r.state.Traps[cell]; ok {
		return ErrOccupiedCell
	}

	r.state.Points[cell] = value
	return nil
}

// handleOwnerMark 预测标记开关：预测窗口内，总数受限
func (r *Room) handleOwnerMark(sess *Session, msg *protocol.Message, now time.Time) error {
	payload, err := protocol.ParsePayload[protocol.OwnerMarkPayload](msg)
	if err != nil {
		return ErrInvalidMessage
	}
	if r.prepStage(now) != StageMarks {
		if r.state.Phase == PhasePrep {
			return ErrWindowClosed
		}
		return ErrWrongPhase
	}
	cell := maze.Cell{X: payload.Cell.X, Y: payload.Cell.Y}
	if cell.X < 0 || cell.Y < 0 || cell.X >= r.state.Maze.Size || cell.Y >= r.state.Maze.Size {
		return ErrOutOfBounds
	}

	if _, ok := r.state.Marks[cell]; ok {
		delete(r.state.Marks, cell)
	} else {
		if len(r.state.Marks) >= marksPerWindow {
			return ErrTooManyMarks
		}
		if r.state.solidAt(cell.X, cell.Y) {
			return ErrForbiddenCell
		}
		r.state.Marks[cell] = now
	}

	r.dirty = true
	r.forceFull = true
	r.emitEvent(sess, protocol.EventEditEcho, map[string]any{
		"action": "MARK",
		"cell":   payload.Cell,
	})
	return nil
}

// handleOwnerConfirm 提前结束当前 prep 子窗口：把阶段时钟整体前移
// 到下一窗口边界，总时长相应缩短
func (r *Room) handleOwnerConfirm(sess *Session, now time.Time) error {
	if r.state.Phase != PhasePrep {
		return ErrWrongPhase
	}
	total := r.cfg.Game.PrepDuration()
	// 暂停期间阶段时钟冻结，历时必须以暂停时刻为准
	elapsed := r.prepElapsed(now)

	var boundary time.Duration
	switch r.prepStage(now) {
	case StagePoints:
		boundary = total * 40 / 60
	case StageTraps:
		boundary = total * 45 / 60
	default:
		boundary = total
	}
	shift := boundary - elapsed
	if shift < 0 {
		shift = 0
	}
	r.state.PhaseStartedAt = r.state.PhaseStartedAt.Add(-shift)
	r.state.PhaseEndsAt = r.state.PhaseEndsAt.Add(-shift)
	r.dirty = true
	r.forceFull = true

	// 预测窗口确认即结束 prep；暂停中只移动时钟，恢复后由唤醒推进
	if !r.state.Paused && r.prepElapsed(now) >= total {
		r.advancePhase(now)
	}
	return nil
}

// handleOwnerCancel 撤销当前子窗口内的全部布置并退回资源
func (r *Room) handleOwnerCancel(sess *Session, now time.Time) error {
	switch r.prepStage(now) {
	case StagePoints:
		r.state.Points = make(map[maze.Cell]int)
	case StageTraps:
		r.state.Owner.TrapCharges += len(r.state.Traps)
		r.state.Traps = make(map[maze.Cell]time.Time)
	case StageMarks:
		r.state.Marks = make(map[maze.Cell]time.Time)
	default:
		return ErrWrongPhase
	}
	r.dirty = true
	r.forceFull = true
	return nil
}

// isProtectedCell 起点、终点以及玩家圆身覆盖的瓦片不可放置
func (r *Room) isProtectedCell(cell maze.Cell) bool {
	if cell == r.state.Maze.Start || cell == r.state.Maze.Goal {
		return true
	}
	pos := r.state.Player.Body.Pos
	radius := r.params.Radius
	minX, maxX := int(pos.X-radius), int(pos.X+radius)
	minY, maxY := int(pos.Y-radius), int(pos.Y+radius)
	return cell.X >= minX && cell.X <= maxX && cell.Y >= minY && cell.Y <= maxY
}
