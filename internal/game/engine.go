// internal/game/engine.go
//
// Rules engine for a single Quoridor game.
// Responsibilities:
//   - Construct the initial position (pawns on opposite edges, 10 walls each).
//   - Validate and apply pawn moves (orthogonal step, jump, diagonal side-step).
//   - Validate and apply wall placements, including the connectivity check:
//     no wall may leave either player without a path to their goal row.
//   - Detect wins and freeze the finished state.
//
// Notes:
//   - Every function here is pure: inputs are read, a new State is returned,
//     and rejected actions leave the caller's value untouched.
//   - The connectivity check is a breadth-first search over the 81-cell grid
//     with the candidate wall already included, run for both players.

package game

import (
	"errors"
	"fmt"
)

// Rejection categories surfaced to the invoker.
var (
	ErrIllegalMove = errors.New("illegal move")
	ErrIllegalWall = errors.New("illegal wall")
)

// NewState builds the starting position: player1 at (0,4) heading for row 8,
// player2 at (8,4) heading for row 0, player1 to move.
func NewState() State {
	return State{
		Player1:     PlayerState{Position: Position{Row: 0, Col: 4}, WallsRemaining: WallsPerPlayer},
		Player2:     PlayerState{Position: Position{Row: BoardSize - 1, Col: 4}, WallsRemaining: WallsPerPlayer},
		Walls:       []Wall{},
		CurrentTurn: RolePlayer1,
	}
}

// ApplyMove moves the side to move to target, or fails with ErrIllegalMove.
// On success the turn flips, unless the mover reached their goal row, in
// which case the state freezes with reason goal_reached instead.
func ApplyMove(s State, target Position) (State, error) {
	if s.GameOver.IsOver {
		return s, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	if !onBoard(target) {
		return s, fmt.Errorf("%w: target (%d,%d) is off the board", ErrIllegalMove, target.Row, target.Col)
	}

	mover := s.CurrentTurn
	me := s.Player(mover)
	opp := s.Player(mover.Opponent())

	legal := false
	for _, p := range LegalMoves(me.Position, s.Walls, opp.Position) {
		if p == target {
			legal = true
			break
		}
	}
	if !legal {
		return s, fmt.Errorf("%w: (%d,%d) is not reachable from (%d,%d)",
			ErrIllegalMove, target.Row, target.Col, me.Position.Row, me.Position.Col)
	}

	next := s
	me.Position = target
	if mover == RolePlayer1 {
		next.Player1 = me
	} else {
		next.Player2 = me
	}

	if target.Row == GoalRow(mover) {
		next.GameOver = GameOver{IsOver: true, Winner: mover, Reason: ReasonGoalReached}
		return next, nil
	}
	next.CurrentTurn = mover.Opponent()
	return next, nil
}

// ApplyWall places a wall for the side to move, or fails with ErrIllegalWall.
// Placement never ends the game; on success the turn flips.
func ApplyWall(s State, w Wall) (State, error) {
	if s.GameOver.IsOver {
		return s, fmt.Errorf("%w: game is over", ErrIllegalWall)
	}
	mover := s.CurrentTurn
	me := s.Player(mover)

	if me.WallsRemaining <= 0 {
		return s, fmt.Errorf("%w: no walls remaining", ErrIllegalWall)
	}
	if w.Orientation != Horizontal && w.Orientation != Vertical {
		return s, fmt.Errorf("%w: unknown orientation %q", ErrIllegalWall, w.Orientation)
	}
	if w.Position.Row < 0 || w.Position.Row >= WallGridSize ||
		w.Position.Col < 0 || w.Position.Col >= WallGridSize {
		return s, fmt.Errorf("%w: intersection (%d,%d) is off the wall grid", ErrIllegalWall, w.Position.Row, w.Position.Col)
	}
	for _, placed := range s.Walls {
		if placed.Position == w.Position {
			return s, fmt.Errorf("%w: intersection (%d,%d) already occupied", ErrIllegalWall, w.Position.Row, w.Position.Col)
		}
		if placed.Orientation != w.Orientation {
			continue
		}
		// Collinear neighbors along the wall's own axis would overlap
		// coverage with an existing segment.
		if w.Orientation == Horizontal &&
			placed.Position.Row == w.Position.Row && abs(placed.Position.Col-w.Position.Col) == 1 {
			return s, fmt.Errorf("%w: overlaps wall at (%d,%d)", ErrIllegalWall, placed.Position.Row, placed.Position.Col)
		}
		if w.Orientation == Vertical &&
			placed.Position.Col == w.Position.Col && abs(placed.Position.Row-w.Position.Row) == 1 {
			return s, fmt.Errorf("%w: overlaps wall at (%d,%d)", ErrIllegalWall, placed.Position.Row, placed.Position.Col)
		}
	}

	// Connectivity: with the candidate included, both players must still
	// have at least one route to their goal row.
	candidate := make([]Wall, len(s.Walls), len(s.Walls)+1)
	copy(candidate, s.Walls)
	candidate = append(candidate, w)
	if !reachesRow(candidate, s.Player1.Position, GoalRow(RolePlayer1)) {
		return s, fmt.Errorf("%w: would seal off player1's goal", ErrIllegalWall)
	}
	if !reachesRow(candidate, s.Player2.Position, GoalRow(RolePlayer2)) {
		return s, fmt.Errorf("%w: would seal off player2's goal", ErrIllegalWall)
	}

	next := s
	next.Walls = candidate
	me.WallsRemaining--
	if mover == RolePlayer1 {
		next.Player1 = me
	} else {
		next.Player2 = me
	}
	next.CurrentTurn = mover.Opponent()
	return next, nil
}

// Finish freezes a game externally (forfeit, timeout). A no-op when the
// state is already terminal: the first outcome wins.
func Finish(s State, winner Role, reason EndReason) State {
	if s.GameOver.IsOver {
		return s
	}
	s.GameOver = GameOver{IsOver: true, Winner: winner, Reason: reason}
	return s
}

// Winner reports the winning role of a finished game.
func Winner(s State) (Role, bool) {
	if !s.GameOver.IsOver {
		return "", false
	}
	return s.GameOver.Winner, true
}

// LegalMoves enumerates every destination the pawn at pos may step to, given
// the placed walls and the opponent's pawn. Used both for move validation
// and for client-side hinting.
//
// Per direction:
//   - The neighbor is legal if no wall crosses the edge and the opponent
//     does not stand there.
//   - If the opponent stands there, the cell one further on is legal when
//     on-board and not wall-blocked from the opponent's cell (jump).
//   - If that straight jump is unavailable, the two cells beside the
//     opponent, perpendicular to the approach, are legal under the same
//     edge rules (diagonal side-step).
func LegalMoves(pos Position, walls []Wall, opponent Position) []Position {
	dirs := [4]Position{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}
	moves := make([]Position, 0, 5)

	for _, d := range dirs {
		n := Position{Row: pos.Row + d.Row, Col: pos.Col + d.Col}
		if !onBoard(n) || edgeBlocked(walls, pos, n) {
			continue
		}
		if n != opponent {
			moves = append(moves, n)
			continue
		}

		jump := Position{Row: n.Row + d.Row, Col: n.Col + d.Col}
		if onBoard(jump) && !edgeBlocked(walls, n, jump) {
			moves = append(moves, jump)
			continue
		}

		// Straight jump blocked or off-board: side-step around the pawn.
		for _, p := range perpendicular(d) {
			side := Position{Row: n.Row + p.Row, Col: n.Col + p.Col}
			if onBoard(side) && !edgeBlocked(walls, n, side) {
				moves = append(moves, side)
			}
		}
	}
	return moves
}

// perpendicular returns the two directions orthogonal to d.
func perpendicular(d Position) [2]Position {
	if d.Row != 0 {
		return [2]Position{{Col: -1}, {Col: 1}}
	}
	return [2]Position{{Row: -1}, {Row: 1}}
}

func onBoard(p Position) bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// edgeBlocked reports whether a wall crosses the unit edge between two
// adjacent cells. A horizontal wall at (r,c) blocks row r <-> r+1 for
// columns c and c+1; a vertical wall at (r,c) blocks column c <-> c+1 for
// rows r and r+1.
func edgeBlocked(walls []Wall, a, b Position) bool {
	if a.Row > b.Row || a.Col > b.Col {
		a, b = b, a
	}
	for _, w := range walls {
		if b.Row == a.Row+1 && b.Col == a.Col { // vertical step
			if w.Orientation == Horizontal && w.Position.Row == a.Row &&
				(w.Position.Col == a.Col || w.Position.Col == a.Col-1) {
				return true
			}
		}
		if b.Col == a.Col+1 && b.Row == a.Row { // horizontal step
			if w.Orientation == Vertical && w.Position.Col == a.Col &&
				(w.Position.Row == a.Row || w.Position.Row == a.Row-1) {
				return true
			}
		}
	}
	return false
}

// reachesRow is the connectivity search: breadth-first over the 81 cells,
// edges removed where a wall crosses them. Pawns do not block paths here.
func reachesRow(walls []Wall, from Position, goalRow int) bool {
	if from.Row == goalRow {
		return true
	}
	var seen [BoardSize][BoardSize]bool
	seen[from.Row][from.Col] = true
	queue := []Position{from}
	dirs := [4]Position{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range dirs {
			n := Position{Row: cur.Row + d.Row, Col: cur.Col + d.Col}
			if !onBoard(n) || seen[n.Row][n.Col] || edgeBlocked(walls, cur, n) {
				continue
			}
			if n.Row == goalRow {
				return true
			}
			seen[n.Row][n.Col] = true
			queue = append(queue, n)
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
