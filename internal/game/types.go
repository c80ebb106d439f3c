// internal/game/types.go
//
// Core type definitions for the Quoridor rules engine.
// Defines:
//   - Position: a (row, col) cell on the 9x9 board.
//   - Wall: an intersection cell plus an orientation.
//   - PlayerState / State: the full immutable game value.

package game

// BoardSize is the pawn grid edge length; WallGridSize the intersection grid.
const (
	BoardSize      = 9
	WallGridSize   = 8
	WallsPerPlayer = 10
)

// Role identifies one of the two fixed seats in a game.
type Role string

const (
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
)

// Opponent returns the other seat.
func (r Role) Opponent() Role {
	if r == RolePlayer1 {
		return RolePlayer2
	}
	return RolePlayer1
}

// Position is a board cell. Value type, no identity.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Orientation of a wall segment.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Wall occupies one intersection cell in [0,7]x[0,7] and blocks the two
// unit edges it crosses. Immutable once placed.
type Wall struct {
	Position    Position    `json:"position"`
	Orientation Orientation `json:"orientation"`
}

// PlayerState is one side's pawn position and remaining wall stock.
type PlayerState struct {
	Position       Position `json:"position"`
	WallsRemaining int      `json:"wallsRemaining"`
}

// EndReason says why a finished game ended.
type EndReason string

const (
	ReasonGoalReached EndReason = "goal_reached"
	ReasonForfeit     EndReason = "forfeit"
	ReasonTimeout     EndReason = "timeout"
)

// GameOver freezes the outcome. While IsOver is false, Winner and Reason
// are zero values and must be ignored.
type GameOver struct {
	IsOver bool      `json:"isOver"`
	Winner Role      `json:"winner,omitempty"`
	Reason EndReason `json:"reason,omitempty"`
}

// State is a complete game position. Treated as a value: Apply* functions
// return a new State and never mutate their input. Walls are kept in
// placement order; ownership is tracked only through the counters.
type State struct {
	Player1     PlayerState `json:"player1"`
	Player2     PlayerState `json:"player2"`
	Walls       []Wall      `json:"walls"`
	CurrentTurn Role        `json:"currentTurn"`
	GameOver    GameOver    `json:"gameOver"`
}

// Player returns the state for a role.
func (s State) Player(r Role) PlayerState {
	if r == RolePlayer1 {
		return s.Player1
	}
	return s.Player2
}

// GoalRow is the row a role's pawn must reach to win.
func GoalRow(r Role) int {
	if r == RolePlayer1 {
		return BoardSize - 1
	}
	return 0
}
