package board

import (
	"testing"

	"github.com/matryer/is"
)

func TestFENRoundTrip(t *testing.T) {
	is := is.New(t)
	pos, err := ParseFEN(StartFEN)
	is.NoErr(err)
	is.Equal(pos.ToFEN(), StartFEN)
	is.Equal(pos.SideToMove, Red)
	is.Equal(pos.GuardSquare(Red), D7)
	is.Equal(pos.GuardSquare(Blue), D1)
	is.Equal(pos.Material(Red), 7)
	is.Equal(pos.Material(Blue), 7)
	is.Equal(pos.Hash, pos.ComputeHash())
}

func TestParseFENErrors(t *testing.T) {
	is := is.New(t)
	bad := []string{
		"",
		"7/7/7 r",
		"7/7/7/7/7/7/8 r",
		"r8/7/7/7/7/7/7 r",
		"RX6/7/7/7/7/7/7 r",
		"3RG3/7/7/7/7/7/3BG3 x",
		"RGRG5/7/7/7/7/7/3BG3 r",
		"r7r11RG1/7/7/7/7/7/3BG3 r",
	}
	for _, fen := range bad {
		_, err := ParseFEN(fen)
		is.True(err != nil) // invalid FEN must fail
	}
}

func TestIncrementalHash(t *testing.T) {
	is := is.New(t)
	pos := NewPosition()
	for i := 0; i < 60; i++ {
		moves := pos.GenerateLegalMoves()
		if moves.Len() == 0 {
			break
		}
		pos.MakeMove(moves.Get((i * 7) % moves.Len()))
		is.Equal(pos.Hash, pos.ComputeHash()) // incremental hash diverged
	}
}

func TestCopyIsIndependent(t *testing.T) {
	is := is.New(t)
	pos := NewPosition()
	fen := pos.ToFEN()
	hash := pos.Hash

	child := pos.Copy()
	child.MakeMove(child.GenerateLegalMoves().Get(0))

	is.Equal(pos.ToFEN(), fen)
	is.Equal(pos.Hash, hash)
	is.True(child.Hash != hash)
	is.Equal(child.SideToMove, Blue)
}

func TestStackingAndSplitting(t *testing.T) {
	is := is.New(t)
	pos := NewPosition()
	b7 := NewSquare(1, 6)

	// A7 onto B7 builds a tower of two.
	m, err := ParseMove("A7-B7-1", pos)
	is.NoErr(err)
	pos.MakeMove(m)
	is.Equal(pos.Height(b7), 2)
	is.True(pos.IsEmpty(A7))
	is.Equal(pos.Material(Red), 7)

	// Blue answers, then red moves the top piece only.
	pos.MakeMove(pos.GenerateLegalMoves().Get(0))
	m, err = ParseMove("B7-B6-1", pos)
	is.NoErr(err)
	pos.MakeMove(m)
	is.Equal(pos.Height(b7), 1)
	is.Equal(pos.Height(NewSquare(1, 5)), 1)
	is.Equal(pos.Hash, pos.ComputeHash())
}

func TestGuardCaptureWins(t *testing.T) {
	is := is.New(t)
	pos, err := ParseFEN("7/7/7/3RG3/3BG3/7/7 r")
	is.NoErr(err)
	is.Equal(pos.GenerateLegalMoves().Len(), 4)

	win := pos.WinningMove()
	is.Equal(win, NewMove(NewSquare(3, 3), NewSquare(3, 2), 1))
	is.True(pos.GuardAttacked(Blue))

	pos.MakeMove(win)
	is.True(pos.IsGameOver())
	is.Equal(pos.Winner(), Red)
}

func TestGuardReachesGoal(t *testing.T) {
	is := is.New(t)
	pos, err := ParseFEN("6BG/7/7/7/7/3RG3/7 r")
	is.NoErr(err)

	m, err := ParseMove("D2-D1-1", pos)
	is.NoErr(err)
	is.True(pos.IsWinningMove(m))

	pos.MakeMove(m)
	is.Equal(pos.Winner(), Red)
}

func TestTowerCaptureNeedsHeight(t *testing.T) {
	is := is.New(t)
	pos, err := ParseFEN("6RG/7/7/r21b24/7/7/6BG r")
	is.NoErr(err)
	c4 := NewSquare(2, 3)
	is.True(pos.CanCapture(Red, c4))
	is.True(pos.GenerateLegalMoves().Contains(NewMove(NewSquare(0, 3), c4, 2)))
	is.Equal(pos.GenerateCaptures().Len(), 1)

	taller, err := ParseFEN("6RG/7/7/r21b34/7/7/6BG r")
	is.NoErr(err)
	is.True(!taller.CanCapture(Red, c4))
	is.Equal(taller.GenerateCaptures().Len(), 0)
}

func TestTacticalIncludesThreats(t *testing.T) {
	is := is.New(t)
	// Red tower on A3 can step to A2, from where the blue guard on A1 is attacked.
	pos, err := ParseFEN("3RG3/7/7/7/r16/7/BG6 r")
	is.NoErr(err)
	threat := NewMove(NewSquare(0, 2), NewSquare(0, 1), 1)
	is.True(pos.GivesGuardThreat(threat))
	is.True(pos.GenerateTactical().Contains(threat))
	is.True(!pos.GenerateTactical().Contains(NewMove(NewSquare(0, 2), NewSquare(1, 2), 1)))
}
