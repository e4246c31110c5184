/*
Package rules adapts the chess engine to the move tree: it validates moves
and produces positions, so that a move sequence read from a tree can be
turned into a board.

Example usage:

	start, _ := rules.StartPosition("")
	r := rules.NewReconstructor(start, logger)
	res, err := r.FromCursor(cursor)
	fmt.Println(rules.FEN(res.Position))
*/
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/chessrep/movetree"
)

var (
	// ErrIllegalMove is returned when a move cannot be played in a position.
	ErrIllegalMove = errors.New("rules: illegal move")
	// ErrNoPosition is returned when Apply is called without a position.
	ErrNoPosition = errors.New("rules: no position")
)

// notations are tried in order until one decodes the move. Coordinate
// input such as "g1f3" tries UCI first: the algebraic decoder reads it as
// a pawn move to f3.
var (
	notations = []chess.Notation{
		chess.AlgebraicNotation{},
		chess.UCINotation{},
		chess.LongAlgebraicNotation{},
	}
	coordinateNotations = []chess.Notation{
		chess.UCINotation{},
		chess.AlgebraicNotation{},
		chess.LongAlgebraicNotation{},
	}
)

var coordinateMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Oracle implements movetree.Oracle over chess positions. Moves may be
// written in SAN ("Nf3"), UCI ("g1f3") or long algebraic ("Ng1f3")
// notation.
type Oracle struct{}

var _ movetree.Oracle[*chess.Position] = Oracle{}

// Apply plays notation in pos and returns the resulting position. pos is
// not modified.
func (Oracle) Apply(pos *chess.Position, notation string) (*chess.Position, error) {
	if pos == nil {
		return nil, ErrNoPosition
	}
	m, err := Decode(pos, notation)
	if err != nil {
		return nil, err
	}
	next := pos.Update(m)
	if next == nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, notation)
	}
	return next, nil
}

// Decode parses notation in pos and returns the matching legal move. An
// algebraic decode is accepted only when the move encodes back to notation.
func Decode(pos *chess.Position, notation string) (*chess.Move, error) {
	if strings.HasPrefix(notation, "0-0") {
		notation = strings.ReplaceAll(notation, "0", "O")
	}
	order := notations
	if coordinateMove.MatchString(notation) {
		order = coordinateNotations
	}

	var firstErr error
	for _, n := range order {
		m, err := n.Decode(pos, notation)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !legal(pos, m) {
			continue
		}
		if _, ok := n.(chess.AlgebraicNotation); ok && !encodesAs(pos, m, notation) {
			continue
		}
		return m, nil
	}
	if firstErr != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrIllegalMove, notation, firstErr)
	}
	return nil, fmt.Errorf("%w: %q", ErrIllegalMove, notation)
}

func encodesAs(pos *chess.Position, m *chess.Move, notation string) bool {
	want := canonicalSAN(notation)
	got := canonicalSAN(chess.AlgebraicNotation{}.Encode(pos, m))
	if want == got {
		return true
	}
	// piece moves with more disambiguation than needed, such as "Ngf3"
	return len(want) >= 3 && len(got) >= 3 &&
		strings.IndexByte("KQRBN", want[0]) >= 0 && want[0] == got[0] &&
		want[len(want)-2:] == got[len(got)-2:]
}

// canonicalSAN drops check marks, suffix glyphs and the promotion '='.
func canonicalSAN(s string) string {
	s = strings.TrimRight(s, "+#!?")
	return strings.ReplaceAll(s, "=", "")
}

func legal(pos *chess.Position, m *chess.Move) bool {
	for _, v := range pos.ValidMoves() {
		if v.S1() == m.S1() && v.S2() == m.S2() && v.Promo() == m.Promo() {
			return true
		}
	}
	return false
}

// SAN returns notation rewritten in standard algebraic notation, so that
// "g1f3" and "Nf3" are stored as the same move.
func SAN(pos *chess.Position, notation string) (string, error) {
	m, err := Decode(pos, notation)
	if err != nil {
		return "", err
	}
	return chess.AlgebraicNotation{}.Encode(pos, m), nil
}

// StartPosition returns the position described by fen, or the standard
// starting position when fen is empty.
func StartPosition(fen string) (*chess.Position, error) {
	if fen == "" {
		return chess.StartingPosition(), nil
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("rules: start position: %w", err)
	}
	return chess.NewGame(opt).Position(), nil
}

// FEN returns the FEN of pos.
func FEN(pos *chess.Position) string {
	if pos == nil {
		return ""
	}
	return pos.String()
}

// NewReconstructor returns a reconstructor that replays moves from start.
func NewReconstructor(start *chess.Position, logger *zap.Logger) *movetree.PositionReconstructor[*chess.Position] {
	return movetree.NewPositionReconstructor[*chess.Position](
		Oracle{},
		start,
		movetree.WithReconstructorLogger(logger),
	)
}
