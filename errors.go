package movetree

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBranch is returned when a requested variation or move index
	// does not exist. No mutation happens when it is returned.
	ErrInvalidBranch = errors.New("movetree: invalid branch")
	// ErrInvalidSnapshot is returned when a snapshot or cursor position
	// fails the structural shape checks.
	ErrInvalidSnapshot = errors.New("movetree: invalid snapshot")
)

// StructuralCorruptionError reports a cursor path entry that references a
// move or variation that does not exist in the tree. It always indicates a
// bug or a corrupted snapshot, never a user error.
type StructuralCorruptionError struct {
	Op     string      // operation that resolved the path
	Depth  int         // index of the offending path entry
	Entry  BranchPoint // the offending path entry
	Reason string
}

func (e *StructuralCorruptionError) Error() string {
	return fmt.Sprintf("movetree: structural corruption in %s at path[%d] %s: %s",
		e.Op, e.Depth, e.Entry, e.Reason)
}

// PartialReconstruction is the warning attached to a reconstruction that
// stopped because the oracle refused a move.
type PartialReconstruction struct {
	Applied  int    // moves replayed successfully
	Rejected int    // moves not replayed, starting with the refused one
	Notation string // the refused move
	Err      error  // the oracle's reason
}

func (p *PartialReconstruction) Error() string {
	return fmt.Sprintf("movetree: partial reconstruction: %d moves applied, %d rejected at ply %d (%s): %v",
		p.Applied, p.Rejected, p.Applied+1, p.Notation, p.Err)
}

func (p *PartialReconstruction) Unwrap() error {
	return p.Err
}

// ParserError represents an error that occurred while reading PGN text.
type ParserError struct {
	Message    string
	TokenType  TokenType
	TokenValue string
	Position   int
}

func (e *ParserError) Error() string {
	if e.TokenValue == "" {
		return fmt.Sprintf("movetree: pgn: %s at token %d", e.Message, e.Position)
	}
	return fmt.Sprintf("movetree: pgn: %s at token %d (%s %q)", e.Message, e.Position, e.TokenType, e.TokenValue)
}
