package movetree

import (
	"go.uber.org/zap"
)

// An Oracle applies a move in some notation to a position and returns the
// resulting position, or an error when the move is not legal there. S is the
// oracle's position type; the tree never looks inside it.
type Oracle[S any] interface {
	Apply(state S, notation string) (S, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc[S any] func(state S, notation string) (S, error)

// Apply calls f(state, notation).
func (f OracleFunc[S]) Apply(state S, notation string) (S, error) {
	return f(state, notation)
}

// Reconstruction is the result of replaying moves through an oracle.
// Partial is nil when every move was applied.
type Reconstruction[S any] struct {
	Position S
	Applied  int
	Partial  *PartialReconstruction
}

// Complete reports whether every move was applied.
func (r Reconstruction[S]) Complete() bool {
	return r.Partial == nil
}

// A PositionReconstructor turns move sequences into positions by replaying
// them from a fixed starting position.
type PositionReconstructor[S any] struct {
	oracle Oracle[S]
	start  S
	logger *zap.Logger
}

// ReconstructorOption configures a PositionReconstructor.
type ReconstructorOption func(*reconstructorConfig)

type reconstructorConfig struct {
	logger *zap.Logger
}

// WithReconstructorLogger sets the logger that receives partial
// reconstruction warnings.
func WithReconstructorLogger(l *zap.Logger) ReconstructorOption {
	return func(cfg *reconstructorConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// NewPositionReconstructor returns a reconstructor that replays moves from
// start using oracle. start is never modified by the reconstructor itself;
// oracles must return new positions rather than mutate their input.
func NewPositionReconstructor[S any](oracle Oracle[S], start S, opts ...ReconstructorOption) *PositionReconstructor[S] {
	cfg := reconstructorConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &PositionReconstructor[S]{
		oracle: oracle,
		start:  start,
		logger: cfg.logger,
	}
}

// Reconstruct replays moves in order. When the oracle refuses a move the
// replay stops there: the result holds the last good position and a
// PartialReconstruction warning. It never fails.
func (r *PositionReconstructor[S]) Reconstruct(moves []*MoveNode) Reconstruction[S] {
	pos := r.start
	for i, m := range moves {
		next, err := r.oracle.Apply(pos, m.Notation)
		if err != nil {
			partial := &PartialReconstruction{
				Applied:  i,
				Rejected: len(moves) - i,
				Notation: m.Notation,
				Err:      err,
			}
			r.logger.Warn("move refused during replay",
				zap.Int("applied", i),
				zap.Int("rejected", partial.Rejected),
				zap.String("notation", m.Notation),
				zap.Error(err),
			)
			return Reconstruction[S]{Position: pos, Applied: i, Partial: partial}
		}
		pos = next
	}
	return Reconstruction[S]{Position: pos, Applied: len(moves)}
}

// FromCursor reconstructs the position at the cursor. The error is non-nil
// only when the cursor path does not resolve.
func (r *PositionReconstructor[S]) FromCursor(c *Cursor) (Reconstruction[S], error) {
	moves, err := c.MovesToPosition()
	if err != nil {
		return Reconstruction[S]{}, err
	}
	return r.Reconstruct(moves), nil
}
