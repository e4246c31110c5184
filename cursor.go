package movetree

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// A BranchPoint is one step of a cursor path: which variation was entered
// and where it branches off its parent line.
//
// VariationIndex is 1-based; 0 means "stay on the current line". For a
// regular branch AnchorIndex is the index of the move in the parent line
// that holds the variation. Root branches replace the first move of the
// parent line, are stored in the parent line's own Variations and always
// have AnchorIndex 0.
type BranchPoint struct {
	VariationIndex int  `json:"variationIndex" bson:"variation_index"`
	AnchorIndex    int  `json:"anchorIndex" bson:"anchor_index"`
	Root           bool `json:"root,omitempty" bson:"root,omitempty"`
}

// rootOf reports whether b enters a root branch of line. An entry anchored
// at 0 on a line without moves can only be a root branch, so it resolves as
// one even without the Root flag.
func (b BranchPoint) rootOf(line *Line) bool {
	return b.Root || (b.AnchorIndex == 0 && len(line.Moves) == 0)
}

// String implements the fmt.Stringer interface.
func (b BranchPoint) String() string {
	if b.Root {
		return fmt.Sprintf("{root var %d}", b.VariationIndex)
	}
	return fmt.Sprintf("{var %d @%d}", b.VariationIndex, b.AnchorIndex)
}

// A MutationKind tells what AddMove did to the tree.
type MutationKind uint8

const (
	// Appended indicates a new move was added at the end of the current line.
	Appended MutationKind = iota + 1
	// Followed indicates the move already was the next move of the line.
	Followed
	// Switched indicates the cursor entered an existing variation that
	// starts with the move.
	Switched
	// Created indicates a new variation was created for the move.
	Created
)

// String implements the fmt.Stringer interface.
func (k MutationKind) String() string {
	switch k {
	case Appended:
		return "appended"
	case Followed:
		return "followed"
	case Switched:
		return "switched"
	case Created:
		return "created"
	}
	return "unknown"
}

// MutationResult is the outcome of AddMove.
type MutationResult struct {
	Kind      MutationKind
	Path      []BranchPoint
	MoveIndex int
}

// NavResult is the outcome of a navigation step. Success is false when the
// cursor already was at the boundary and nothing changed.
type NavResult struct {
	Success   bool
	Path      []BranchPoint
	MoveIndex int
}

// MoveData holds annotations stored with a newly created move.
// They are never interpreted.
type MoveData struct {
	Comment string
	NAGs    []int
}

// State is a display snapshot of a cursor.
type State struct {
	Tree      *GameTree
	Path      []BranchPoint
	MoveIndex int
	Line      *Line
}

// A Cursor tracks a location in a GameTree and implements navigation and
// insertion. A cursor is not safe for concurrent use. Several cursors may
// share one tree as long as the caller serializes writes.
type Cursor struct {
	tree      *GameTree
	path      []BranchPoint
	moveIndex int
	logger    *zap.Logger
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithTree makes the cursor operate on t instead of a new empty tree.
// The tree is shared, not copied.
func WithTree(t *GameTree) Option {
	return func(c *Cursor) {
		if t != nil && t.Root != nil {
			c.tree = t
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cursor) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCursor returns a cursor positioned at the start of the main line.
//
// Example:
//
//	// Cursor over a new tree
//	c := NewCursor()
//
//	// Cursor over an existing tree, with logging
//	c := NewCursor(WithTree(tree), WithLogger(logger))
func NewCursor(opts ...Option) *Cursor {
	c := &Cursor{
		tree:   NewGameTree(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Tree returns the tree the cursor operates on.
func (c *Cursor) Tree() *GameTree {
	return c.tree
}

// Path returns a copy of the cursor path.
func (c *Cursor) Path() []BranchPoint {
	return slices.Clone(c.path)
}

// MoveIndex returns the position within the current line.
func (c *Cursor) MoveIndex() int {
	return c.moveIndex
}

// CurrentLine returns the line the cursor points into.
func (c *Cursor) CurrentLine() (*Line, error) {
	return c.walk("CurrentLine", nil)
}

// walk resolves the cursor path from the root. visit, if not nil, is called
// for every entry with the line the entry branches from. The move index is
// checked against the resulting line.
func (c *Cursor) walk(op string, visit func(parent *Line, bp BranchPoint)) (*Line, error) {
	line := c.tree.Root
	for i, bp := range c.path {
		next, reason := descend(line, bp)
		if reason != "" {
			return nil, c.corruption(op, i, bp, reason)
		}
		if visit != nil {
			visit(line, bp)
		}
		line = next
	}
	if c.moveIndex < 0 || c.moveIndex > len(line.Moves) {
		var last BranchPoint
		if len(c.path) > 0 {
			last = c.path[len(c.path)-1]
		}
		return nil, c.corruption(op, len(c.path), last,
			fmt.Sprintf("move index %d outside line of %d moves", c.moveIndex, len(line.Moves)))
	}
	return line, nil
}

// descend returns the line bp leads to from line, or a non-empty reason
// when bp does not resolve.
func descend(line *Line, bp BranchPoint) (*Line, string) {
	if bp.VariationIndex == 0 {
		return line, ""
	}
	if bp.VariationIndex < 0 {
		return nil, fmt.Sprintf("negative variation index %d", bp.VariationIndex)
	}
	idx := bp.VariationIndex - 1

	if bp.rootOf(line) {
		if idx >= len(line.Variations) {
			return nil, fmt.Sprintf("root variation %d of %d", bp.VariationIndex, len(line.Variations))
		}
		if line.Variations[idx] == nil {
			return nil, fmt.Sprintf("root variation %d is nil", bp.VariationIndex)
		}
		return line.Variations[idx], ""
	}

	if bp.AnchorIndex < 0 || bp.AnchorIndex >= len(line.Moves) {
		return nil, fmt.Sprintf("anchor %d out of range (%d moves)", bp.AnchorIndex, len(line.Moves))
	}
	anchor := line.Moves[bp.AnchorIndex]
	if anchor == nil {
		return nil, fmt.Sprintf("anchor %d is nil", bp.AnchorIndex)
	}
	if idx >= len(anchor.Variations) {
		return nil, fmt.Sprintf("variation %d of %d on move %q", bp.VariationIndex, len(anchor.Variations), anchor.Notation)
	}
	if anchor.Variations[idx] == nil {
		return nil, fmt.Sprintf("variation %d on move %q is nil", bp.VariationIndex, anchor.Notation)
	}
	return anchor.Variations[idx], ""
}

func (c *Cursor) corruption(op string, depth int, bp BranchPoint, reason string) error {
	err := &StructuralCorruptionError{
		Op:     op,
		Depth:  depth,
		Entry:  bp,
		Reason: reason,
	}
	c.logger.Error("cursor path does not resolve",
		zap.String("op", op),
		zap.Int("depth", depth),
		zap.Stringer("entry", bp),
		zap.String("reason", reason),
		zap.Int("moveIndex", c.moveIndex),
	)
	return err
}

// AddMove adds or follows a move at the cursor position and advances past it.
//
// At the end of the line the move is appended. If the next move of the line
// has the same notation the cursor just steps over it. Otherwise the move
// starts a variation: before the first move of the main line it is a root
// variation, elsewhere it is anchored on the move just played. A divergence
// at the very start of a variation is resolved in the parent line, where it
// becomes a sibling of that variation. An existing variation starting with
// the same move is entered instead of creating a duplicate.
//
// The notation is stored verbatim; legality is the caller's business.
func (c *Cursor) AddMove(notation string, data *MoveData) (MutationResult, error) {
	line, err := c.walk("AddMove", nil)
	if err != nil {
		return MutationResult{}, err
	}

	if c.moveIndex == len(line.Moves) {
		line.Moves = append(line.Moves, newMoveNode(notation, data))
		c.moveIndex++
		return c.mutation(Appended), nil
	}

	if line.Moves[c.moveIndex].Notation == notation {
		c.moveIndex++
		return c.mutation(Followed), nil
	}

	if c.moveIndex == 0 {
		if n := len(c.path); n > 0 && c.path[n-1].VariationIndex != 0 {
			// The start of a variation is the branch position in its parent
			// line, so alternatives belong there as siblings.
			c.ExitVariation()
			return c.AddMove(notation, data)
		}
		return c.branch(&line.Variations, BranchPoint{Root: true}, notation, data), nil
	}

	anchor := c.moveIndex - 1
	return c.branch(&line.Moves[anchor].Variations, BranchPoint{AnchorIndex: anchor}, notation, data), nil
}

// branch enters the variation in vars that starts with notation, creating
// it when there is none.
func (c *Cursor) branch(vars *[]*Line, bp BranchPoint, notation string, data *MoveData) MutationResult {
	kind := Switched
	idx := slices.IndexFunc(*vars, func(l *Line) bool {
		return l != nil && !l.IsEmpty() && l.Moves[0].Notation == notation
	})
	if idx < 0 {
		*vars = append(*vars, &Line{
			Moves:      []*MoveNode{newMoveNode(notation, data)},
			Variations: []*Line{},
		})
		idx = len(*vars) - 1
		kind = Created
	}

	bp.VariationIndex = idx + 1
	c.path = append(c.path, bp)
	c.moveIndex = 1

	c.logger.Debug("variation "+kind.String(),
		zap.String("notation", notation),
		zap.Stringer("branch", bp),
		zap.Int("depth", len(c.path)),
	)
	return c.mutation(kind)
}

func newMoveNode(notation string, data *MoveData) *MoveNode {
	m := &MoveNode{
		Notation:   notation,
		Variations: []*Line{},
	}
	if data != nil {
		m.Comment = data.Comment
		if len(data.NAGs) > 0 {
			m.NAGs = slices.Clone(data.NAGs)
		}
	}
	return m
}

func (c *Cursor) mutation(kind MutationKind) MutationResult {
	return MutationResult{
		Kind:      kind,
		Path:      c.Path(),
		MoveIndex: c.moveIndex,
	}
}

func (c *Cursor) nav(success bool) NavResult {
	return NavResult{
		Success:   success,
		Path:      c.Path(),
		MoveIndex: c.moveIndex,
	}
}

// GoBack steps one move back. At the start of a variation it leaves the
// variation and lands on the start of the parent line, not on the branch
// point; use ExitVariation for that. At the start of the main line it does
// nothing and reports Success false.
func (c *Cursor) GoBack() NavResult {
	if c.moveIndex > 0 {
		c.moveIndex--
		return c.nav(true)
	}
	if len(c.path) > 0 {
		c.path = c.path[:len(c.path)-1]
		c.moveIndex = 0
		return c.nav(true)
	}
	return c.nav(false)
}

// ExitVariation leaves the current variation and lands on the position the
// variation branches from. Reports Success false on the main line.
func (c *Cursor) ExitVariation() NavResult {
	if len(c.path) == 0 {
		return c.nav(false)
	}
	bp := c.path[len(c.path)-1]
	c.path = c.path[:len(c.path)-1]
	c.moveIndex = 0
	if bp.VariationIndex == 0 || bp.Root {
		return c.nav(true)
	}
	parent := c.tree.Root
	for _, p := range c.path {
		if parent, _ = descend(parent, p); parent == nil {
			break
		}
	}
	if parent == nil || !bp.rootOf(parent) {
		c.moveIndex = bp.AnchorIndex + 1
	}
	return c.nav(true)
}

// GoForward steps one move forward along the current line. It never enters
// a variation; Success is false at the end of the line.
func (c *Cursor) GoForward() (NavResult, error) {
	line, err := c.walk("GoForward", nil)
	if err != nil {
		return NavResult{}, err
	}
	if c.moveIndex < len(line.Moves) {
		c.moveIndex++
		return c.nav(true), nil
	}
	return c.nav(false), nil
}

// GoToStart moves to the start of the current line.
func (c *Cursor) GoToStart() NavResult {
	if c.moveIndex == 0 {
		return c.nav(false)
	}
	c.moveIndex = 0
	return c.nav(true)
}

// GoToEnd moves to the end of the current line.
func (c *Cursor) GoToEnd() (NavResult, error) {
	line, err := c.walk("GoToEnd", nil)
	if err != nil {
		return NavResult{}, err
	}
	if c.moveIndex == len(line.Moves) {
		return c.nav(false), nil
	}
	c.moveIndex = len(line.Moves)
	return c.nav(true), nil
}

// NavigateToMainLineMove leaves every variation and moves to moveIndex on
// the main line.
func (c *Cursor) NavigateToMainLineMove(moveIndex int) error {
	if moveIndex < 0 || moveIndex > len(c.tree.Root.Moves) {
		return fmt.Errorf("%w: main line has no move index %d", ErrInvalidBranch, moveIndex)
	}
	c.path = nil
	c.moveIndex = moveIndex
	return nil
}

// SwitchToVariation enters variation variationIndex (1-based) of the move at
// anchorIndex in the current line and moves to its start.
func (c *Cursor) SwitchToVariation(anchorIndex, variationIndex int) error {
	line, err := c.walk("SwitchToVariation", nil)
	if err != nil {
		return err
	}
	if anchorIndex < 0 || anchorIndex >= len(line.Moves) {
		return fmt.Errorf("%w: no move at index %d", ErrInvalidBranch, anchorIndex)
	}
	if variationIndex < 1 || variationIndex > len(line.Moves[anchorIndex].Variations) {
		return fmt.Errorf("%w: move %d has no variation %d", ErrInvalidBranch, anchorIndex, variationIndex)
	}
	c.path = append(c.path, BranchPoint{VariationIndex: variationIndex, AnchorIndex: anchorIndex})
	c.moveIndex = 0
	return nil
}

// SwitchToRootVariation enters variation variationIndex (1-based) of the
// current line itself, an alternative to its first move, and moves to its
// start.
func (c *Cursor) SwitchToRootVariation(variationIndex int) error {
	line, err := c.walk("SwitchToRootVariation", nil)
	if err != nil {
		return err
	}
	if variationIndex < 1 || variationIndex > len(line.Variations) {
		return fmt.Errorf("%w: line has no root variation %d", ErrInvalidBranch, variationIndex)
	}
	c.path = append(c.path, BranchPoint{VariationIndex: variationIndex, Root: true})
	c.moveIndex = 0
	return nil
}

// MovesToPosition returns the moves from the starting position to the
// cursor, in playing order. Replaying them yields the current position.
func (c *Cursor) MovesToPosition() ([]*MoveNode, error) {
	moves := make([]*MoveNode, 0, c.moveIndex)
	line, err := c.walk("MovesToPosition", func(parent *Line, bp BranchPoint) {
		if bp.VariationIndex == 0 || bp.rootOf(parent) {
			return
		}
		moves = append(moves, parent.Moves[:bp.AnchorIndex+1]...)
	})
	if err != nil {
		return nil, err
	}
	return append(moves, line.Moves[:c.moveIndex]...), nil
}

// State returns a snapshot of the cursor for display. The tree and line are
// shared, not copied.
func (c *Cursor) State() (State, error) {
	line, err := c.walk("State", nil)
	if err != nil {
		return State{}, err
	}
	return State{
		Tree:      c.tree,
		Path:      c.Path(),
		MoveIndex: c.moveIndex,
		Line:      line,
	}, nil
}

// Reset replaces the tree with an empty one and moves to the start.
// Other cursors sharing the old tree are not affected.
func (c *Cursor) Reset() {
	c.tree = NewGameTree()
	c.path = nil
	c.moveIndex = 0
}

// Restore replaces the tree with a deep copy of tree and sets the cursor
// position. Only the shape is checked; a path that does not resolve in the
// tree is reported by the next operation that walks it.
func (c *Cursor) Restore(tree *GameTree, path []BranchPoint, moveIndex int) error {
	if tree == nil {
		return fmt.Errorf("%w: nil tree", ErrInvalidSnapshot)
	}
	if err := checkLine(tree.Root, "root"); err != nil {
		return err
	}
	if err := checkPosition(path, moveIndex); err != nil {
		return err
	}
	c.tree = tree.Clone()
	c.path = slices.Clone(path)
	c.moveIndex = moveIndex
	return nil
}

// SetPosition moves the cursor to path and moveIndex without touching the
// tree. Like Restore it only checks the shape.
func (c *Cursor) SetPosition(path []BranchPoint, moveIndex int) error {
	if err := checkPosition(path, moveIndex); err != nil {
		return err
	}
	c.path = slices.Clone(path)
	c.moveIndex = moveIndex
	return nil
}

func checkPosition(path []BranchPoint, moveIndex int) error {
	if moveIndex < 0 {
		return fmt.Errorf("%w: negative move index %d", ErrInvalidSnapshot, moveIndex)
	}
	for i, bp := range path {
		if bp.VariationIndex < 0 || bp.AnchorIndex < 0 {
			return fmt.Errorf("%w: path[%d] %s has a negative index", ErrInvalidSnapshot, i, bp)
		}
		if bp.Root && bp.AnchorIndex != 0 {
			return fmt.Errorf("%w: path[%d] %s is a root branch with anchor %d", ErrInvalidSnapshot, i, bp, bp.AnchorIndex)
		}
	}
	return nil
}

func checkLine(l *Line, where string) error {
	if l == nil {
		return fmt.Errorf("%w: nil line at %s", ErrInvalidSnapshot, where)
	}
	for i, v := range l.Variations {
		if err := checkLine(v, fmt.Sprintf("%s.variations[%d]", where, i)); err != nil {
			return err
		}
	}
	for i, m := range l.Moves {
		if m == nil {
			return fmt.Errorf("%w: nil move at %s.moves[%d]", ErrInvalidSnapshot, where, i)
		}
		for j, v := range m.Variations {
			if err := checkLine(v, fmt.Sprintf("%s.moves[%d].variations[%d]", where, i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}
