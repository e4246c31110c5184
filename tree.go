/*
Package movetree provides a chess game tree with unlimited variations, a cursor
for navigating and extending it, and replay of any tree location through an
external move legality oracle.

Every line in the tree, the main line as well as any nested variation, has the
same shape: an ordered list of moves plus a list of alternative lines that
branch off before the first of those moves. Alternatives to a later move hang
off the move played just before the divergence.
Example usage:

	// Create a cursor over an empty tree
	c := NewCursor()

	// Enter moves
	c.AddMove("e4", nil)
	c.AddMove("e5", nil)

	// Go back and diverge
	c.GoBack()
	c.AddMove("c5", nil) // creates a variation anchored on "e4"

	moves, err := c.MovesToPosition() // e4 c5
*/
package movetree

// A MoveNode is one ply in the tree.
type MoveNode struct {
	Notation   string  `json:"notation" bson:"notation"`
	Comment    string  `json:"comment,omitempty" bson:"comment,omitempty"`
	NAGs       []int   `json:"nags,omitempty" bson:"nags,omitempty"`
	Variations []*Line `json:"variations" bson:"variations"`
}

// HasVariations reports whether any line branches off after this move.
func (m *MoveNode) HasVariations() bool {
	return len(m.Variations) > 0
}

// Clone returns a deep copy of the move and all of its variations.
func (m *MoveNode) Clone() *MoveNode {
	if m == nil {
		return nil
	}
	ret := &MoveNode{
		Notation:   m.Notation,
		Comment:    m.Comment,
		Variations: cloneLines(m.Variations),
	}
	if m.NAGs != nil {
		ret.NAGs = append([]int(nil), m.NAGs...)
	}
	return ret
}

// A Line is an ordered sequence of moves. Variations holds lines that
// replace the first move of this line.
type Line struct {
	Moves      []*MoveNode `json:"moves" bson:"moves"`
	Variations []*Line     `json:"variations" bson:"variations"`
}

// NewLine returns an empty line.
func NewLine() *Line {
	return &Line{
		Moves:      []*MoveNode{},
		Variations: []*Line{},
	}
}

// IsEmpty reports whether the line has no moves.
func (l *Line) IsEmpty() bool {
	return len(l.Moves) == 0
}

// Clone returns a deep copy of the line.
func (l *Line) Clone() *Line {
	if l == nil {
		return nil
	}
	ret := &Line{
		Moves:      make([]*MoveNode, len(l.Moves)),
		Variations: cloneLines(l.Variations),
	}
	for i, m := range l.Moves {
		ret.Moves[i] = m.Clone()
	}
	return ret
}

func cloneLines(lines []*Line) []*Line {
	ret := make([]*Line, len(lines))
	for i, l := range lines {
		ret[i] = l.Clone()
	}
	return ret
}

// A GameTree is the root container of a game: the main line from the
// starting position and, through the root line's Variations, alternative
// first moves.
type GameTree struct {
	Root *Line
}

// NewGameTree returns a tree with a single empty root line.
func NewGameTree() *GameTree {
	return &GameTree{Root: NewLine()}
}

// Clone returns a deep copy of the tree.
func (t *GameTree) Clone() *GameTree {
	return &GameTree{Root: t.Root.Clone()}
}

// MainLine returns the moves of the root line.
func (t *GameTree) MainLine() []*MoveNode {
	return t.Root.Moves
}

// PlyCount returns the number of moves stored anywhere in the tree.
func (t *GameTree) PlyCount() int {
	return countLine(t.Root)
}

func countLine(l *Line) int {
	if l == nil {
		return 0
	}
	n := len(l.Moves)
	for _, v := range l.Variations {
		n += countLine(v)
	}
	for _, m := range l.Moves {
		for _, v := range m.Variations {
			n += countLine(v)
		}
	}
	return n
}

// Lines returns every distinct game history stored in the tree, one per
// leaf, each as the sequence of moves from the starting position.
// The main line comes first.
func (t *GameTree) Lines() [][]*MoveNode {
	return collectLines(nil, t.Root)
}

// collectLines returns all histories that start with prefix and continue
// along l or one of the lines branching from it.
func collectLines(prefix []*MoveNode, l *Line) [][]*MoveNode {
	if l == nil {
		return nil
	}

	var paths [][]*MoveNode
	if l.IsEmpty() {
		if len(prefix) > 0 {
			paths = append(paths, prefix)
		}
	} else {
		full := make([]*MoveNode, 0, len(prefix)+len(l.Moves))
		full = append(full, prefix...)
		full = append(full, l.Moves...)
		paths = append(paths, full)
	}

	for _, v := range l.Variations {
		paths = append(paths, collectLines(clonePrefix(prefix), v)...)
	}
	for i, m := range l.Moves {
		if !m.HasVariations() {
			continue
		}
		head := make([]*MoveNode, 0, len(prefix)+i+1)
		head = append(head, prefix...)
		head = append(head, l.Moves[:i+1]...)
		for _, v := range m.Variations {
			paths = append(paths, collectLines(clonePrefix(head), v)...)
		}
	}
	return paths
}

func clonePrefix(p []*MoveNode) []*MoveNode {
	return append([]*MoveNode(nil), p...)
}
