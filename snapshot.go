package movetree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodeSnapshot serializes the tree as
//
//	{"moves": [{"notation": "e4", "variations": [...], "comment": "...", "nags": [1]}, ...],
//	 "variations": [...]}
//
// recursively, the shape stored by the document store.
func EncodeSnapshot(t *GameTree) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot. Moves written
// by older clients that carry their notation in "san" or "move" instead of
// "notation", or that are bare strings, are normalized here.
func DecodeSnapshot(data []byte) (*GameTree, error) {
	var t GameTree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// MarshalJSON implements the json.Marshaler interface.
func (t *GameTree) MarshalJSON() ([]byte, error) {
	root := t.Root
	if root == nil {
		root = NewLine()
	}
	return json.Marshal(root)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *GameTree) UnmarshalJSON(data []byte) error {
	var w wireLine
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	root, err := w.line("root")
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

// wireLine and wireMove accept every move shape found in stored chapters.
type wireLine struct {
	Moves      []wireMove `json:"moves"`
	Variations []wireLine `json:"variations"`
}

type wireMove struct {
	Notation   string     `json:"notation"`
	SAN        string     `json:"san"`
	Move       string     `json:"move"`
	Comment    string     `json:"comment"`
	NAGs       []int      `json:"nags"`
	Variations []wireLine `json:"variations"`
}

func (w *wireMove) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &w.Notation)
	}
	type plain wireMove
	return json.Unmarshal(data, (*plain)(w))
}

func (w wireLine) line(where string) (*Line, error) {
	l := &Line{
		Moves:      make([]*MoveNode, 0, len(w.Moves)),
		Variations: make([]*Line, 0, len(w.Variations)),
	}
	for i, wm := range w.Moves {
		m, err := wm.node(fmt.Sprintf("%s.moves[%d]", where, i))
		if err != nil {
			return nil, err
		}
		l.Moves = append(l.Moves, m)
	}
	for i, wv := range w.Variations {
		v, err := wv.line(fmt.Sprintf("%s.variations[%d]", where, i))
		if err != nil {
			return nil, err
		}
		l.Variations = append(l.Variations, v)
	}
	return l, nil
}

func (w wireMove) node(where string) (*MoveNode, error) {
	notation := firstNonEmpty(w.Notation, w.SAN, w.Move)
	if notation == "" {
		return nil, fmt.Errorf("%w: move without notation at %s", ErrInvalidSnapshot, where)
	}
	m := &MoveNode{
		Notation:   notation,
		Comment:    w.Comment,
		NAGs:       w.NAGs,
		Variations: make([]*Line, 0, len(w.Variations)),
	}
	for i, wv := range w.Variations {
		v, err := wv.line(fmt.Sprintf("%s.variations[%d]", where, i))
		if err != nil {
			return nil, err
		}
		m.Variations = append(m.Variations, v)
	}
	return m, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// CursorSnapshot is a tree together with a cursor position, the unit the
// document store persists for a chapter.
type CursorSnapshot struct {
	Tree      *GameTree     `json:"gameTree"`
	Path      []BranchPoint `json:"currentPath"`
	MoveIndex int           `json:"currentMoveIndex"`
}

// Snapshot captures a deep copy of the cursor's tree and its position.
func (c *Cursor) Snapshot() CursorSnapshot {
	return CursorSnapshot{
		Tree:      c.tree.Clone(),
		Path:      c.Path(),
		MoveIndex: c.moveIndex,
	}
}

// RestoreSnapshot is Restore for a CursorSnapshot.
func (c *Cursor) RestoreSnapshot(s CursorSnapshot) error {
	return c.Restore(s.Tree, s.Path, s.MoveIndex)
}
