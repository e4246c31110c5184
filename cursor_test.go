package movetree

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func notations(moves []*MoveNode) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.Notation
	}
	return out
}

func mustAdd(t *testing.T, c *Cursor, moves ...string) {
	t.Helper()
	for _, m := range moves {
		if _, err := c.AddMove(m, nil); err != nil {
			t.Fatalf("AddMove(%q): %v", m, err)
		}
	}
}

func mustMoves(t *testing.T, c *Cursor) []string {
	t.Helper()
	moves, err := c.MovesToPosition()
	if err != nil {
		t.Fatalf("MovesToPosition: %v", err)
	}
	return notations(moves)
}

func TestAddMoveToEmptyTree(t *testing.T) {
	c := NewCursor()
	res, err := c.AddMove("e4", nil)
	require.NoError(t, err)
	if res.Kind != Appended || res.MoveIndex != 1 {
		t.Fatalf("expected appended at 1 but got %s at %d", res.Kind, res.MoveIndex)
	}
	assert.Equal(t, []string{"e4"}, mustMoves(t, c))
}

func TestRootVariation(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4")

	back := c.GoBack()
	if !back.Success || back.MoveIndex != 0 {
		t.Fatalf("expected successful back to 0 but got %+v", back)
	}

	res, err := c.AddMove("d4", nil)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Kind)

	root := c.Tree().Root
	require.Len(t, root.Variations, 1)
	assert.Equal(t, "d4", root.Variations[0].Moves[0].Notation)
	assert.Equal(t, []BranchPoint{{VariationIndex: 1, AnchorIndex: 0, Root: true}}, c.Path())
	assert.Equal(t, 1, c.MoveIndex())
	assert.Equal(t, []string{"d4"}, mustMoves(t, c))

	// back to the start of the variation, then the main line's first move
	c.GoBack()
	res, err = c.AddMove("e4", nil)
	require.NoError(t, err)
	assert.Equal(t, Followed, res.Kind)
	assert.Empty(t, c.Path())
	assert.Equal(t, []string{"e4"}, mustMoves(t, c))
	assert.Len(t, root.Variations, 1)
	assert.Len(t, root.Moves, 1)
}

func TestAnchoredVariation(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5", "Nf3")
	c.GoBack()
	require.Equal(t, 2, c.MoveIndex())

	res, err := c.AddMove("Nc3", nil)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Kind)

	e5 := c.Tree().Root.Moves[1]
	require.Len(t, e5.Variations, 1)
	assert.Equal(t, []string{"Nc3"}, notations(e5.Variations[0].Moves))
	assert.Equal(t, []BranchPoint{{VariationIndex: 1, AnchorIndex: 1}}, c.Path())
	assert.Equal(t, []string{"e4", "e5", "Nc3"}, mustMoves(t, c))
}

func TestSwitchToExistingVariation(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5", "Nf3")
	c.GoBack()
	mustAdd(t, c, "Nc3")

	require.NoError(t, c.NavigateToMainLineMove(2))
	res, err := c.AddMove("Nc3", nil)
	require.NoError(t, err)
	assert.Equal(t, Switched, res.Kind)
	assert.Len(t, c.Tree().Root.Moves[1].Variations, 1)
	assert.Equal(t, []string{"e4", "e5", "Nc3"}, mustMoves(t, c))
}

func TestDivergenceAtVariationStart(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")
	c.GoBack()
	require.Equal(t, 0, c.MoveIndex())
	require.Len(t, c.Path(), 1)

	// an alternative to c5 is a sibling of the c5 line, not nested in it
	res, err := c.AddMove("e6", nil)
	require.NoError(t, err)
	assert.Equal(t, Created, res.Kind)

	e4 := c.Tree().Root.Moves[0]
	require.Len(t, e4.Variations, 2)
	assert.Empty(t, e4.Variations[0].Variations)
	assert.Equal(t, []BranchPoint{{VariationIndex: 2, AnchorIndex: 0}}, c.Path())
	assert.Equal(t, []string{"e4", "e6"}, mustMoves(t, c))

	// and the parent's own move is followed
	c.GoBack()
	res, err = c.AddMove("e5", nil)
	require.NoError(t, err)
	assert.Equal(t, Followed, res.Kind)
	assert.Empty(t, c.Path())
	assert.Len(t, e4.Variations, 2)
}

func TestNestedVariation(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5", "Nf3")
	c.GoBack()
	mustAdd(t, c, "Nc3", "Nf6")
	require.NoError(t, c.SetPosition(c.Path(), 1))
	mustAdd(t, c, "Nc6")

	require.NoError(t, c.SetPosition([]BranchPoint{{VariationIndex: 1, AnchorIndex: 1}}, 0))
	require.NoError(t, c.SwitchToVariation(0, 1))
	assert.Equal(t, []BranchPoint{{VariationIndex: 1, AnchorIndex: 1}, {VariationIndex: 1, AnchorIndex: 0}}, c.Path())
	assert.Equal(t, []string{"e4", "e5", "Nc3"}, mustMoves(t, c))

	_, err := c.GoForward()
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e5", "Nc3", "Nc6"}, mustMoves(t, c))
}

func TestMovesToPositionThroughRootVariation(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	require.NoError(t, c.NavigateToMainLineMove(0))
	mustAdd(t, c, "d4", "d5", "c4")
	c.GoBack()
	mustAdd(t, c, "Nf3")

	// root branches add nothing, the d5 anchor adds d4 d5
	assert.Equal(t, []BranchPoint{{VariationIndex: 1, Root: true}, {VariationIndex: 1, AnchorIndex: 1}}, c.Path())
	assert.Equal(t, []string{"d4", "d5", "Nf3"}, mustMoves(t, c))
}

func TestAddMoveKeepsData(t *testing.T) {
	c := NewCursor()
	nags := []int{1}
	_, err := c.AddMove("e4", &MoveData{Comment: "best by test", NAGs: nags})
	require.NoError(t, err)
	nags[0] = 4

	m := c.Tree().Root.Moves[0]
	assert.Equal(t, "best by test", m.Comment)
	assert.Equal(t, []int{1}, m.NAGs)
}

func TestGoBackAtStart(t *testing.T) {
	c := NewCursor()
	res := c.GoBack()
	if res.Success {
		t.Fatal("expected GoBack at the start to fail")
	}
	assert.Equal(t, 0, res.MoveIndex)
}

func TestGoBackLeavesVariationToLineStart(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5", "Nf3")
	c.GoBack()
	mustAdd(t, c, "Nc3")
	c.GoBack()

	res := c.GoBack()
	require.True(t, res.Success)
	assert.Empty(t, res.Path)
	assert.Equal(t, 0, res.MoveIndex)
}

func TestExitVariation(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5", "Nf3")
	c.GoBack()
	mustAdd(t, c, "Nc3", "Nf6")

	res := c.ExitVariation()
	require.True(t, res.Success)
	assert.Empty(t, res.Path)
	assert.Equal(t, 2, res.MoveIndex)
	assert.Equal(t, []string{"e4", "e5"}, mustMoves(t, c))

	assert.False(t, c.ExitVariation().Success)

	require.NoError(t, c.NavigateToMainLineMove(0))
	mustAdd(t, c, "d4")
	res = c.ExitVariation()
	require.True(t, res.Success)
	assert.Equal(t, 0, res.MoveIndex)
}

func TestGoForward(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoToStart()

	res, err := c.GoForward()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.MoveIndex)

	_, err = c.GoToEnd()
	require.NoError(t, err)
	res, err = c.GoForward()
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.MoveIndex)
}

func TestGoForwardStaysOnLine(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")
	require.NoError(t, c.NavigateToMainLineMove(1))

	_, err := c.GoForward()
	require.NoError(t, err)
	assert.Empty(t, c.Path())
	assert.Equal(t, []string{"e4", "e5"}, mustMoves(t, c))
}

func TestSwitchToVariationInvalid(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")
	require.NoError(t, c.NavigateToMainLineMove(1))

	tests := []struct {
		anchor, variation int
	}{
		{-1, 1},
		{2, 1},
		{0, 0},
		{0, 2},
		{1, 1},
	}
	for _, tt := range tests {
		err := c.SwitchToVariation(tt.anchor, tt.variation)
		if !errors.Is(err, ErrInvalidBranch) {
			t.Fatalf("SwitchToVariation(%d, %d): expected ErrInvalidBranch but got %v", tt.anchor, tt.variation, err)
		}
		assert.Empty(t, c.Path())
		assert.Equal(t, 1, c.MoveIndex())
	}

	assert.ErrorIs(t, c.SwitchToRootVariation(1), ErrInvalidBranch)
	assert.ErrorIs(t, c.NavigateToMainLineMove(3), ErrInvalidBranch)
}

func TestRestoreMalformedPath(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	c := NewCursor(WithLogger(zap.New(core)))

	tree, err := DecodeSnapshot([]byte(`{"moves":[{"notation":"e4","variations":[]}]}`))
	require.NoError(t, err)
	require.NoError(t, c.Restore(tree, []BranchPoint{{VariationIndex: 5, AnchorIndex: 0}}, 0))

	_, err = c.CurrentLine()
	var corrupt *StructuralCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected StructuralCorruptionError but got %v", err)
	}
	assert.Equal(t, 0, corrupt.Depth)
	assert.Equal(t, "CurrentLine", corrupt.Op)
	assert.Equal(t, 1, logs.Len())

	_, err = c.AddMove("d4", nil)
	assert.True(t, errors.As(err, &corrupt))
	_, err = c.MovesToPosition()
	assert.True(t, errors.As(err, &corrupt))
	assert.Len(t, tree.Root.Moves, 1, "failed operations do not mutate")
}

func TestRestoreRootBranchWithoutFlag(t *testing.T) {
	tree, err := DecodeSnapshot([]byte(`{
		"moves": [],
		"variations": [{"moves": [{"notation": "d4", "variations": []}], "variations": []}]
	}`))
	require.NoError(t, err)

	c := NewCursor()
	require.NoError(t, c.Restore(tree, []BranchPoint{{VariationIndex: 1, AnchorIndex: 0}}, 1))

	moves, err := c.MovesToPosition()
	require.NoError(t, err)
	assert.Equal(t, []string{"d4"}, notations(moves))

	line, err := c.CurrentLine()
	require.NoError(t, err)
	assert.Same(t, tree.Root.Variations[0], line)

	res := c.ExitVariation()
	assert.True(t, res.Success)
	assert.Empty(t, c.Path())
	assert.Equal(t, 0, c.MoveIndex())
}

func TestAnchorZeroOnLineWithMoves(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")

	path := c.Path()
	require.Len(t, path, 1)
	assert.Equal(t, BranchPoint{VariationIndex: 1, AnchorIndex: 0}, path[0])

	moves, err := c.MovesToPosition()
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "c5"}, notations(moves))

	c.ExitVariation()
	assert.Equal(t, 1, c.MoveIndex())
}

func TestRestoreMoveIndexOutOfRange(t *testing.T) {
	c := NewCursor()
	tree := NewGameTree()
	tree.Root.Moves = append(tree.Root.Moves, &MoveNode{Notation: "e4"})
	require.NoError(t, c.Restore(tree, nil, 2))

	_, err := c.GoForward()
	var corrupt *StructuralCorruptionError
	assert.True(t, errors.As(err, &corrupt))
}

func TestRestoreShapeChecks(t *testing.T) {
	c := NewCursor()
	assert.ErrorIs(t, c.Restore(nil, nil, 0), ErrInvalidSnapshot)
	assert.ErrorIs(t, c.Restore(NewGameTree(), nil, -1), ErrInvalidSnapshot)
	assert.ErrorIs(t, c.Restore(NewGameTree(), []BranchPoint{{VariationIndex: 1, AnchorIndex: 2, Root: true}}, 0), ErrInvalidSnapshot)
	assert.ErrorIs(t, c.Restore(&GameTree{Root: &Line{Moves: []*MoveNode{nil}}}, nil, 0), ErrInvalidSnapshot)
}

func TestRestoreCopiesTree(t *testing.T) {
	src := NewCursor()
	mustAdd(t, src, "e4", "e5")

	c := NewCursor()
	require.NoError(t, c.Restore(src.Tree(), nil, 2))
	mustAdd(t, c, "Nf3")

	assert.Len(t, src.Tree().Root.Moves, 2)
	assert.Len(t, c.Tree().Root.Moves, 3)
}

func TestReset(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")
	old := c.Tree()

	c.Reset()
	assert.Empty(t, c.Path())
	assert.Equal(t, 0, c.MoveIndex())
	assert.True(t, c.Tree().Root.IsEmpty())
	assert.Len(t, old.Root.Moves, 2)
}

func TestSharedTree(t *testing.T) {
	tree := NewGameTree()
	a := NewCursor(WithTree(tree))
	b := NewCursor(WithTree(tree))
	mustAdd(t, a, "e4", "e5")

	_, err := b.GoToEnd()
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e5"}, mustMoves(t, b))
}

func TestState(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")

	st, err := c.State()
	require.NoError(t, err)
	assert.Same(t, c.Tree(), st.Tree)
	assert.Equal(t, []string{"c5"}, notations(st.Line.Moves))
	assert.Equal(t, 1, st.MoveIndex)
	assert.Equal(t, c.Path(), st.Path)
}

func TestPathIsCopied(t *testing.T) {
	c := NewCursor()
	mustAdd(t, c, "e4", "e5")
	c.GoBack()
	mustAdd(t, c, "c5")

	p := c.Path()
	p[0].VariationIndex = 9
	assert.Equal(t, 1, c.Path()[0].VariationIndex)
}

// randomWalk drives c with n random operations over a small alphabet, so
// that follows, switches and divergences all happen often.
func randomWalk(t *testing.T, r *rand.Rand, c *Cursor, n int, check func(op string)) {
	t.Helper()
	alphabet := []string{"a", "b", "c", "d"}
	for i := 0; i < n; i++ {
		var op string
		switch r.Intn(6) {
		case 0, 1, 2:
			op = "add"
			mustAdd(t, c, alphabet[r.Intn(len(alphabet))])
		case 3:
			op = "back"
			c.GoBack()
		case 4:
			op = "forward"
			if _, err := c.GoForward(); err != nil {
				t.Fatal(err)
			}
		case 5:
			op = "exit"
			c.ExitVariation()
		}
		if check != nil {
			check(op)
		}
	}
}

// expectedLength sums the anchor-inclusive prefixes of regular branches
// plus the move index.
func expectedLength(c *Cursor) int {
	n := c.MoveIndex()
	for _, bp := range c.Path() {
		if bp.VariationIndex != 0 && !bp.Root {
			n += bp.AnchorIndex + 1
		}
	}
	return n
}

func countVariations(l *Line) int {
	n := len(l.Variations)
	for _, v := range l.Variations {
		n += countVariations(v)
	}
	for _, m := range l.Moves {
		n += len(m.Variations)
		for _, v := range m.Variations {
			n += countVariations(v)
		}
	}
	return n
}

// checkDistinct verifies that no two alternatives at a branch point start
// with the same move.
func checkDistinct(t *testing.T, l *Line) {
	t.Helper()
	firsts := func(replaced *MoveNode, vars []*Line) {
		seen := map[string]bool{}
		if replaced != nil {
			seen[replaced.Notation] = true
		}
		for _, v := range vars {
			require.NotEmpty(t, v.Moves)
			if seen[v.Moves[0].Notation] {
				t.Fatalf("duplicate alternative %q", v.Moves[0].Notation)
			}
			seen[v.Moves[0].Notation] = true
		}
	}
	if len(l.Variations) > 0 {
		require.NotEmpty(t, l.Moves)
		firsts(l.Moves[0], l.Variations)
	}
	for i, m := range l.Moves {
		if !m.HasVariations() {
			continue
		}
		require.Less(t, i+1, len(l.Moves))
		firsts(l.Moves[i+1], m.Variations)
	}
	for _, v := range l.Variations {
		checkDistinct(t, v)
	}
	for _, m := range l.Moves {
		for _, v := range m.Variations {
			checkDistinct(t, v)
		}
	}
}

func TestCursorProperties(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		r := rand.New(rand.NewSource(seed))
		c := NewCursor()

		randomWalk(t, r, c, 200, func(op string) {
			moves, err := c.MovesToPosition()
			require.NoError(t, err)
			if len(moves) != expectedLength(c) {
				t.Fatalf("seed %d after %s: %d moves to position, expected %d", seed, op, len(moves), expectedLength(c))
			}
		})
		checkDistinct(t, c.Tree().Root)
	}
}

func TestAppendIdempotence(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	c := NewCursor()
	randomWalk(t, r, c, 300, func(string) {
		line, err := c.CurrentLine()
		require.NoError(t, err)
		if c.MoveIndex() >= len(line.Moves) {
			return
		}
		before := countVariations(c.Tree().Root)
		path, idx := c.Path(), c.MoveIndex()

		res, err := c.AddMove(line.Moves[idx].Notation, nil)
		require.NoError(t, err)
		assert.Equal(t, Followed, res.Kind)
		assert.Equal(t, before, countVariations(c.Tree().Root))

		require.NoError(t, c.SetPosition(path, idx))
	})
}

func TestDivergenceAddsAtMostOneBranch(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	c := NewCursor()
	randomWalk(t, r, c, 300, func(string) {
		line, err := c.CurrentLine()
		require.NoError(t, err)
		if c.MoveIndex() >= len(line.Moves) {
			return
		}
		before := countVariations(c.Tree().Root)
		path, idx := c.Path(), c.MoveIndex()

		res, err := c.AddMove("z", nil)
		require.NoError(t, err)
		after := countVariations(c.Tree().Root)
		switch res.Kind {
		case Created:
			assert.Equal(t, before+1, after)
		case Switched:
			assert.Equal(t, before, after)
		default:
			t.Fatalf("unexpected %s for a divergence", res.Kind)
		}

		require.NoError(t, c.SetPosition(path, idx))
	})
}

func TestBackForwardInverse(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	c := NewCursor()
	randomWalk(t, r, c, 300, func(string) {
		path, idx := c.Path(), c.MoveIndex()
		res, err := c.GoForward()
		require.NoError(t, err)
		if !res.Success {
			return
		}
		c.GoBack()
		assert.Equal(t, path, c.Path())
		assert.Equal(t, idx, c.MoveIndex())
	})
}

func TestSnapshotRoundTripEveryPosition(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	c := NewCursor()
	randomWalk(t, r, c, 200, nil)

	data, err := EncodeSnapshot(c.Tree())
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)

	// visit every reachable position through a second cursor
	var visit func(path []BranchPoint, line *Line)
	visit = func(path []BranchPoint, line *Line) {
		for idx := 0; idx <= len(line.Moves); idx++ {
			require.NoError(t, c.SetPosition(path, idx))
			want := mustMoves(t, c)

			restored := NewCursor()
			require.NoError(t, restored.Restore(decoded, path, idx))
			assert.Equal(t, want, mustMoves(t, restored))
		}
		for i, v := range line.Variations {
			visit(append(clonePath(path), BranchPoint{VariationIndex: i + 1, Root: true}), v)
		}
		for a, m := range line.Moves {
			for i, v := range m.Variations {
				visit(append(clonePath(path), BranchPoint{VariationIndex: i + 1, AnchorIndex: a}), v)
			}
		}
	}
	visit(nil, c.Tree().Root)
}

func clonePath(p []BranchPoint) []BranchPoint {
	return append([]BranchPoint(nil), p...)
}

func BenchmarkAddMove(b *testing.B) {
	moves := []string{"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Ba4", "Nf6", "O-O", "Be7"}
	for n := 0; n < b.N; n++ {
		c := NewCursor()
		for _, m := range moves {
			if _, err := c.AddMove(m, nil); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkMovesToPosition(b *testing.B) {
	c := NewCursor()
	for i := 0; i < 40; i++ {
		if _, err := c.AddMove("m", nil); err != nil {
			b.Fatal(err)
		}
		if _, err := c.AddMove("n", nil); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := c.MovesToPosition(); err != nil {
			b.Fatal(err)
		}
	}
}
