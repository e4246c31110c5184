package main

import (
	"fmt"
	"strconv"

	"github.com/corentings/chess/v2"

	"github.com/chessrep/movetree"
	"github.com/chessrep/movetree/rules"
)

// navigator applies nav steps to a cursor. Moves are checked against the
// position at the cursor and stored in SAN.
type navigator struct {
	cursor  *movetree.Cursor
	recon   *movetree.PositionReconstructor[*chess.Position]
	changed bool // the tree was modified
}

func (n *navigator) run(steps []string) error {
	for len(steps) > 0 {
		used, err := n.step(steps)
		if err != nil {
			return err
		}
		steps = steps[used:]
	}
	return nil
}

// step applies the first step of steps and returns how many words it used.
func (n *navigator) step(steps []string) (int, error) {
	c := n.cursor
	switch steps[0] {
	case "back":
		c.GoBack()
		return 1, nil
	case "forward":
		_, err := c.GoForward()
		return 1, err
	case "start":
		c.GoToStart()
		return 1, nil
	case "end":
		_, err := c.GoToEnd()
		return 1, err
	case "exit":
		c.ExitVariation()
		return 1, nil
	case "main":
		args, err := ints(steps, 1)
		if err != nil {
			return 0, err
		}
		return 2, c.NavigateToMainLineMove(args[0])
	case "var":
		args, err := ints(steps, 2)
		if err != nil {
			return 0, err
		}
		return 3, c.SwitchToVariation(args[0], args[1])
	case "root":
		args, err := ints(steps, 1)
		if err != nil {
			return 0, err
		}
		return 2, c.SwitchToRootVariation(args[0])
	case "move":
		if len(steps) < 2 {
			return 0, fmt.Errorf("move: missing notation")
		}
		return 2, n.move(steps[1])
	}
	return 0, fmt.Errorf("unknown step %q", steps[0])
}

func (n *navigator) move(notation string) error {
	res, err := n.recon.FromCursor(n.cursor)
	if err != nil {
		return err
	}
	if !res.Complete() {
		return fmt.Errorf("move %s: position at cursor is not reachable: %w", notation, res.Partial)
	}
	san, err := rules.SAN(res.Position, notation)
	if err != nil {
		return err
	}
	r, err := n.cursor.AddMove(san, nil)
	if err != nil {
		return err
	}
	if r.Kind == movetree.Appended || r.Kind == movetree.Created {
		n.changed = true
	}
	return nil
}

func ints(steps []string, count int) ([]int, error) {
	if len(steps) < count+1 {
		return nil, fmt.Errorf("%s: need %d numbers", steps[0], count)
	}
	out := make([]int, count)
	for i := range out {
		v, err := strconv.Atoi(steps[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", steps[0], err)
		}
		out[i] = v
	}
	return out, nil
}
