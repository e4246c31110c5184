package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/corentings/chess/v2"
	"github.com/spf13/pflag"

	"github.com/chessrep/movetree"
	"github.com/chessrep/movetree/rules"
	"github.com/chessrep/movetree/store"
)

func (a *app) importPGN(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	study := fs.String("study", "", "study the chapter belongs to")
	name := fs.String("name", "", "chapter name (default: from the White and Black tags)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *study == "" || fs.NArg() != 1 {
		return errors.New("import: need --study and one PGN file")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := movetree.ParsePGN(f, movetree.WithLogger(a.log.Desugar()))
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	start, err := rules.StartPosition(rec.StartFEN())
	if err != nil {
		return err
	}
	recon := rules.NewReconstructor(start, a.log.Desugar())
	if n := checkLines(recon, rec.Tree); n > 0 {
		a.log.Warnw("imported game has lines with illegal moves", "file", path, "lines", n)
	}

	ch := store.NewChapter(*study, chapterName(rec, *name, path))
	ch.StartFEN = rec.StartFEN()
	ch.Tags = rec.Tags
	ch.Notes = rec.Comment
	ch.Result = rec.Outcome.String()
	ch.Tree = rec.Tree.Root
	if err := a.chapters.Create(ctx, ch); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\t%s\t%d plies\n", ch.ID, ch.Name, rec.Tree.PlyCount())
	return nil
}

// checkLines replays every line of the tree and returns how many of them
// stop early.
func checkLines(recon *movetree.PositionReconstructor[*chess.Position], tree *movetree.GameTree) int {
	n := 0
	for _, line := range tree.Lines() {
		if !recon.Reconstruct(line).Complete() {
			n++
		}
	}
	return n
}

func chapterName(rec *movetree.Record, name, path string) string {
	if name != "" {
		return name
	}
	white, black := rec.GetTagPair("White"), rec.GetTagPair("Black")
	if white != "" || black != "" {
		return white + " - " + black
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// load returns the chapter and a cursor at its latest position, preferring
// the cached one.
func (a *app) load(ctx context.Context, id string) (*store.Chapter, *movetree.Cursor, error) {
	ch, err := a.chapters.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	c, err := ch.Cursor(movetree.WithLogger(a.log.Desugar()))
	if err != nil {
		return nil, nil, err
	}

	pos, ok, err := a.cache.Get(ctx, id)
	if err != nil {
		a.log.Warnw("cursor cache unavailable", "chapter", id, "error", err)
		return ch, c, nil
	}
	if !ok {
		return ch, c, nil
	}
	saved, savedIndex := c.Path(), c.MoveIndex()
	if err := pos.Apply(c); err == nil {
		if _, err = c.CurrentLine(); err == nil {
			return ch, c, nil
		}
	}
	a.log.Warnw("ignoring stale cached cursor", "chapter", id, "path", pos.Path, "moveIndex", pos.MoveIndex)
	_ = a.cache.Drop(ctx, id)
	if err := c.SetPosition(saved, savedIndex); err != nil {
		return nil, nil, err
	}
	return ch, c, nil
}

func (a *app) reconstructor(ch *store.Chapter) (*movetree.PositionReconstructor[*chess.Position], error) {
	start, err := rules.StartPosition(ch.StartFEN)
	if err != nil {
		return nil, err
	}
	return rules.NewReconstructor(start, a.log.Desugar()), nil
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("show: need a chapter id")
	}
	ch, c, err := a.load(ctx, args[0])
	if err != nil {
		return err
	}
	recon, err := a.reconstructor(ch)
	if err != nil {
		return err
	}

	rec := movetree.NewRecord(c.Tree())
	for k, v := range ch.Tags {
		rec.AddTagPair(k, v)
	}
	rec.Comment = ch.Notes
	if ch.Result != "" {
		rec.Outcome = movetree.Outcome(ch.Result)
	}
	fmt.Fprintln(a.out, rec.String())
	fmt.Fprintln(a.out)
	return printPosition(a.out, c, recon)
}

func (a *app) nav(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("nav: need a chapter id and at least one step")
	}
	id := args[0]
	ch, c, err := a.load(ctx, id)
	if err != nil {
		return err
	}
	recon, err := a.reconstructor(ch)
	if err != nil {
		return err
	}

	n := &navigator{cursor: c, recon: recon}
	if err := n.run(args[1:]); err != nil {
		return err
	}

	if n.changed {
		if err := a.chapters.SaveCursor(ctx, id, c); err != nil {
			return err
		}
	}
	if err := a.cache.Put(ctx, id, c); err != nil {
		a.log.Warnw("failed to cache cursor", "chapter", id, "error", err)
	}
	return printPosition(a.out, c, recon)
}

func printPosition(w io.Writer, c *movetree.Cursor, recon *movetree.PositionReconstructor[*chess.Position]) error {
	moves, err := c.MovesToPosition()
	if err != nil {
		return err
	}
	res := recon.Reconstruct(moves)

	notations := make([]string, len(moves))
	for i, m := range moves {
		notations[i] = m.Notation
	}
	fmt.Fprintf(w, "path:  %v\n", c.Path())
	fmt.Fprintf(w, "index: %d\n", c.MoveIndex())
	fmt.Fprintf(w, "moves: %s\n", strings.Join(notations, " "))
	fmt.Fprintf(w, "fen:   %s\n", rules.FEN(res.Position))
	if !res.Complete() {
		fmt.Fprintf(w, "warning: %v\n", res.Partial)
	}
	return nil
}
