package movetree

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

// A Outcome is the result of a game.
type Outcome string

const (
	// NoOutcome indicates that a game is in progress or ended without a result.
	NoOutcome Outcome = "*"
	// WhiteWon indicates that white won the game.
	WhiteWon Outcome = "1-0"
	// BlackWon indicates that black won the game.
	BlackWon Outcome = "0-1"
	// Draw indicates that game was a draw.
	Draw Outcome = "1/2-1/2"
)

// String implements the fmt.Stringer interface.
func (o Outcome) String() string {
	return string(o)
}

// TagPairs represents a collection of PGN tag pairs.
type TagPairs map[string]string

// A Record is a game read from or written to PGN: tag pairs, an optional
// comment before the first move, the move tree and the result.
type Record struct {
	Tags    TagPairs
	Comment string
	Tree    *GameTree
	Outcome Outcome
}

// NewRecord returns a record for tree with no tags and no result.
func NewRecord(tree *GameTree) *Record {
	if tree == nil {
		tree = NewGameTree()
	}
	return &Record{
		Tags:    make(TagPairs),
		Tree:    tree,
		Outcome: NoOutcome,
	}
}

// StartFEN returns the FEN tag, or "" for the standard starting position.
func (r *Record) StartFEN() string {
	return r.Tags["FEN"]
}

// AddTagPair adds or updates a tag pair with the given key and
// value and returns true if the value is overwritten.
func (r *Record) AddTagPair(k, v string) bool {
	if r.Tags == nil {
		r.Tags = make(TagPairs)
	}
	_, existing := r.Tags[k]
	r.Tags[k] = v
	return existing
}

// GetTagPair returns the tag pair for the given key or "" if it is not
// present.
func (r *Record) GetTagPair(k string) string {
	return r.Tags[k]
}

// RemoveTagPair removes the tag pair for the given key and
// returns true if a tag pair was removed.
func (r *Record) RemoveTagPair(k string) bool {
	if _, existing := r.Tags[k]; existing {
		delete(r.Tags, k)
		return true
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	ret := &Record{
		Tags:    maps.Clone(r.Tags),
		Comment: r.Comment,
		Outcome: r.Outcome,
	}
	if ret.Tags == nil {
		ret.Tags = make(TagPairs)
	}
	if r.Tree != nil {
		ret.Tree = r.Tree.Clone()
	}
	return ret
}

// String implements the fmt.Stringer interface and returns the record as
// PGN. The movetext has the limits described on GameTree.Movetext.
func (r *Record) String() string {
	var sb strings.Builder

	tagPairList := make([]sortableTagPair, 0, len(r.Tags))
	for tag, value := range r.Tags {
		tagPairList = append(tagPairList, sortableTagPair{Key: tag, Value: value})
	}
	slices.SortFunc(tagPairList, cmpTags)

	for _, tagPair := range tagPairList {
		value := strings.ReplaceAll(tagPair.Value, `\`, `\\`)
		value = strings.ReplaceAll(value, `"`, `\"`)
		sb.WriteString(fmt.Sprintf("[%s \"%s\"]\n", tagPair.Key, value))
	}

	// Append empty line after tag pairs as per definition
	if len(r.Tags) > 0 {
		sb.WriteString("\n")
	}

	w := &movetextWriter{}
	if r.Comment != "" {
		w.word("{" + r.Comment + "}")
	}
	if r.Tree != nil && r.Tree.Root != nil {
		moveNum, isWhite := startPly(r.StartFEN())
		writeMoves(w, r.Tree.Root, moveNum, isWhite, true)
	}

	outcome := r.Outcome
	if outcome == "" {
		outcome = NoOutcome
	}
	w.word(outcome.String())

	sb.WriteString(w.sb.String())
	return sb.String()
}

// sortableTagPair is a tag pair as sorted for output.
type sortableTagPair struct {
	Key   string
	Value string
}

// cmpTags orders the seven tag roster first, in roster order, then the
// remaining tags alphabetically.
func cmpTags(a, b sortableTagPair) int {
	if a.Key == b.Key {
		return 0
	}

	// PGN defined tags take priority
	for _, req := range []string{
		"Event",
		"Site",
		"Date",
		"Round",
		"White",
		"Black",
		"Result",
	} {
		if a.Key == req {
			return -1
		}
		if b.Key == req {
			return +1
		}
	}

	return strings.Compare(a.Key, b.Key)
}

// MarshalText implements the encoding.TextMarshaler interface and
// encodes the record as PGN.
func (r *Record) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface and
// assumes the data is in the PGN format.
func (r *Record) UnmarshalText(text []byte) error {
	parsed, err := ParsePGN(bytes.NewReader(text))
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}
