package movetree

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parser holds the state needed during parsing. Moves are entered through a
// Cursor, so a PGN variation is stored exactly where interactive entry of
// the same moves would store it.
type Parser struct {
	record   *Record
	cursor   *Cursor
	tokens   []Token
	position int
	pending  string // comment waiting for the first move of a variation
	fresh    bool   // no move read yet in the innermost variation
}

// NewParser creates a parser over tokens. Options configure the cursor used
// to build the tree; with WithTree the game is merged into an existing tree,
// sharing the moves both have in common.
//
// Example:
//
//	tokens, err := TokenizeGame(pgn)
//	parser := NewParser(tokens)
//	record, err := parser.Parse()
func NewParser(tokens []Token, opts ...Option) *Parser {
	c := NewCursor(opts...)
	return &Parser{
		tokens: tokens,
		cursor: c,
		record: &Record{
			Tags:    make(TagPairs),
			Tree:    c.Tree(),
			Outcome: NoOutcome,
		},
	}
}

// ParsePGN reads a single game.
func ParsePGN(r io.Reader, opts ...Option) (*Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	tokens, err := TokenizeGame(string(raw))
	if err != nil {
		return nil, err
	}
	return NewParser(tokens, opts...).Parse()
}

func (p *Parser) currentToken() Token {
	if p.position >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.position]
}

func (p *Parser) advance() {
	p.position++
}

func (p *Parser) errorf(format string, args ...any) *ParserError {
	tok := p.currentToken()
	return &ParserError{
		Message:    fmt.Sprintf(format, args...),
		TokenType:  tok.Type,
		TokenValue: tok.Value,
		Position:   p.position,
	}
}

// Parse processes all tokens and returns the game record: tag pairs, the
// move tree with its variations, comments and NAGs, and the result.
func (p *Parser) Parse() (*Record, error) {
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	if err := p.parseMoveText(0); err != nil {
		return nil, err
	}
	p.record.Tree = p.cursor.Tree()
	return p.record, nil
}

func (p *Parser) parseHeader() error {
	for p.currentToken().Type == TagStart {
		if err := p.parseTagPair(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseTagPair() error {
	p.advance() // [

	if p.currentToken().Type != TagKey {
		return p.errorf("expected tag key")
	}
	key := p.currentToken().Value
	p.advance()

	if p.currentToken().Type != TagValue {
		return p.errorf("expected tag value")
	}
	value := p.currentToken().Value
	p.advance()

	if p.currentToken().Type != TagEnd {
		return p.errorf("expected tag end")
	}
	p.advance()

	p.record.Tags[key] = value
	return nil
}

// parseMoveText consumes moves until the end of the game, or until the
// closing parenthesis when depth > 0.
func (p *Parser) parseMoveText(depth int) error {
	for {
		token := p.currentToken()

		switch token.Type {
		case EOF:
			if depth > 0 {
				return p.errorf("unterminated variation")
			}
			return nil

		case SAN:
			if err := p.addMove(token.Value); err != nil {
				return err
			}
			p.advance()

		case NAG:
			n, err := strconv.Atoi(token.Value)
			if err != nil {
				return p.errorf("invalid NAG")
			}
			if m := p.currentNode(); m != nil && !p.fresh {
				m.NAGs = append(m.NAGs, n)
			}
			p.advance()

		case CommentStart:
			comment, err := p.parseComment()
			if err != nil {
				return err
			}
			p.attachComment(comment)

		case VariationStart:
			if err := p.parseVariation(depth); err != nil {
				return err
			}

		case VariationEnd:
			if depth == 0 {
				return p.errorf("unbalanced variation end")
			}
			return nil

		case RESULT:
			if depth > 0 {
				return p.errorf("result inside variation")
			}
			p.record.Outcome = Outcome(token.Value)
			p.advance()
			return nil

		default:
			// move numbers and dots carry no information the tree needs
			p.advance()
		}
	}
}

func (p *Parser) addMove(notation string) error {
	var data *MoveData
	if p.pending != "" {
		data = &MoveData{Comment: p.pending}
	}
	res, err := p.cursor.AddMove(notation, data)
	if err != nil {
		return err
	}
	if data != nil && res.Kind != Appended && res.Kind != Created {
		appendComment(p.currentNode(), p.pending)
	}
	p.pending = ""
	p.fresh = false
	return nil
}

// currentNode returns the move just played, or nil at the start of the
// main line.
func (p *Parser) currentNode() *MoveNode {
	idx := p.cursor.MoveIndex()
	if idx == 0 {
		return nil
	}
	line, err := p.cursor.CurrentLine()
	if err != nil {
		return nil
	}
	return line.Moves[idx-1]
}

func (p *Parser) attachComment(comment string) {
	if comment == "" {
		return
	}
	if p.fresh {
		p.pending = joinComment(p.pending, comment)
		return
	}
	m := p.currentNode()
	if m == nil {
		p.record.Comment = joinComment(p.record.Comment, comment)
		return
	}
	appendComment(m, comment)
}

func appendComment(m *MoveNode, comment string) {
	if m == nil {
		return
	}
	m.Comment = joinComment(m.Comment, comment)
}

func joinComment(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

func (p *Parser) parseComment() (string, error) {
	p.advance() // { or ;

	var comment string
	if p.currentToken().Type == COMMENT {
		comment = p.currentToken().Value
		p.advance()
	}
	if p.currentToken().Type != CommentEnd {
		return "", p.errorf("unterminated comment")
	}
	p.advance()
	return comment, nil
}

// parseVariation reads a parenthesized alternative to the move just played.
// The cursor steps back over that move, the variation's moves are added from
// there, and the cursor returns to where it was.
func (p *Parser) parseVariation(depth int) error {
	if p.cursor.MoveIndex() == 0 {
		return p.errorf("variation without a preceding move")
	}

	savedPath := p.cursor.Path()
	savedIndex := p.cursor.MoveIndex()

	p.cursor.GoBack()
	p.advance() // (
	p.fresh = true

	if err := p.parseMoveText(depth + 1); err != nil {
		return err
	}
	p.advance() // )

	p.pending = ""
	p.fresh = false
	return p.cursor.SetPosition(savedPath, savedIndex)
}

// movetextWriter joins movetext words with single spaces.
type movetextWriter struct {
	sb    strings.Builder
	space bool
}

func (w *movetextWriter) word(s string) {
	if w.space {
		w.sb.WriteByte(' ')
	}
	w.sb.WriteString(s)
	w.space = true
}

func (w *movetextWriter) open() {
	if w.space {
		w.sb.WriteByte(' ')
	}
	w.sb.WriteByte('(')
	w.space = false
}

func (w *movetextWriter) close() {
	w.sb.WriteByte(')')
	w.space = true
}

// writeMoves writes the moves of l starting at the given move number and
// side to move, each followed by its NAGs, its comment and the variations
// that replace it. numbered forces a number before a black move, as needed
// at the start of a variation and after a comment or a closed variation.
func writeMoves(w *movetextWriter, l *Line, moveNum int, isWhite, numbered bool) {
	for i, m := range l.Moves {
		writeMoveNumber(w, moveNum, isWhite, numbered)
		w.word(m.Notation)
		writeNAGs(w, m)
		writeComments(w, m)
		numbered = m.Comment != ""

		alternatives := l.Variations
		if i > 0 {
			alternatives = l.Moves[i-1].Variations
		}
		if writeVariations(w, alternatives, moveNum, isWhite) {
			numbered = true
		}

		moveNum, isWhite = nextPly(moveNum, isWhite)
	}

	// Variations with no move to replace are written after the line.
	if n := len(l.Moves); n == 0 {
		writeVariations(w, l.Variations, moveNum, isWhite)
	} else {
		writeVariations(w, l.Moves[n-1].Variations, moveNum, isWhite)
	}
}

func writeMoveNumber(w *movetextWriter, moveNum int, isWhite, numbered bool) {
	if isWhite {
		w.word(fmt.Sprintf("%d.", moveNum))
	} else if numbered {
		w.word(fmt.Sprintf("%d...", moveNum))
	}
}

func writeNAGs(w *movetextWriter, m *MoveNode) {
	for _, n := range m.NAGs {
		w.word("$" + strconv.Itoa(n))
	}
}

func writeComments(w *movetextWriter, m *MoveNode) {
	if m.Comment != "" {
		w.word("{" + m.Comment + "}")
	}
}

func writeVariations(w *movetextWriter, lines []*Line, moveNum int, isWhite bool) bool {
	wrote := false
	for _, v := range lines {
		if v == nil || (v.IsEmpty() && len(v.Variations) == 0) {
			continue
		}
		w.open()
		writeMoves(w, v, moveNum, isWhite, true)
		w.close()
		wrote = true
	}
	return wrote
}

func nextPly(moveNum int, isWhite bool) (int, bool) {
	if isWhite {
		return moveNum, false
	}
	return moveNum + 1, true
}

// startPly returns the move number and side to move encoded in a FEN, or
// the standard 1 and white.
func startPly(fen string) (int, bool) {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1, true
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		n = 1
	}
	return n, fields[1] != "b"
}

// Movetext returns the tree as PGN movetext without tags or result,
// numbered from the standard starting position.
//
// PGN can only place a variation as an alternative to a move that exists.
// Variations hanging off the last move of a line, and root variations of a
// nested line, are written after their line so no move is lost, but they
// read back at a different branch point. Trees built through a Cursor never
// hold either kind.
func (t *GameTree) Movetext() string {
	w := &movetextWriter{}
	writeMoves(w, t.Root, 1, true, true)
	return w.sb.String()
}
