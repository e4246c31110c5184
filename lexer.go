package movetree

import (
	"strings"
)

// TokenType identifies the kind of a PGN token.
type TokenType int

const (
	EOF TokenType = iota
	TagStart
	TagKey
	TagValue
	TagEnd
	MoveNumber
	DOT
	ELLIPSIS
	SAN
	NAG
	CommentStart
	COMMENT
	CommentEnd
	VariationStart
	VariationEnd
	RESULT
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case TagStart:
		return "TagStart"
	case TagKey:
		return "TagKey"
	case TagValue:
		return "TagValue"
	case TagEnd:
		return "TagEnd"
	case MoveNumber:
		return "MoveNumber"
	case DOT:
		return "DOT"
	case ELLIPSIS:
		return "ELLIPSIS"
	case SAN:
		return "SAN"
	case NAG:
		return "NAG"
	case CommentStart:
		return "CommentStart"
	case COMMENT:
		return "COMMENT"
	case CommentEnd:
		return "CommentEnd"
	case VariationStart:
		return "VariationStart"
	case VariationEnd:
		return "VariationEnd"
	case RESULT:
		return "RESULT"
	}
	return "Unknown"
}

// Token is a single lexical element of PGN text.
type Token struct {
	Type  TokenType
	Value string
}

// suffixNAGs maps move suffix annotations to their numeric glyphs.
var suffixNAGs = map[string]string{
	"!":  "1",
	"?":  "2",
	"!!": "3",
	"??": "4",
	"!?": "5",
	"?!": "6",
}

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

// TokenizeGame splits the PGN text of a single game into tokens.
// Suffix annotations such as "!?" are emitted as NAG tokens and castling
// written with zeros is normalized to letters.
func TokenizeGame(s string) ([]Token, error) {
	l := &lexer{src: s}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) emit(t TokenType, v string) {
	l.tokens = append(l.tokens, Token{Type: t, Value: v})
}

func (l *lexer) fail(msg string) error {
	return &ParserError{
		Message:    msg,
		TokenValue: l.src[l.pos:min(l.pos+1, len(l.src))],
		Position:   l.pos,
	}
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		switch {
		case isSpace(ch):
			l.pos++
		case ch == '[':
			if err := l.tag(); err != nil {
				return err
			}
		case ch == '{':
			end := strings.IndexByte(l.src[l.pos+1:], '}')
			if end < 0 {
				return l.fail("unterminated comment")
			}
			l.emit(CommentStart, "{")
			l.emit(COMMENT, strings.TrimSpace(l.src[l.pos+1:l.pos+1+end]))
			l.emit(CommentEnd, "}")
			l.pos += end + 2
		case ch == ';':
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				end = len(l.src) - l.pos
			}
			l.emit(CommentStart, ";")
			l.emit(COMMENT, strings.TrimSpace(l.src[l.pos+1:l.pos+end]))
			l.emit(CommentEnd, "")
			l.pos += end
		case ch == '(':
			l.emit(VariationStart, "(")
			l.pos++
		case ch == ')':
			l.emit(VariationEnd, ")")
			l.pos++
		case ch == '$':
			start := l.pos + 1
			l.pos = start
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
			if l.pos == start {
				return l.fail("empty NAG")
			}
			l.emit(NAG, l.src[start:l.pos])
		case ch == '*':
			l.emit(RESULT, "*")
			l.pos++
		case ch == '.':
			start := l.pos
			for l.pos < len(l.src) && l.src[l.pos] == '.' {
				l.pos++
			}
			l.dots(l.pos - start)
		case isDigit(ch):
			l.number()
		case isMoveStart(ch):
			l.move()
		case ch == '!' || ch == '?':
			// glyph separated from its move by whitespace
			l.glyph()
		default:
			return l.fail("unexpected character")
		}
	}
	return nil
}

func (l *lexer) dots(n int) {
	if n >= 3 {
		l.emit(ELLIPSIS, "...")
		return
	}
	l.emit(DOT, ".")
}

func (l *lexer) tag() error {
	end := l.pos + 1
	inQuote := false
	for ; end < len(l.src); end++ {
		c := l.src[end]
		if c == '\\' && inQuote {
			end++
			continue
		}
		if c == '"' {
			inQuote = !inQuote
		}
		if c == ']' && !inQuote {
			break
		}
	}
	if end >= len(l.src) {
		return l.fail("unterminated tag pair")
	}

	body := strings.TrimSpace(l.src[l.pos+1 : end])
	key, value, ok := strings.Cut(body, " ")
	value = strings.TrimSpace(value)
	if !ok || key == "" || len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return l.fail("malformed tag pair")
	}
	value = strings.ReplaceAll(value[1:len(value)-1], `\"`, `"`)
	value = strings.ReplaceAll(value, `\\`, `\`)

	l.emit(TagStart, "[")
	l.emit(TagKey, key)
	l.emit(TagValue, value)
	l.emit(TagEnd, "]")
	l.pos = end + 1
	return nil
}

// number lexes a move number, a result, or castling written with zeros.
func (l *lexer) number() {
	start := l.pos
	for l.pos < len(l.src) && strings.IndexByte("0123456789/-+#", l.src[l.pos]) >= 0 {
		l.pos++
	}
	word := l.src[start:l.pos]

	switch word {
	case "1-0", "0-1", "1/2-1/2":
		l.emit(RESULT, word)
		return
	}
	if strings.HasPrefix(word, "0-0") {
		l.emit(SAN, strings.ReplaceAll(word, "0", "O"))
		l.glyph()
		return
	}

	digits := strings.TrimRight(word, "/-+#")
	l.pos = start + len(digits)
	l.emit(MoveNumber, digits)

	dotStart := l.pos
	for l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
	}
	if n := l.pos - dotStart; n > 0 {
		l.dots(n)
	}
}

func (l *lexer) move() {
	start := l.pos
	for l.pos < len(l.src) && isMoveChar(l.src[l.pos]) {
		l.pos++
	}
	l.emit(SAN, l.src[start:l.pos])
	l.glyph()
}

// glyph lexes a suffix annotation directly at the current position.
func (l *lexer) glyph() {
	start := l.pos
	for l.pos < len(l.src) && (l.src[l.pos] == '!' || l.src[l.pos] == '?') {
		l.pos++
	}
	if l.pos == start {
		return
	}
	if nag, ok := suffixNAGs[l.src[start:l.pos]]; ok {
		l.emit(NAG, nag)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isMoveStart(c byte) bool {
	return (c >= 'a' && c <= 'h') || strings.IndexByte("KQRBNPO-", c) >= 0
}

func isMoveChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || isDigit(c) ||
		strings.IndexByte("=+#-:@", c) >= 0
}
