package extract

import "strconv"

type csTokenKind int

const (
	tokNumber csTokenKind = iota
	tokString
	tokHexString
	tokName
	tokArray
	tokOperator
)

// csToken is one lexical unit of a page content stream.
type csToken struct {
	kind csTokenKind
	num  float64
	raw  []byte // string/hex payload
	arr  []csToken
	op   string
}

// contentLexer tokenizes a decoded content stream. It understands literal
// strings with nested parentheses and escapes, hex strings, names, numbers,
// arrays, and operators; dictionaries and inline image data are skipped.
type contentLexer struct {
	data []byte
	pos  int
}

func newContentLexer(data []byte) *contentLexer {
	return &contentLexer{data: data}
}

func (l *contentLexer) next() (csToken, bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return csToken{}, false
	}
	c := l.data[l.pos]
	switch {
	case c == '(':
		return l.readLiteral(), true
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.skipDict()
			return l.next()
		}
		return l.readHex(), true
	case c == '[':
		return l.readArray(), true
	case c == ']':
		l.pos++
		return l.next()
	case c == '/':
		return l.readName(), true
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.readNumber(), true
	case c == '%':
		l.skipComment()
		return l.next()
	default:
		return l.readOperator(), true
	}
}

func (l *contentLexer) skipSpace() {
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			l.pos++
		default:
			return
		}
	}
}

func (l *contentLexer) skipComment() {
	for l.pos < len(l.data) && l.data[l.pos] != '\n' {
		l.pos++
	}
}

func (l *contentLexer) readLiteral() csToken {
	l.pos++ // consume '('
	depth := 1
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '\\' && l.pos+1 < len(l.data) {
			out = append(out, c, l.data[l.pos+1])
			l.pos += 2
			continue
		}
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				l.pos++
				break
			}
		}
		out = append(out, c)
		l.pos++
	}
	return csToken{kind: tokString, raw: out}
}

func (l *contentLexer) readHex() csToken {
	l.pos++ // consume '<'
	var hexDigits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if isHexDigit(c) {
			hexDigits = append(hexDigits, c)
		}
		l.pos++
	}
	if l.pos < len(l.data) {
		l.pos++ // consume '>'
	}
	if len(hexDigits)%2 == 1 {
		hexDigits = append(hexDigits, '0')
	}
	out := make([]byte, 0, len(hexDigits)/2)
	for i := 0; i+1 < len(hexDigits); i += 2 {
		out = append(out, hexVal(hexDigits[i])<<4|hexVal(hexDigits[i+1]))
	}
	return csToken{kind: tokHexString, raw: out}
}

func (l *contentLexer) readArray() csToken {
	l.pos++ // consume '['
	var items []csToken
	for {
		l.skipSpace()
		if l.pos >= len(l.data) || l.data[l.pos] == ']' {
			if l.pos < len(l.data) {
				l.pos++
			}
			break
		}
		tok, ok := l.next()
		if !ok {
			break
		}
		items = append(items, tok)
	}
	return csToken{kind: tokArray, arr: items}
}

func (l *contentLexer) readName() csToken {
	start := l.pos
	l.pos++
	for l.pos < len(l.data) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return csToken{kind: tokName, raw: l.data[start:l.pos]}
}

func (l *contentLexer) readNumber() csToken {
	start := l.pos
	l.pos++
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' {
			l.pos++
		} else {
			break
		}
	}
	v, _ := strconv.ParseFloat(string(l.data[start:l.pos]), 64)
	return csToken{kind: tokNumber, num: v}
}

func (l *contentLexer) readOperator() csToken {
	start := l.pos
	for l.pos < len(l.data) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++ // lone delimiter byte, consume defensively
	}
	op := string(l.data[start:l.pos])
	// Inline image data runs to EI and is not tokenizable.
	if op == "ID" {
		l.skipInlineImage()
	}
	return csToken{kind: tokOperator, op: op}
}

func (l *contentLexer) skipDict() {
	depth := 0
	for l.pos+1 < len(l.data) {
		if l.data[l.pos] == '<' && l.data[l.pos+1] == '<' {
			depth++
			l.pos += 2
			continue
		}
		if l.data[l.pos] == '>' && l.data[l.pos+1] == '>' {
			depth--
			l.pos += 2
			if depth == 0 {
				return
			}
			continue
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func (l *contentLexer) skipInlineImage() {
	for l.pos+1 < len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isWhite(l.data[l.pos-1])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isWhite(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	if isWhite(c) {
		return true
	}
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
