package extract

import (
	"unicode/utf16"
)

// matrix is a 3x3 transform with the last row implicitly 0,0,1.
type matrix [6]float64

func identity() matrix { return matrix{1, 0, 0, 1, 0, 0} }

func (a matrix) mult(b matrix) matrix {
	return matrix{
		a[0]*b[0] + a[1]*b[2],
		a[0]*b[1] + a[1]*b[3],
		a[2]*b[0] + a[3]*b[2],
		a[2]*b[1] + a[3]*b[3],
		a[4]*b[0] + a[5]*b[2] + b[4],
		a[4]*b[1] + a[5]*b[3] + b[5],
	}
}

func translate(tx, ty float64) matrix { return matrix{1, 0, 0, 1, tx, ty} }

// harvestFragments walks a decoded page content stream and emits positioned
// text fragments. It tracks the text matrix (Tm/Td/TD/T*/TJ adjustments) and
// the CTM (q/Q/cm) so each shown string carries device-space coordinates.
// Glyph widths are approximated from the active font size; that is precise
// enough for the gap/line heuristics downstream.
func harvestFragments(data []byte) []fragment {
	var (
		frags    []fragment
		tm, tlm  = identity(), identity()
		ctm      = identity()
		gStack   []matrix
		fontSize = 12.0
		leading  float64
		operands []csToken
	)

	markBreak := func() {
		if n := len(frags); n > 0 {
			frags[n-1].lineBreak = true
		}
	}

	emit := func(s string) {
		if s == "" {
			return
		}
		fm := tm.mult(ctm)
		w := approxWidth(s, fontSize)
		frags = append(frags, fragment{text: s, x: fm[4], y: fm[5], width: w})
		tm[4] += w
	}

	lex := newContentLexer(data)
	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}
		switch tok.op {
		case "q":
			gStack = append(gStack, ctm)
		case "Q":
			if len(gStack) > 0 {
				ctm = gStack[len(gStack)-1]
				gStack = gStack[:len(gStack)-1]
			}
		case "cm":
			if m, ok := operandMatrix(operands); ok {
				ctm = m.mult(ctm)
			}
		case "BT":
			tm, tlm = identity(), identity()
		case "Tf":
			if len(operands) >= 2 {
				fontSize = operands[len(operands)-1].num
			}
		case "TL":
			if len(operands) >= 1 {
				leading = operands[len(operands)-1].num
			}
		case "Td", "TD":
			if len(operands) >= 2 {
				tx := operands[len(operands)-2].num
				ty := operands[len(operands)-1].num
				if tok.op == "TD" {
					leading = -ty
				}
				tlm = translate(tx, ty).mult(tlm)
				tm = tlm
				if ty != 0 {
					markBreak()
				}
			}
		case "Tm":
			if m, ok := operandMatrix(operands); ok {
				tm, tlm = m, m
			}
		case "T*":
			tlm = translate(0, -leading).mult(tlm)
			tm = tlm
			markBreak()
		case "Tj":
			if len(operands) >= 1 {
				emit(decodePDFString(operands[len(operands)-1]))
			}
		case "'":
			tlm = translate(0, -leading).mult(tlm)
			tm = tlm
			markBreak()
			if len(operands) >= 1 {
				emit(decodePDFString(operands[len(operands)-1]))
			}
		case "\"":
			tlm = translate(0, -leading).mult(tlm)
			tm = tlm
			markBreak()
			if len(operands) >= 3 {
				emit(decodePDFString(operands[len(operands)-1]))
			}
		case "TJ":
			if len(operands) >= 1 && operands[len(operands)-1].kind == tokArray {
				for _, item := range operands[len(operands)-1].arr {
					switch item.kind {
					case tokNumber:
						tm[4] -= item.num / 1000.0 * fontSize
					case tokString, tokHexString:
						emit(decodePDFString(item))
					}
				}
			}
		}
		operands = operands[:0]
	}
	return frags
}

func operandMatrix(ops []csToken) (matrix, bool) {
	if len(ops) < 6 {
		return matrix{}, false
	}
	var m matrix
	for i := 0; i < 6; i++ {
		t := ops[len(ops)-6+i]
		if t.kind != tokNumber {
			return matrix{}, false
		}
		m[i] = t.num
	}
	return m, true
}

// approxWidth estimates a string's advance in text space. Average glyph
// advance in body fonts sits near half an em.
func approxWidth(s string, fontSize float64) float64 {
	n := 0
	for range s {
		n++
	}
	return float64(n) * fontSize * 0.5
}

// decodePDFString resolves escapes in literal strings and decodes hex
// strings, including UTF-16BE with BOM.
func decodePDFString(t csToken) string {
	switch t.kind {
	case tokString:
		return unescapeLiteral(t.raw)
	case tokHexString:
		b := t.raw
		if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
			return decodeUTF16BE(b[2:])
		}
		return string(b)
	}
	return ""
}

func unescapeLiteral(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			out = append(out, c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b', 'f':
			// no textual value
		case '\\', '(', ')':
			out = append(out, raw[i])
		case '\n':
			// line continuation
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				v := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					v = v*8 + int(raw[i]-'0')
				}
				out = append(out, byte(v))
			} else {
				out = append(out, raw[i])
			}
		}
	}
	return string(out)
}

func decodeUTF16BE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(u))
}
